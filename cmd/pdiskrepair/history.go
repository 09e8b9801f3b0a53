package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pdiskrepair/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the local history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := history.Open(cfg.History.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := history.RecentRuns(db, historyLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Run", "Started", "Mode", "Dry-run", "Disks", "Succeeded", "Failed", "Skipped", "Exit"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Mode, r.DryRun,
				r.DisksTotal, r.Succeeded, r.Failed, r.Skipped, r.ExitCode,
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
}
