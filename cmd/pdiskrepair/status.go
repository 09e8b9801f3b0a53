package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pdiskrepair/internal/health"
	"pdiskrepair/internal/mmvdisk"
	"pdiskrepair/internal/notify"
	"pdiskrepair/internal/plan"
	"pdiskrepair/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report pdisk health without taking any action",
	Long: `Pulls the current inventory, classifies every unhealthy pdisk and renders
the report. Nothing is prepared or replaced. With --email the report is also
sent to the given recipient when unhealthy disks are found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now().UTC()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := mmvdisk.NewExecRunner(cfg.Tool)

		records, err := mmvdisk.NewClient(runner).Inventory(ctx)
		if err != nil {
			return fmt.Errorf("inventory: %w", err)
		}

		disks, err := health.ClassifyAll(records)
		if err != nil {
			return err
		}

		rep := report.Build(start, plan.Mode("status"), false, disks, nil, nil)
		rep.Render(os.Stdout, short)

		if recipient == "" {
			return nil
		}

		notifier := notify.New(cfg.Notify, nil)
		if !notifier.ShouldAlert(rep) {
			fmt.Println("No unhealthy disks; no alert sent.")
			return nil
		}
		if err := notifier.Alert(rep, recipient); err != nil {
			return err
		}
		fmt.Printf("Alert sent to %s\n", recipient)
		return nil
	},
}
