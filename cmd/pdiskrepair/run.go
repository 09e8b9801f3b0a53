package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pdiskrepair/internal/health"
	"pdiskrepair/internal/history"
	"pdiskrepair/internal/mmvdisk"
	"pdiskrepair/internal/notify"
	"pdiskrepair/internal/orchestrate"
	"pdiskrepair/internal/plan"
	"pdiskrepair/internal/report"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Prepare unhealthy pdisks for replacement",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRun(plan.ModePrepare)
	},
}

var replaceCmd = &cobra.Command{
	Use:   "replace",
	Short: "Prepare and replace pdisks marked for replacement",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRun(plan.ModeReplace)
	},
}

// executeRun is the full pipeline: inventory → classify → plan →
// orchestrate → report. Read-phase failures abort before anything mutates;
// action failures are carried in the report and surface as a nonzero exit.
func executeRun(mode plan.Mode) error {
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

	p := plan.Build(disks, mode, dryRun)
	zap.S().Infow("plan built", "mode", string(mode), "dry_run", dryRun,
		"disks", len(disks), "actions", len(p.Actions))

	cmdLog, err := orchestrate.New(runner, cfg.Tool).Execute(ctx, p)
	if err != nil {
		return err
	}

	rep := report.Build(start, mode, dryRun, disks, p, cmdLog)
	rep.Render(os.Stdout, short)

	finishRun(rep)

	if rep.ExitCode() != 0 {
		outcomes := rep.OutcomeCounts()
		return fmt.Errorf("run degraded: %d failed, %d skipped",
			outcomes[plan.StateFailed], outcomes[plan.StateSkipped])
	}
	return nil
}

// finishRun handles the run's side outputs: history persistence and
// alerting. Both are best-effort; the report and exit code stand on their
// own.
func finishRun(rep *report.RunReport) {
	if cfg.History.Enabled {
		if err := persistRun(rep); err != nil {
			zap.S().Warnw("history not persisted", "error", err)
		}
	}

	if cfg.Notify.ShoutrrrURL == "" {
		return
	}
	notifier := notify.New(cfg.Notify, nil)
	if !notifier.ShouldAlert(rep) {
		return
	}
	if err := notifier.Alert(rep, recipient); err != nil {
		zap.S().Warnw("alert not delivered", "error", err)
	} else {
		zap.S().Infow("alert delivered", "run", rep.ID.String())
	}
}

func persistRun(rep *report.RunReport) error {
	db, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return history.SaveRun(db, rep)
}
