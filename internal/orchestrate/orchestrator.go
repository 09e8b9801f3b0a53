// Package orchestrate drives a replacement plan through its state machine,
// one external command at a time. It is the only component with externally
// observable side effects.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdiskrepair/internal/config"
	"pdiskrepair/internal/mmvdisk"
	"pdiskrepair/internal/plan"
)

// Outcome markers printed by the tool. Exit codes alone do not distinguish a
// completed prepare from a refused one, so the output text is authoritative.
const (
	prepareDoneMarker  = "Reinsert carrier."
	replaceFailMarker  = "not physically replaced with a new disk."
	dryRunNote         = "dry-run: command constructed but not executed"
	cancelledSkipNote  = "run cancelled before execution"
	prereqFailSkipNote = "prepare did not succeed"
)

// Invocation is one entry in the run's command log. Dry-run entries record
// the constructed command with Executed=false.
type Invocation struct {
	Command   string
	Timestamp time.Time
	Duration  time.Duration
	ExitCode  int
	Attempt   int // 1-based attempt number for the owning action
	Executed  bool
	Err       string
}

// ActionDependencyError reports a replace action reaching the orchestrator
// without a planned prepare. The planner prevents this; seeing it means an
// internal invariant was violated.
type ActionDependencyError struct {
	Disk mmvdisk.Ref
}

func (e *ActionDependencyError) Error() string {
	return fmt.Sprintf("replace %s has no planned prepare action", e.Disk)
}

// Orchestrator executes plans sequentially against the external tool.
type Orchestrator struct {
	runner     mmvdisk.Runner
	binary     string
	maxRetries int
	backoff    time.Duration
}

func New(runner mmvdisk.Runner, cfg config.ToolConfig) *Orchestrator {
	return &Orchestrator{
		runner:     runner,
		binary:     cfg.Binary,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
}

// Execute runs every action in the plan in order, recording the command log.
// A failed action never aborts the rest of the plan; the returned error is
// reserved for internal invariant violations. After cancellation no further
// commands are issued and remaining actions are recorded as skipped.
func (o *Orchestrator) Execute(ctx context.Context, p *plan.Plan) ([]Invocation, error) {
	var log []Invocation

	for i, act := range p.Actions {
		if act.State != plan.StatePending {
			continue
		}

		if ctx.Err() != nil {
			skip(act, cancelledSkipNote)
			continue
		}

		if act.Kind == plan.KindReplace {
			if act.Prereq < 0 {
				act.State = plan.StateFailed
				act.Detail = "internal: no prepare dependency"
				return log, &ActionDependencyError{Disk: act.Disk}
			}
			if p.Actions[act.Prereq].State != plan.StateSucceeded {
				skip(act, prereqFailSkipNote)
				continue
			}
		}

		act.State = plan.StateRunning
		args := commandArgs(act)
		cmdline := o.binary + " " + strings.Join(args, " ")

		if act.DryRun {
			log = append(log, Invocation{
				Command:   cmdline,
				Timestamp: time.Now().UTC(),
				Executed:  false,
			})
			zap.S().Infow("dry-run", "command", cmdline, "disk", act.Disk.String())
			act.State = plan.StateSucceeded
			act.Detail = dryRunNote
			continue
		}

		o.runAction(ctx, act, args, &log)

		if act.State == plan.StateFailed {
			// Gate dependents of this action immediately so the report
			// carries an explicit reason rather than a silent skip.
			for _, later := range p.Actions[i+1:] {
				if later.Prereq == i && later.State == plan.StatePending {
					skip(later, prereqFailSkipNote)
				}
			}
		}
	}

	return log, nil
}

// runAction performs the external invocation with retry on transient
// failures, leaving the action in a terminal state.
func (o *Orchestrator) runAction(ctx context.Context, act *plan.Action, args []string, log *[]Invocation) {
	for attempt := 1; attempt <= o.maxRetries+1; attempt++ {
		start := time.Now().UTC()
		res, err := o.runner.Run(ctx, args...)
		act.Attempts = attempt
		act.Retries = attempt - 1

		entry := Invocation{
			Command:   res.Command,
			Timestamp: start,
			Duration:  res.Duration,
			ExitCode:  res.ExitCode,
			Attempt:   attempt,
			Executed:  true,
		}
		if err != nil {
			entry.Err = err.Error()
		}
		*log = append(*log, entry)

		if err == nil {
			if reason := outcomeFailure(act.Kind, res.Stdout); reason != "" {
				// The tool exited zero but reported it did not do the work.
				// That is an explicit rejection, not a transient fault.
				act.State = plan.StateFailed
				act.Detail = reason
				return
			}
			act.State = plan.StateSucceeded
			return
		}

		var toolErr *mmvdisk.ExternalToolError
		transient := errors.As(err, &toolErr) && toolErr.Transient()
		if !transient || attempt > o.maxRetries {
			act.State = plan.StateFailed
			act.Detail = err.Error()
			return
		}

		zap.S().Warnw("transient failure, retrying",
			"disk", act.Disk.String(), "kind", string(act.Kind),
			"attempt", attempt, "backoff", o.backoff)

		select {
		case <-time.After(o.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			act.State = plan.StateFailed
			act.Detail = err.Error() + " (cancelled during retry backoff)"
			return
		}
	}
}

// commandArgs builds the tool arguments for an action. Argument spellings
// follow the vendor tool: prepare flags the disk for safe removal, the
// bare replace form completes the swap.
func commandArgs(a *plan.Action) []string {
	switch a.Kind {
	case plan.KindPrepare:
		return []string{"pdisk", "replace", "--prepare", "--rg", a.Disk.RecoveryGroup, "--pdisk", a.Disk.Name}
	default:
		return []string{"pdisk", "replace", "--recovery-group", a.Disk.RecoveryGroup, "--pdisk", a.Disk.Name}
	}
}

// outcomeFailure inspects command output for the tool's textual verdict,
// returning a failure reason or "" for success.
func outcomeFailure(kind plan.Kind, stdout string) string {
	switch kind {
	case plan.KindPrepare:
		if !strings.Contains(stdout, prepareDoneMarker) {
			return "tool did not confirm carrier release"
		}
	case plan.KindReplace:
		if strings.Contains(stdout, replaceFailMarker) {
			return "tool reports disk was not physically replaced"
		}
	}
	return ""
}

func skip(a *plan.Action, reason string) {
	a.State = plan.StateSkipped
	a.Detail = reason
}
