// Package report folds a run's classifications, action outcomes and command
// log into one immutable summary consumed by rendering, alerting and the
// history store.
package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"pdiskrepair/internal/health"
	"pdiskrepair/internal/orchestrate"
	"pdiskrepair/internal/plan"
)

// RunReport aggregates everything one invocation did. It is built once,
// after the orchestrator finishes, and never mutated.
type RunReport struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Mode       plan.Mode
	DryRun     bool

	Disks       []health.ClassifiedDisk
	Actions     []plan.Action // copied by value; the plan stays with the orchestrator
	Invocations []orchestrate.Invocation
}

// Build finalizes a run into a RunReport.
func Build(started time.Time, mode plan.Mode, dryRun bool, disks []health.ClassifiedDisk, p *plan.Plan, log []orchestrate.Invocation) *RunReport {
	r := &RunReport{
		ID:          uuid.New(),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Mode:        mode,
		DryRun:      dryRun,
		Disks:       disks,
		Invocations: log,
	}
	if p != nil {
		r.Actions = make([]plan.Action, 0, len(p.Actions))
		for _, a := range p.Actions {
			r.Actions = append(r.Actions, *a)
		}
	}
	return r
}

// VerdictCounts tallies disks by health verdict.
func (r *RunReport) VerdictCounts() map[health.Verdict]int {
	return lo.CountValuesBy(r.Disks, func(d health.ClassifiedDisk) health.Verdict {
		return d.Verdict
	})
}

// OutcomeCounts tallies actions by terminal state.
func (r *RunReport) OutcomeCounts() map[plan.State]int {
	return lo.CountValuesBy(r.Actions, func(a plan.Action) plan.State {
		return a.State
	})
}

// FlaggedDisks returns disks whose state the tool reported in an
// unrecognized form, for operator attention.
func (r *RunReport) FlaggedDisks() []health.ClassifiedDisk {
	return lo.Filter(r.Disks, func(d health.ClassifiedDisk, _ int) bool {
		return d.Flagged
	})
}

// Unhealthy reports whether any disk needs attention or replacement.
func (r *RunReport) Unhealthy() bool {
	return lo.SomeBy(r.Disks, func(d health.ClassifiedDisk) bool {
		return d.Verdict != health.VerdictHealthy
	})
}

// Degraded reports whether any planned action failed or was skipped.
func (r *RunReport) Degraded() bool {
	return lo.SomeBy(r.Actions, func(a plan.Action) bool {
		return a.State == plan.StateFailed || a.State == plan.StateSkipped
	})
}

// ExitCode is the process exit status for this run: zero only if every
// planned action succeeded or none were required.
func (r *RunReport) ExitCode() int {
	if r.Degraded() {
		return 1
	}
	return 0
}

// Elapsed is the wall-clock duration of the run.
func (r *RunReport) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
