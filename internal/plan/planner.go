// Package plan turns classified disks into an ordered list of replacement
// actions. Plans are deterministic: the same input always yields the same
// action sequence.
package plan

import (
	"pdiskrepair/internal/health"
	"pdiskrepair/internal/mmvdisk"
)

// Kind is the unit of work an action performs.
type Kind string

const (
	KindPrepare Kind = "prepare"
	KindReplace Kind = "replace"
)

// Mode selects how far the run goes for disks that need replacement.
type Mode string

const (
	// ModePrepare plans prepare actions only, even for disks whose policy
	// calls for full replacement.
	ModePrepare Mode = "prepare"
	// ModeReplace plans the full prepare+replace sequence.
	ModeReplace Mode = "replace"
)

// State is an action's position in its lifecycle. Succeeded, failed and
// skipped are terminal.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Action is one planned unit of work. The orchestrator owns actions for
// their lifetime; state transitions are sequential and never leave a
// terminal state.
type Action struct {
	Disk   mmvdisk.Ref
	Kind   Kind
	DryRun bool

	// Prereq indexes the prepare action this one depends on, -1 if none.
	// A replace is only issued once its prepare succeeded.
	Prereq int

	State    State
	Attempts int    // external invocations made (0 for dry-run)
	Retries  int    // Attempts beyond the first
	Detail   string // outcome explanation: error text or skip reason
}

// Terminal reports whether the action reached a final state.
func (a *Action) Terminal() bool {
	return a.State == StateSucceeded || a.State == StateFailed || a.State == StateSkipped
}

// Plan is an ordered action sequence with a uniform execution mode.
type Plan struct {
	Mode    Mode
	DryRun  bool
	Actions []*Action
}

// Build plans actions for the classified disks in input order. For a disk
// requiring prepare_and_replace the prepare action strictly precedes its
// replace action; disks with action none contribute nothing.
func Build(disks []health.ClassifiedDisk, mode Mode, dryRun bool) *Plan {
	p := &Plan{Mode: mode, DryRun: dryRun}

	for _, d := range disks {
		switch d.Action {
		case health.ActionNone:
			continue
		case health.ActionPrepare:
			p.add(d.Ref(), KindPrepare, -1)
		case health.ActionPrepareAndReplace:
			prepIdx := p.add(d.Ref(), KindPrepare, -1)
			if mode == ModeReplace {
				p.add(d.Ref(), KindReplace, prepIdx)
			}
		}
	}
	return p
}

func (p *Plan) add(disk mmvdisk.Ref, kind Kind, prereq int) int {
	p.Actions = append(p.Actions, &Action{
		Disk:   disk,
		Kind:   kind,
		DryRun: p.DryRun,
		Prereq: prereq,
		State:  StatePending,
	})
	return len(p.Actions) - 1
}
