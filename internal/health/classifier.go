// Package health derives a verdict and required action from each disk
// record. Classification is pure: same record in, same verdict out, no side
// effects.
package health

import (
	"fmt"

	"pdiskrepair/internal/mmvdisk"
)

// Verdict is the health label attached to a classified disk.
type Verdict string

const (
	VerdictHealthy          Verdict = "healthy"
	VerdictNeedsAttention   Verdict = "needs_attention"
	VerdictNeedsReplacement Verdict = "needs_replacement"
)

// Action is what the orchestrator should do about a disk.
type Action string

const (
	ActionNone              Action = "none"
	ActionPrepare           Action = "prepare"
	ActionPrepareAndReplace Action = "prepare_and_replace"
)

// ClassifiedDisk is a DiskRecord plus its derived verdict and action.
// Never mutated after creation.
type ClassifiedDisk struct {
	mmvdisk.DiskRecord

	Verdict Verdict
	Action  Action

	// Flagged marks disks whose state the tool reported in a form this
	// program does not recognize, so an operator sees the ambiguity.
	Flagged bool
}

// ClassificationError reports a disk state outside the known enumeration.
// It indicates a programming error (a new state was added to the enum
// without updating the policy) and aborts the run before any action.
type ClassificationError struct {
	Disk  mmvdisk.Ref
	State mmvdisk.DiskState
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: unrecognized disk state %q", e.Disk, e.State)
}

// Classify applies the replacement policy to one disk record.
func Classify(d mmvdisk.DiskRecord) (ClassifiedDisk, error) {
	cd := ClassifiedDisk{DiskRecord: d}

	switch d.State {
	case mmvdisk.StateOK:
		cd.Verdict = VerdictHealthy
		cd.Action = ActionNone
	case mmvdisk.StateNotOK:
		cd.Verdict = VerdictNeedsAttention
		cd.Action = ActionPrepare
	case mmvdisk.StateFailed:
		cd.Verdict = VerdictNeedsReplacement
		cd.Action = ActionPrepareAndReplace
	case mmvdisk.StateReplacing:
		// Replacement already in progress; acting again would double-act.
		cd.Verdict = VerdictNeedsAttention
		cd.Action = ActionNone
	case mmvdisk.StateUnknown:
		cd.Verdict = VerdictNeedsAttention
		cd.Action = ActionNone
		cd.Flagged = true
	default:
		return ClassifiedDisk{}, &ClassificationError{Disk: d.Ref(), State: d.State}
	}

	return cd, nil
}

// ClassifyAll classifies every record, failing on the first unrecognized
// state: classification errors abort the run before anything mutates.
func ClassifyAll(records []mmvdisk.DiskRecord) ([]ClassifiedDisk, error) {
	out := make([]ClassifiedDisk, 0, len(records))
	for _, r := range records {
		cd, err := Classify(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return out, nil
}
