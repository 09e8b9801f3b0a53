// Package mmvdisk is the boundary to the external mmvdisk storage-management
// tool: it invokes the tool's inventory and replacement commands and parses
// their output into typed records. Nothing else in the program shells out.
package mmvdisk

import "strings"

// DiskState is the normalized health state of a pdisk.
type DiskState string

const (
	StateOK        DiskState = "ok"
	StateNotOK     DiskState = "not_ok"
	StateFailed    DiskState = "failed"
	StateReplacing DiskState = "replacing"
	StateUnknown   DiskState = "unknown"
)

// Ref identifies one pdisk within a recovery group.
type Ref struct {
	RecoveryGroup string
	Name          string
}

func (r Ref) String() string {
	return r.RecoveryGroup + "/" + r.Name
}

// DiskRecord is one pdisk as reported by the tool's detail listing. Records
// are created fresh on each inventory pull and never mutated afterwards.
type DiskRecord struct {
	Name          string
	RecoveryGroup string
	State         DiskState
	RawState      string // state string exactly as the tool printed it
	Location      string
	Hardware      string
	UserLocation  string
	Server        string
}

// Ref returns the (recovery group, pdisk) pair identifying this record.
func (d DiskRecord) Ref() Ref {
	return Ref{RecoveryGroup: d.RecoveryGroup, Name: d.Name}
}

// notOKStates are the raw states the tool reports for disks that are
// degraded but not yet marked for replacement.
var notOKStates = map[string]bool{
	"failing":          true,
	"missing":          true,
	"suspended":        true,
	"diagnosing":       true,
	"dead":             true,
	"noPath":           true,
	"PTOW":             true,
	"simulatedFailing": true,
	"simulatedDead":    true,
}

// mapState normalizes a raw pdisk state string. The tool reports compound
// states as slash-separated flags (e.g. "failing/noData"); a disk is marked
// for replacement when any flag contains "replace". Unrecognized states map
// to StateUnknown so they surface in the report instead of being dropped.
func mapState(raw string) DiskState {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StateUnknown
	}
	if raw == "ok" {
		return StateOK
	}

	flags := strings.Split(raw, "/")

	if hasFlag(flags, "replacing") {
		return StateReplacing
	}
	for _, f := range flags {
		if strings.Contains(f, "replace") {
			return StateFailed
		}
	}
	for _, f := range flags {
		if notOKStates[f] {
			return StateNotOK
		}
	}
	return StateUnknown
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
