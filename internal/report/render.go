package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"pdiskrepair/internal/health"
	"pdiskrepair/internal/plan"
)

const summaryRounding = 10 * time.Millisecond

// Render writes the human-readable report: a disk table, an action table
// when actions were planned, and a summary footer. short drops the hardware
// and user-location columns.
func (r *RunReport) Render(w io.Writer, short bool) {
	r.renderDisks(w, short)
	if len(r.Actions) > 0 {
		fmt.Fprintln(w)
		r.renderActions(w)
	}
	fmt.Fprintln(w)
	r.renderSummary(w)
}

// RenderString returns the full-width rendering, used for alert bodies and
// the history store.
func (r *RunReport) RenderString() string {
	var sb strings.Builder
	r.Render(&sb, false)
	return sb.String()
}

func (r *RunReport) renderDisks(w io.Writer, short bool) {
	if len(r.Disks) == 0 {
		fmt.Fprintln(w, "All pdisks are healthy; nothing to do.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	if short {
		t.AppendHeader(table.Row{"Name", "RecoveryGroup", "State", "Location", "Server", "Verdict"})
		for _, d := range r.Disks {
			t.AppendRow(table.Row{d.Name, d.RecoveryGroup, d.RawState, d.Location, d.Server, verdictCell(d)})
		}
	} else {
		t.AppendHeader(table.Row{"Name", "RecoveryGroup", "State", "Location", "Hardware", "User location", "Server", "Verdict"})
		for _, d := range r.Disks {
			t.AppendRow(table.Row{d.Name, d.RecoveryGroup, d.RawState, d.Location, d.Hardware, d.UserLocation, d.Server, verdictCell(d)})
		}
	}
	t.Render()
}

func (r *RunReport) renderActions(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Disk", "Action", "Outcome", "Attempts", "Detail"})
	for _, a := range r.Actions {
		t.AppendRow(table.Row{a.Disk.String(), string(a.Kind), string(a.State), a.Attempts, a.Detail})
	}
	t.Render()
}

func (r *RunReport) renderSummary(w io.Writer) {
	verdicts := r.VerdictCounts()
	outcomes := r.OutcomeCounts()

	fmt.Fprintf(w, "Run %s (mode=%s dry-run=%v) finished in %s\n",
		r.ID, r.Mode, r.DryRun, r.Elapsed().Round(summaryRounding))
	fmt.Fprintf(w, "Disks: %d needs_replacement, %d needs_attention, %d healthy\n",
		verdicts[health.VerdictNeedsReplacement],
		verdicts[health.VerdictNeedsAttention],
		verdicts[health.VerdictHealthy])
	fmt.Fprintf(w, "Actions: %d succeeded, %d failed, %d skipped\n",
		outcomes[plan.StateSucceeded],
		outcomes[plan.StateFailed],
		outcomes[plan.StateSkipped])

	if flagged := r.FlaggedDisks(); len(flagged) > 0 {
		names := make([]string, 0, len(flagged))
		for _, d := range flagged {
			names = append(names, fmt.Sprintf("%s (state %q)", d.Ref(), d.RawState))
		}
		fmt.Fprintf(w, "Ambiguous disk states need operator review: %s\n", strings.Join(names, ", "))
	}
}

func verdictCell(d health.ClassifiedDisk) string {
	if d.Flagged {
		return string(d.Verdict) + " (ambiguous)"
	}
	return string(d.Verdict)
}
