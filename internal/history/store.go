// Package history persists a summary of each run to a local SQLite
// database. Persistence is best-effort: a store failure is logged by the
// caller and never fails the run itself.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"pdiskrepair/internal/health"
	"pdiskrepair/internal/plan"
	"pdiskrepair/internal/report"
)

const timeFormat = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	mode          TEXT NOT NULL,
	dry_run       INTEGER NOT NULL,
	disks_total   INTEGER NOT NULL,
	needs_attention   INTEGER NOT NULL,
	needs_replacement INTEGER NOT NULL,
	succeeded     INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	skipped       INTEGER NOT NULL,
	exit_code     INTEGER NOT NULL,
	report_text   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_commands (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	command     TEXT NOT NULL,
	invoked_at  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	exit_code   INTEGER NOT NULL,
	attempt     INTEGER NOT NULL,
	executed    INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);`

// Open creates or opens the history database and ensures the schema exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return db, nil
}

// SaveRun records one finished run and its command log in a single
// transaction, so the runs table never holds a run without its commands.
func SaveRun(db *sql.DB, r *report.RunReport) error {
	verdicts := r.VerdictCounts()
	outcomes := r.OutcomeCounts()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs
			(id, started_at, finished_at, mode, dry_run, disks_total,
			 needs_attention, needs_replacement, succeeded, failed, skipped,
			 exit_code, report_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(),
		r.StartedAt.UTC().Format(timeFormat),
		r.FinishedAt.UTC().Format(timeFormat),
		string(r.Mode),
		boolInt(r.DryRun),
		len(r.Disks),
		verdicts[health.VerdictNeedsAttention],
		verdicts[health.VerdictNeedsReplacement],
		outcomes[plan.StateSucceeded],
		outcomes[plan.StateFailed],
		outcomes[plan.StateSkipped],
		r.ExitCode(),
		r.RenderString())
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	for _, inv := range r.Invocations {
		_, err := tx.Exec(`
			INSERT INTO run_commands
				(run_id, command, invoked_at, duration_ms, exit_code, attempt, executed, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(),
			inv.Command,
			inv.Timestamp.UTC().Format(timeFormat),
			inv.Duration.Milliseconds(),
			inv.ExitCode,
			inv.Attempt,
			boolInt(inv.Executed),
			inv.Err)
		if err != nil {
			return fmt.Errorf("save run command: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// RunSummary is one row from the runs table.
type RunSummary struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Mode             string
	DryRun           bool
	DisksTotal       int
	NeedsAttention   int
	NeedsReplacement int
	Succeeded        int
	Failed           int
	Skipped          int
	ExitCode         int
}

// RecentRuns returns the latest N run summaries, newest first.
func RecentRuns(db *sql.DB, limit int) ([]RunSummary, error) {
	rows, err := db.Query(`
		SELECT id, started_at, finished_at, mode, dry_run, disks_total,
		       needs_attention, needs_replacement, succeeded, failed, skipped, exit_code
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished string
		var dryRun int
		if err := rows.Scan(&s.ID, &started, &finished, &s.Mode, &dryRun,
			&s.DisksTotal, &s.NeedsAttention, &s.NeedsReplacement,
			&s.Succeeded, &s.Failed, &s.Skipped, &s.ExitCode); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("run %s: %w", s.ID, err)
		}
		if s.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("run %s: %w", s.ID, err)
		}
		s.DryRun = dryRun == 1
		out = append(out, s)
	}
	return out, rows.Err()
}

// CommandLog returns the recorded invocations for one run, oldest first.
func CommandLog(db *sql.DB, runID string) ([]string, error) {
	rows, err := db.Query(`
		SELECT command FROM run_commands WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("command log: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cmd string
		if err := rows.Scan(&cmd); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		out = append(out, cmd)
	}
	return out, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
