package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"splice/internal/report"
)

// Run is one stored batch run.
type Run struct {
	ID          string
	InputRoot   string
	Prefix      string
	EditMasters bool
	StartedAt   time.Time
	FinishedAt  time.Time
	ExitCode    int
	Finished    bool
	Summary     report.Summary
}

// SessionRecord is one stored session outcome.
type SessionRecord struct {
	RunID            string
	SessionID        string
	Status           report.Status
	State            string
	ErrorKind        string
	Error            string
	MissingCue       bool
	UsedFallback     bool
	UnmatchedEntries []string
	UnmatchedFiles   []string
	PreservationPath string
	EditPath         string
	MeasuredLUFS     *float64
	GainDB           *float64
	PostLUFS         *float64
	StartedAt        time.Time
	FinishedAt       time.Time
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// BeginRun records the start of a batch run.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	return s.exec(ctx,
		`INSERT INTO runs (id, input_root, prefix, edit_masters, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.InputRoot, run.Prefix, boolToInt(run.EditMasters), formatTime(run.StartedAt),
	)
}

// RecordSession stores one session outcome for a run.
func (s *Store) RecordSession(ctx context.Context, runID string, o report.Outcome) error {
	entries, err := encodeList(o.UnmatchedEntries)
	if err != nil {
		return err
	}
	files, err := encodeList(o.UnmatchedFiles)
	if err != nil {
		return err
	}
	var measured, gain, post any
	if o.Loudness != nil {
		measured, gain, post = o.Loudness.MeasuredLUFS, o.Loudness.GainDB, o.Loudness.PostLUFS
	}
	return s.exec(ctx,
		`INSERT INTO sessions (
			run_id, session_id, status, state, error_kind, error_message,
			missing_cue, used_fallback, unmatched_entries, unmatched_files,
			preservation_path, edit_path, measured_lufs, gain_db, post_lufs,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.SessionID, string(o.Status), o.State, nullString(o.ErrorKind), nullString(o.Error),
		boolToInt(o.MissingCue), boolToInt(o.UsedFallback), entries, files,
		nullString(o.PreservationPath), nullString(o.EditPath), measured, gain, post,
		formatTime(o.StartedAt), formatTime(o.FinishedAt),
	)
}

// FinishRun stores the final counts and exit code of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time, summary report.Summary, exitCode int) error {
	return s.exec(ctx,
		`UPDATE runs SET finished_at = ?, exit_code = ?, total = ?, succeeded = ?, fallback = ?, partial = ?, failed = ?
		 WHERE id = ?`,
		formatTime(finishedAt), exitCode, summary.Total, summary.Succeeded, summary.Fallback, summary.Partial, summary.Failed,
		runID,
	)
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, input_root, prefix, edit_masters, started_at, finished_at, exit_code,
		total, succeeded, fallback, partial, failed
		FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			editMasters int
			started     sql.NullString
			finished    sql.NullString
			exitCode    sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.InputRoot, &run.Prefix, &editMasters, &started, &finished, &exitCode,
			&run.Summary.Total, &run.Summary.Succeeded, &run.Summary.Fallback, &run.Summary.Partial, &run.Summary.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.EditMasters = editMasters != 0
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		run.Finished = finished.Valid
		run.ExitCode = int(exitCode.Int64)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Sessions returns the outcomes stored for a run, ordered by session ID.
func (s *Store) Sessions(ctx context.Context, runID string) ([]SessionRecord, error) {
	return s.querySessions(ctx, "WHERE run_id = ? ORDER BY session_id, id", runID)
}

// SessionHistory returns every stored outcome for one session, oldest first.
func (s *Store) SessionHistory(ctx context.Context, sessionID string) ([]SessionRecord, error) {
	return s.querySessions(ctx, "WHERE session_id = ? ORDER BY started_at, id", sessionID)
}

func (s *Store) querySessions(ctx context.Context, where string, args ...any) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, session_id, status, state, error_kind, error_message,
		missing_cue, used_fallback, unmatched_entries, unmatched_files,
		preservation_path, edit_path, measured_lufs, gain_db, post_lufs, started_at, finished_at
		FROM sessions `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var (
			rec                      SessionRecord
			status                   string
			errorKind, errorMessage  sql.NullString
			missingCue, usedFallback int
			entries, files           sql.NullString
			pmPath, emPath           sql.NullString
			measured, gain, post     sql.NullFloat64
			started, finished        sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &rec.SessionID, &status, &rec.State, &errorKind, &errorMessage,
			&missingCue, &usedFallback, &entries, &files, &pmPath, &emPath,
			&measured, &gain, &post, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Status = report.Status(status)
		rec.ErrorKind = errorKind.String
		rec.Error = errorMessage.String
		rec.MissingCue = missingCue != 0
		rec.UsedFallback = usedFallback != 0
		rec.UnmatchedEntries = decodeList(entries)
		rec.UnmatchedFiles = decodeList(files)
		rec.PreservationPath = pmPath.String
		rec.EditPath = emPath.String
		rec.MeasuredLUFS = nullFloat(measured)
		rec.GainDB = nullFloat(gain)
		rec.PostLUFS = nullFloat(post)
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func encodeList(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(value sql.NullString) []string {
	if !value.Valid || value.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(value.String), &out); err != nil {
		return nil
	}
	return out
}
