// Package report accumulates per-session outcomes of a batch run.
//
// A RunReport is append-only: concurrent workers add independent Outcome
// values and no entry is changed after insertion. Readers get sorted copies.
package report

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Status is the terminal classification of one session.
type Status string

const (
	StatusSucceeded             Status = "succeeded"
	StatusSucceededWithFallback Status = "succeeded-with-fallback"
	StatusPartial               Status = "partial"
	StatusFailed                Status = "failed"
)

// Exit codes reported by RunReport.ExitCode.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitPartial = 2
)

// Transition records one state change of a session.
type Transition struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// Loudness carries Edit Master measurements.
type Loudness struct {
	MeasuredLUFS   float64 `json:"measured_lufs"`
	SamplePeakDBFS float64 `json:"sample_peak_dbfs"`
	GainDB         float64 `json:"gain_db"`
	PostLUFS       float64 `json:"post_lufs"`
	Copied         bool    `json:"copied"`
}

// Outcome is the result of processing one session.
type Outcome struct {
	SessionID        string       `json:"session_id"`
	Status           Status       `json:"status"`
	State            string       `json:"state"`
	Transitions      []Transition `json:"transitions,omitempty"`
	MissingCue       bool         `json:"missing_cue"`
	CueWarning       string       `json:"cue_warning,omitempty"`
	UsedFallback     bool         `json:"used_fallback"`
	FallbackTracks   int          `json:"fallback_tracks,omitempty"`
	UnmatchedEntries []string     `json:"unmatched_entries,omitempty"`
	UnmatchedFiles   []string     `json:"unmatched_files,omitempty"`
	Tracks           int          `json:"tracks"`
	OriginalsDir     string       `json:"originals_dir,omitempty"`
	PreservationPath string       `json:"preservation_path,omitempty"`
	PreservationCue  string       `json:"preservation_cue,omitempty"`
	EditPath         string       `json:"edit_path,omitempty"`
	Loudness         *Loudness    `json:"loudness,omitempty"`
	Error            string       `json:"error,omitempty"`
	ErrorKind        string       `json:"error_kind,omitempty"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
}

// Duration returns the wall time spent on the session.
func (o Outcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() || o.StartedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Succeeded reports whether the Preservation Master was produced.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded || o.Status == StatusSucceededWithFallback || o.Status == StatusPartial
}

// Summary counts sessions per status.
type Summary struct {
	Total      int      `json:"total"`
	Succeeded  int      `json:"succeeded"`
	Fallback   int      `json:"succeeded_with_fallback"`
	Partial    int      `json:"partial"`
	Failed     int      `json:"failed"`
	MissingCue []string `json:"missing_cue,omitempty"`
	Skipped    []string `json:"skipped,omitempty"`
}

// RunReport aggregates outcomes for one batch run.
type RunReport struct {
	RunID     string
	InputRoot string
	StartedAt time.Time

	mu       sync.Mutex
	entries  []Outcome
	skipped  []string
	finished time.Time
}

// New creates an empty report.
func New(runID, inputRoot string, startedAt time.Time) *RunReport {
	return &RunReport{RunID: runID, InputRoot: inputRoot, StartedAt: startedAt}
}

// Add appends an outcome. Safe for concurrent use.
func (r *RunReport) Add(o Outcome) {
	o.Transitions = slices.Clone(o.Transitions)
	o.UnmatchedEntries = slices.Clone(o.UnmatchedEntries)
	o.UnmatchedFiles = slices.Clone(o.UnmatchedFiles)
	if o.Loudness != nil {
		l := *o.Loudness
		o.Loudness = &l
	}
	r.mu.Lock()
	r.entries = append(r.entries, o)
	r.mu.Unlock()
}

// Skip records an input directory that is not a session.
func (r *RunReport) Skip(name string) {
	r.mu.Lock()
	r.skipped = append(r.skipped, name)
	r.mu.Unlock()
}

// Finish stamps the completion time.
func (r *RunReport) Finish(at time.Time) {
	r.mu.Lock()
	r.finished = at
	r.mu.Unlock()
}

// FinishedAt returns the completion time, zero while running.
func (r *RunReport) FinishedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// Entries returns outcomes sorted by session ID.
func (r *RunReport) Entries() []Outcome {
	r.mu.Lock()
	out := slices.Clone(r.entries)
	r.mu.Unlock()
	slices.SortStableFunc(out, func(a, b Outcome) int {
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// Summary counts outcomes per status.
func (r *RunReport) Summary() Summary {
	entries := r.Entries()
	r.mu.Lock()
	skipped := slices.Clone(r.skipped)
	r.mu.Unlock()
	slices.Sort(skipped)

	s := Summary{Total: len(entries), Skipped: skipped}
	for _, e := range entries {
		switch e.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusSucceededWithFallback:
			s.Fallback++
		case StatusPartial:
			s.Partial++
		default:
			s.Failed++
		}
		if e.MissingCue {
			s.MissingCue = append(s.MissingCue, e.SessionID)
		}
	}
	return s
}

// ExitCode maps the run onto a process exit status: any failed session is a
// failure, otherwise any partial session is a partial failure.
func (r *RunReport) ExitCode() int {
	s := r.Summary()
	switch {
	case s.Failed > 0:
		return ExitFailure
	case s.Partial > 0:
		return ExitPartial
	default:
		return ExitSuccess
	}
}

// Document is the machine-readable run summary.
type Document struct {
	RunID      string    `json:"run_id"`
	InputRoot  string    `json:"input_root"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	ExitCode   int       `json:"exit_code"`
	Summary    Summary   `json:"summary"`
	Sessions   []Outcome `json:"sessions"`
}

// Snapshot builds the machine-readable form of the report.
func (r *RunReport) Snapshot() Document {
	entries := r.Entries()
	if entries == nil {
		entries = []Outcome{}
	}
	return Document{
		RunID:      r.RunID,
		InputRoot:  r.InputRoot,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt(),
		ExitCode:   r.ExitCode(),
		Summary:    r.Summary(),
		Sessions:   entries,
	}
}
