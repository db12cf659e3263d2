package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"splice/internal/audio"
	"splice/internal/concat"
	"splice/internal/cue"
	"splice/internal/logging"
	"splice/internal/loudness"
	"splice/internal/matcher"
	"splice/internal/report"
	"splice/internal/services"
	"splice/internal/session"
)

// State is a step of the per-session state machine.
type State string

const (
	StateDiscovered   State = "discovered"
	StateMatched      State = "matched"
	StateConcatenated State = "concatenated"
	StateNormalized   State = "normalized"
	StateRelocated    State = "relocated"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Options configures the orchestrator.
type Options struct {
	Prefix          string
	Extension       string
	EditMasters     bool
	Loudness        loudness.Options
	OriginalsDir    string
	PreservationDir string
	EditDir         string
	WorkDir         string
}

// Orchestrator processes sessions.
type Orchestrator struct {
	toolkit  audio.Toolkit
	concat   *concat.Concatenator
	adjuster *loudness.Adjuster
	opts     Options
	logger   *slog.Logger
}

// New constructs an Orchestrator.
func New(toolkit audio.Toolkit, opts Options, logger *slog.Logger) *Orchestrator {
	opts.Extension = strings.ToLower(strings.TrimPrefix(opts.Extension, "."))
	if opts.Extension == "" {
		opts.Extension = "wav"
	}
	return &Orchestrator{
		toolkit:  toolkit,
		concat:   concat.New(toolkit, logger),
		adjuster: loudness.New(toolkit, logger),
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "reconstruct"),
	}
}

// run carries the mutable state of one Process call.
type run struct {
	ctx     context.Context
	logger  *slog.Logger
	outcome report.Outcome
	workDir string
}

func (r *run) transition(state State) {
	r.outcome.State = string(state)
	r.outcome.Transitions = append(r.outcome.Transitions, report.Transition{State: string(state), At: time.Now()})
	r.ctx = services.WithStage(r.ctx, string(state))
	r.logger.Info("session state",
		logging.String(logging.FieldEventType, "session_state"),
		logging.String(logging.FieldStage, string(state)),
	)
}

func (r *run) fail(err error) report.Outcome {
	r.outcome.Status = report.StatusFailed
	r.outcome.Error = err.Error()
	r.outcome.ErrorKind = services.Kind(err)
	r.transition(StateFailed)
	logging.ErrorWithContext(r.logger, "session failed", "session_failed",
		logging.String("error_kind", r.outcome.ErrorKind),
		logging.Error(err),
	)
	r.outcome.FinishedAt = time.Now()
	return r.outcome
}

// aborted reports whether ctx was cancelled and, if so, returns the error
// that ends the session.
func (r *run) aborted(stage State) error {
	if err := r.ctx.Err(); err != nil {
		return services.Wrap(services.ErrAborted, "reconstruct", string(stage), r.outcome.SessionID, err)
	}
	return nil
}

// ProcessDir discovers the session at root and processes it. Discovery
// failures are reported as a failed outcome.
func (o *Orchestrator) ProcessDir(ctx context.Context, root string) report.Outcome {
	started := time.Now()
	s, err := session.Discover(services.WithSessionID(ctx, filepath.Base(root)), root, o.toolkit)
	if err != nil {
		r := o.newRun(ctx, filepath.Base(root), started)
		return r.fail(err)
	}
	return o.process(ctx, s, started)
}

// Process runs one discovered session to completion and returns its outcome.
// It never panics on per-session failures; they are captured in the outcome.
func (o *Orchestrator) Process(ctx context.Context, s *session.DiscSession) report.Outcome {
	return o.process(ctx, s, time.Now())
}

func (o *Orchestrator) newRun(ctx context.Context, id string, started time.Time) *run {
	ctx = services.WithSessionID(ctx, id)
	return &run{
		ctx:     ctx,
		logger:  logging.WithContext(ctx, o.logger),
		outcome: report.Outcome{SessionID: id, StartedAt: started},
	}
}

func (o *Orchestrator) process(ctx context.Context, s *session.DiscSession, started time.Time) report.Outcome {
	r := o.newRun(ctx, s.ID(), started)
	r.transition(StateDiscovered)
	r.outcome.Tracks = len(s.Tracks)

	if len(s.Tracks) == 0 {
		return r.fail(services.Wrap(services.ErrNoTracks, "reconstruct", "discover", s.Root, nil))
	}
	o.noteCue(r, s)

	// Match.
	if err := r.aborted(StateMatched); err != nil {
		return r.fail(err)
	}
	result := matcher.Match(s.Cue, s.Tracks)
	ordered := result.Ordered(s.Cue)
	for i := range ordered {
		ordered[i].Ordinal = i + 1
	}
	r.outcome.UsedFallback = result.UsedFallback || !s.HasCue()
	r.outcome.FallbackTracks = result.FallbackCount()
	for _, entry := range result.UnmatchedEntries {
		r.outcome.UnmatchedEntries = append(r.outcome.UnmatchedEntries, strings.TrimSpace(fmt.Sprintf("%02d %s", entry.Number, entry.Title)))
	}
	for _, f := range result.UnmatchedFiles {
		r.outcome.UnmatchedFiles = append(r.outcome.UnmatchedFiles, f.Name())
	}
	if len(result.UnmatchedEntries) > 0 {
		logging.WarnWithContext(r.logger, "cue entries without a track file", "cue_entries_unmatched",
			logging.Strings("entries", r.outcome.UnmatchedEntries),
			logging.String(logging.FieldImpact, "entries omitted from the master cue sheet"),
		)
	}
	if len(result.UnmatchedFiles) > 0 {
		logging.WarnWithContext(r.logger, "track files without a cue entry", "files_unmatched",
			logging.Strings("files", r.outcome.UnmatchedFiles),
			logging.String(logging.FieldImpact, "files appended after the last cue track"),
		)
	}
	r.transition(StateMatched)

	if err := o.checkContainer(ordered); err != nil {
		return r.fail(err)
	}

	pmName := concat.MasterName(o.opts.Prefix, s.ID(), concat.RolePreservation, o.opts.Extension)
	emName := concat.MasterName(o.opts.Prefix, s.ID(), concat.RoleEdit, o.opts.Extension)
	plan := o.planRelocation(s, pmName, emName)
	if err := plan.checkFree(o.opts.EditMasters); err != nil {
		return r.fail(err)
	}

	workDir, err := os.MkdirTemp(o.opts.WorkDir, s.ID()+"-")
	if err != nil {
		return r.fail(services.Wrap(services.ErrIOFailure, "reconstruct", "work dir", o.opts.WorkDir, err))
	}
	r.workDir = workDir
	defer func() { _ = os.RemoveAll(workDir) }()

	// Concatenate.
	if err := r.aborted(StateConcatenated); err != nil {
		return r.fail(err)
	}
	master, err := o.concat.Concatenate(r.ctx, ordered, filepath.Join(workDir, pmName), metaFor(s))
	if err != nil {
		return r.fail(err)
	}
	r.transition(StateConcatenated)

	// Normalize.
	var edit *loudness.EditMaster
	var editErr error
	if o.opts.EditMasters {
		if err := r.aborted(StateNormalized); err != nil {
			return r.fail(err)
		}
		edit, editErr = o.normalize(r, master, emName)
		if editErr != nil && errors.Is(editErr, services.ErrAborted) {
			return r.fail(editErr)
		}
		if editErr == nil {
			r.transition(StateNormalized)
		}
	}

	// Relocate.
	if err := r.aborted(StateRelocated); err != nil {
		return r.fail(err)
	}
	if err := plan.relocate(master, edit); err != nil {
		return r.fail(err)
	}
	r.outcome.OriginalsDir = plan.originalsDir
	r.outcome.PreservationPath = plan.pmPath
	r.outcome.PreservationCue = plan.pmCuePath
	if edit != nil {
		r.outcome.EditPath = plan.emPath
	}
	r.transition(StateRelocated)

	switch {
	case editErr != nil:
		r.outcome.Status = report.StatusPartial
		r.outcome.Error = editErr.Error()
		r.outcome.ErrorKind = services.Kind(editErr)
	case r.outcome.UsedFallback:
		r.outcome.Status = report.StatusSucceededWithFallback
	default:
		r.outcome.Status = report.StatusSucceeded
	}
	r.transition(StateDone)
	r.outcome.FinishedAt = time.Now()
	r.logger.Info("session reconstructed",
		logging.String(logging.FieldEventType, "session_done"),
		logging.String("status", string(r.outcome.Status)),
		logging.String("preservation_master", r.outcome.PreservationPath),
		logging.Duration("elapsed", r.outcome.Duration()),
	)
	return r.outcome
}

// noteCue records missing or unusable cue sheets on the outcome.
func (o *Orchestrator) noteCue(r *run, s *session.DiscSession) {
	switch {
	case s.CuePath == "":
		r.outcome.MissingCue = true
		logging.WarnWithContext(r.logger, "no cue sheet in session", "cue_missing",
			logging.String(logging.FieldImpact, "tracks ordered by filename"),
		)
	case s.CueErr != nil:
		r.outcome.CueWarning = s.CueErr.Error()
		logging.WarnWithContext(r.logger, "cue sheet unusable", "cue_malformed",
			logging.String("cue", s.CuePath),
			logging.Error(s.CueErr),
			logging.String(logging.FieldImpact, "tracks ordered by filename"),
		)
	}
	if len(s.ExtraCues) > 0 {
		logging.WarnWithContext(r.logger, "extra cue sheets ignored", "cue_extra",
			logging.String("used", s.CuePath),
			logging.Int("ignored", len(s.ExtraCues)),
		)
	}
}

// normalize derives the Edit Master in the work directory and records the
// loudness figures.
func (o *Orchestrator) normalize(r *run, master *concat.Master, emName string) (*loudness.EditMaster, error) {
	dest := filepath.Join(r.workDir, emName)
	edit, err := o.adjuster.Normalize(r.ctx, master.Path, dest, o.opts.Loudness)
	if err != nil {
		logging.WarnWithContext(r.logger, "edit master not produced", "edit_master_failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "preservation master kept; session is partial"),
		)
		return nil, err
	}
	r.outcome.Loudness = &report.Loudness{
		MeasuredLUFS:   edit.Measured.IntegratedLUFS,
		SamplePeakDBFS: edit.Measured.SamplePeakDBFS,
		GainDB:         edit.GainDB,
		PostLUFS:       edit.Post.IntegratedLUFS,
		Copied:         edit.Copied,
	}
	text := cue.ToCueText(master.Meta, emName, cue.FileTypeFor(emName), master.Format.SampleRate, master.Boundaries)
	if err := os.WriteFile(concat.CuePathFor(dest), []byte(text), 0o644); err != nil {
		_ = os.Remove(dest)
		return nil, services.Wrap(services.ErrIOFailure, "reconstruct", "write edit cue", dest, err)
	}
	return edit, nil
}

// checkContainer rejects tracks whose container differs from the master's.
func (o *Orchestrator) checkContainer(files []audio.TrackFile) error {
	for _, f := range files {
		if ext := containerOf(f.Path); ext != o.opts.Extension {
			return services.Wrap(services.ErrFormatMismatch, "reconstruct", "check container",
				fmt.Sprintf("%s: container %s, masters are %s", f.Path, ext, o.opts.Extension), nil)
		}
	}
	return nil
}

func containerOf(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "wave":
		return "wav"
	case "aif":
		return "aiff"
	}
	return ext
}

// metaFor builds disc-level cue fields for the regenerated sheet.
func metaFor(s *session.DiscSession) cue.Meta {
	meta := cue.Meta{Remarks: []cue.Remark{{Key: "SESSION", Value: s.ID()}}}
	if s.Cue == nil {
		return meta
	}
	meta.Title = s.Cue.Title
	meta.Performer = s.Cue.Performer
	for _, rem := range s.Cue.Remarks {
		if rem.Key == cue.RemarkSampleRate || rem.Key == "SESSION" {
			continue
		}
		meta.Remarks = append(meta.Remarks, rem)
	}
	return meta
}
