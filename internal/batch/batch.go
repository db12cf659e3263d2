// Package batch runs the reconstruction of many disc sessions on a bounded
// worker pool and aggregates their outcomes into one run report.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"splice/internal/history"
	"splice/internal/logging"
	"splice/internal/report"
	"splice/internal/services"
	"splice/internal/session"
)

// ErrLocked indicates another run holds the output lock.
var ErrLocked = errors.New("another splice run holds the output lock")

// Processor reconstructs one session directory.
type Processor interface {
	ProcessDir(ctx context.Context, root string) report.Outcome
}

// Recorder persists runs. history.Store satisfies it.
type Recorder interface {
	BeginRun(ctx context.Context, run history.Run) error
	RecordSession(ctx context.Context, runID string, o report.Outcome) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, summary report.Summary, exitCode int) error
}

// Options configures a Runner.
type Options struct {
	Workers     int
	LockPath    string
	Prefix      string
	EditMasters bool
}

// Runner drives batch runs.
type Runner struct {
	processor Processor
	recorder  Recorder
	opts      Options
	logger    *slog.Logger
}

// New constructs a Runner. recorder may be nil to skip persistence.
func New(processor Processor, recorder Recorder, opts Options, logger *slog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		processor: processor,
		recorder:  recorder,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "batch"),
	}
}

// Run processes every session directory under inputRoot. Entries that are
// not six-digit directories are skipped and logged. Per-session failures are
// recorded in the report and never abort the run.
func (r *Runner) Run(ctx context.Context, inputRoot string) (*report.RunReport, error) {
	dirs, skipped, err := session.ListDirs(inputRoot)
	if err != nil {
		return nil, err
	}
	return r.RunSessions(ctx, inputRoot, dirs, skipped...)
}

// RunSessions processes the given session directories as one run.
func (r *Runner) RunSessions(ctx context.Context, inputRoot string, dirs []string, skipped ...string) (*report.RunReport, error) {
	unlock, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	rep := report.New(runID, inputRoot, time.Now())

	for _, name := range skipped {
		rep.Skip(name)
		logger.Info("skipping non-session entry",
			logging.String(logging.FieldEventType, "entry_skipped"),
			logging.String("name", name),
		)
	}

	// History writes outlive cancellation so aborted runs are still recorded.
	persistCtx := context.WithoutCancel(ctx)
	r.persist(logger, "begin run", func() error {
		return r.recorder.BeginRun(persistCtx, history.Run{
			ID:          runID,
			InputRoot:   inputRoot,
			Prefix:      r.opts.Prefix,
			EditMasters: r.opts.EditMasters,
			StartedAt:   rep.StartedAt,
		})
	})

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("sessions", len(dirs)),
		logging.Int("workers", r.opts.Workers),
	)

	record := func(o report.Outcome) {
		rep.Add(o)
		r.persist(logger, "record session", func() error {
			return r.recorder.RecordSession(persistCtx, runID, o)
		})
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for range min(r.opts.Workers, max(len(dirs), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range jobs {
				record(r.processor.ProcessDir(ctx, dir))
			}
		}()
	}

	var undispatched []string
dispatch:
	for i, dir := range dirs {
		if ctx.Err() != nil {
			undispatched = dirs[i:]
			break
		}
		select {
		case <-ctx.Done():
			undispatched = dirs[i:]
			break dispatch
		case jobs <- dir:
		}
	}
	close(jobs)
	wg.Wait()

	for _, dir := range undispatched {
		now := time.Now()
		record(report.Outcome{
			SessionID:  filepath.Base(dir),
			Status:     report.StatusFailed,
			State:      "discovered",
			Error:      services.Wrap(services.ErrAborted, "batch", "dispatch", "run cancelled before the session started", nil).Error(),
			ErrorKind:  services.Kind(services.ErrAborted),
			StartedAt:  now,
			FinishedAt: now,
		})
	}

	rep.Finish(time.Now())
	summary := rep.Summary()
	r.persist(logger, "finish run", func() error {
		return r.recorder.FinishRun(persistCtx, runID, rep.FinishedAt(), summary, rep.ExitCode())
	})

	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_finished"),
		logging.Int("total", summary.Total),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("succeeded_with_fallback", summary.Fallback),
		logging.Int("partial", summary.Partial),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", rep.FinishedAt().Sub(rep.StartedAt)),
	)
	return rep, nil
}

// acquire takes the exclusive output lock when a lock path is configured.
func (r *Runner) acquire() (func(), error) {
	if r.opts.LockPath == "" {
		return func() {}, nil
	}
	lock := flock.New(r.opts.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, r.opts.LockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}, nil
}

func (r *Runner) persist(logger *slog.Logger, op string, fn func() error) {
	if r.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		logging.WarnWithContext(logger, "history write failed", "history_write_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run not fully recorded in history"),
		)
	}
}
