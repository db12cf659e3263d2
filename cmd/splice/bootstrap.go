package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"splice/internal/audio"
	"splice/internal/batch"
	"splice/internal/config"
	"splice/internal/history"
	"splice/internal/logging"
	"splice/internal/loudness"
	"splice/internal/media/wav"
	"splice/internal/preflight"
	"splice/internal/reconstruct"
	"splice/internal/services/ffmpeg"
	"splice/internal/workdir"
)

const lockFileName = "splice.lock"

// runFlags are the per-invocation overrides shared by join and watch.
type runFlags struct {
	prefix      string
	editMasters bool
	workers     int
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "Project prefix for master filenames (overrides project.prefix)")
	cmd.Flags().BoolVar(&f.editMasters, "edit-masters", false, "Also produce loudness-normalized Edit Masters")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Sessions processed concurrently (overrides batch.workers)")
}

// effectiveConfig applies flag overrides to a copy of cfg and validates the
// resulting prefix.
func (f *runFlags) effectiveConfig(cmd *cobra.Command, cfg *config.Config, inputRoot string) (*config.Config, error) {
	effective := *cfg
	if inputRoot != "" {
		root, err := config.ExpandPath(inputRoot)
		if err != nil {
			return nil, fmt.Errorf("resolve input root: %w", err)
		}
		effective.Paths.InputRoot = root
	}
	if prefix := strings.ToLower(strings.TrimSpace(f.prefix)); prefix != "" {
		effective.Project.Prefix = prefix
	}
	if err := config.ValidatePrefix(effective.Project.Prefix); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("edit-masters") {
		effective.Loudness.Enabled = f.editMasters
	}
	if f.workers > 0 {
		effective.Batch.Workers = f.workers
	}
	return &effective, nil
}

// notify delivers a notification outside the command's cancellation so a
// summary still goes out after Ctrl+C. Failures are logged, never returned.
func notify(logger *slog.Logger, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := send(ctx); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run results were not published"),
		)
	}
}

func newToolkit(cfg *config.Config, logger *slog.Logger) (audio.Toolkit, error) {
	switch cfg.Tools.Engine {
	case config.EngineFFmpeg:
		client, err := ffmpeg.New(cfg.Tools.FFmpegBinary, cfg.Tools.FFprobeBinary, cfg.CommandTimeout(), ffmpeg.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return wav.New(logger), nil
	}
}

func orchestratorOptions(cfg *config.Config) reconstruct.Options {
	return reconstruct.Options{
		Prefix:      cfg.Project.Prefix,
		Extension:   cfg.Project.Extension,
		EditMasters: cfg.Loudness.Enabled,
		Loudness: loudness.Options{
			TargetLUFS:     cfg.Loudness.TargetLUFS,
			ToleranceLU:    cfg.Loudness.ToleranceLU,
			MeasureTimeout: cfg.MeasureTimeout(),
		},
		OriginalsDir:    cfg.Paths.OriginalsDir,
		PreservationDir: cfg.Paths.PreservationDir,
		EditDir:         cfg.Paths.EditDir,
		WorkDir:         cfg.Paths.WorkDir,
	}
}

// newRunner wires the toolkit, orchestrator, and history store into a batch
// runner. The caller closes the returned store.
func newRunner(cfg *config.Config, logger *slog.Logger) (*batch.Runner, *history.Store, error) {
	if err := preflight.Err(preflight.RunAll(cfg)); err != nil {
		return nil, nil, err
	}
	toolkit, err := newToolkit(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	workdir.CleanStale(context.Background(), cfg.Paths.WorkDir, workdir.DefaultMaxAge, logging.NewComponentLogger(logger, "workdir"))

	orchestrator := reconstruct.New(toolkit, orchestratorOptions(cfg), logger)
	runner := batch.New(orchestrator, store, batch.Options{
		Workers:     cfg.Batch.Workers,
		LockPath:    filepath.Join(cfg.Paths.LogDir, lockFileName),
		Prefix:      cfg.Project.Prefix,
		EditMasters: cfg.Loudness.Enabled,
	}, logger)
	return runner, store, nil
}
