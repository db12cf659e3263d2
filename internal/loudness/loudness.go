// Package loudness derives Edit Masters by measuring integrated loudness and
// applying a single static gain toward the broadcast target.
package loudness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"splice/internal/audio"
	"splice/internal/fileutil"
	"splice/internal/logging"
	"splice/internal/services"
)

const (
	DefaultTargetLUFS  = -23.0
	DefaultToleranceLU = 1.0
	// SilenceFloorLUFS is the absolute gate; a measurement at or below it
	// means no block carried signal.
	SilenceFloorLUFS = -70.0
	// DefaultMeasureTimeout bounds a single measurement pass.
	DefaultMeasureTimeout = 10 * time.Minute
)

// Options configures normalization.
type Options struct {
	TargetLUFS     float64
	ToleranceLU    float64
	MeasureTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TargetLUFS == 0 {
		o.TargetLUFS = DefaultTargetLUFS
	}
	if o.ToleranceLU <= 0 {
		o.ToleranceLU = DefaultToleranceLU
	}
	if o.MeasureTimeout <= 0 {
		o.MeasureTimeout = DefaultMeasureTimeout
	}
	return o
}

// EditMaster describes a written Edit Master.
type EditMaster struct {
	Path   string
	Source string
	// Measured is the Preservation Master's loudness.
	Measured audio.Loudness
	GainDB   float64
	// Post is the loudness of the written file.
	Post audio.Loudness
	// Copied reports that no gain was needed and the file is a byte copy.
	Copied bool
}

// Adjuster measures and corrects loudness through an audio.Toolkit.
type Adjuster struct {
	toolkit audio.Toolkit
	logger  *slog.Logger
}

// New constructs an Adjuster.
func New(toolkit audio.Toolkit, logger *slog.Logger) *Adjuster {
	return &Adjuster{toolkit: toolkit, logger: logging.NewComponentLogger(logger, "loudness")}
}

// Normalize writes dest as the loudness-corrected copy of masterPath. The
// Preservation Master is never modified. When the required gain would push
// the sample peak above 0 dBFS nothing is written and ErrClippingRisk is
// returned.
func (a *Adjuster) Normalize(ctx context.Context, masterPath, dest string, opts Options) (*EditMaster, error) {
	opts = opts.withDefaults()
	logger := logging.WithContext(ctx, a.logger)

	measured, err := a.measure(ctx, masterPath, opts.MeasureTimeout)
	if err != nil {
		return nil, err
	}
	result := &EditMaster{Path: dest, Source: masterPath, Measured: measured}

	deviation := measured.IntegratedLUFS - opts.TargetLUFS
	silent := measured.IntegratedLUFS <= SilenceFloorLUFS
	if silent || math.Abs(deviation) <= opts.ToleranceLU {
		if silent {
			logging.WarnWithContext(logger, "master is silent; edit master left unadjusted", "loudness_silent",
				logging.String("path", masterPath),
				logging.String(logging.FieldImpact, "edit master equals preservation master"),
			)
		}
		if err := fileutil.Stage(dest, func(tmp string) error {
			return fileutil.CopyFileVerified(masterPath, tmp)
		}); err != nil {
			return nil, services.Wrap(services.ErrIOFailure, "loudness", "copy master", dest, err)
		}
		result.Copied = true
		result.Post = measured
		logger.Info("edit master copied",
			logging.String(logging.FieldEventType, "edit_master_written"),
			logging.String("path", dest),
			logging.Float64("measured_lufs", measured.IntegratedLUFS),
		)
		return result, nil
	}

	gain := math.Round((opts.TargetLUFS-measured.IntegratedLUFS)*100) / 100
	if measured.SamplePeakDBFS+gain > 0 {
		return nil, services.Wrap(services.ErrClippingRisk, "loudness", "check headroom",
			fmt.Sprintf("gain %+.2f dB on sample peak %.2f dBFS exceeds full scale", gain, measured.SamplePeakDBFS), nil)
	}
	result.GainDB = gain

	err = fileutil.Stage(dest, func(tmp string) error {
		if err := a.toolkit.ApplyGain(ctx, masterPath, tmp, gain); err != nil {
			return err
		}
		post, err := a.measure(ctx, tmp, opts.MeasureTimeout)
		if err != nil {
			return err
		}
		result.Post = post
		return nil
	})
	if err != nil {
		if services.Kind(err) == "io_failure" && !errors.Is(err, services.ErrIOFailure) {
			err = services.Wrap(services.ErrIOFailure, "loudness", "write edit master", dest, err)
		}
		return nil, err
	}

	if math.Abs(result.Post.IntegratedLUFS-opts.TargetLUFS) > opts.ToleranceLU {
		logging.WarnWithContext(logger, "edit master outside loudness tolerance", "loudness_out_of_tolerance",
			logging.Float64("post_lufs", result.Post.IntegratedLUFS),
			logging.Float64("target_lufs", opts.TargetLUFS),
		)
	}
	logger.Info("edit master written",
		logging.String(logging.FieldEventType, "edit_master_written"),
		logging.String("path", dest),
		logging.Float64("measured_lufs", measured.IntegratedLUFS),
		logging.Float64("gain_db", gain),
		logging.Float64("post_lufs", result.Post.IntegratedLUFS),
	)
	return result, nil
}

// measure runs one bounded measurement pass. Exceeding the bound reports
// ErrMeasurementTimeout; cancellation of ctx itself reports ErrAborted.
func (a *Adjuster) measure(ctx context.Context, path string, timeout time.Duration) (audio.Loudness, error) {
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := a.toolkit.MeasureLoudness(mctx, path)
	if err == nil {
		return result, nil
	}
	switch {
	case ctx.Err() != nil:
		return audio.Loudness{}, services.Wrap(services.ErrAborted, "loudness", "measure", path, ctx.Err())
	case errors.Is(mctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		if errors.Is(err, services.ErrMeasurementTimeout) {
			return audio.Loudness{}, err
		}
		return audio.Loudness{}, services.Wrap(services.ErrMeasurementTimeout, "loudness", "measure",
			fmt.Sprintf("%s: no result within %s", path, timeout), err)
	}
	return audio.Loudness{}, err
}
