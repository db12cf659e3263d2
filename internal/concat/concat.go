// Package concat joins ordered track files into a single Preservation Master
// and writes the regenerated cue sheet beside it.
package concat

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
	"splice/internal/cue"
	"splice/internal/fileutil"
	"splice/internal/logging"
	"splice/internal/services"
)

// Role is the fixed suffix that distinguishes master kinds.
type Role string

const (
	RolePreservation Role = "pm"
	RoleEdit         Role = "em"
)

// MasterName builds "{prefix}{sessionID}_v01f01_{role}.{ext}".
func MasterName(prefix, sessionID string, role Role, ext string) string {
	return fmt.Sprintf("%s%s_v01f01_%s.%s", prefix, sessionID, role, strings.TrimPrefix(ext, "."))
}

// CuePathFor returns the companion cue path for a master file.
func CuePathFor(masterPath string) string {
	return strings.TrimSuffix(masterPath, filepath.Ext(masterPath)) + ".cue"
}

// Master is a written Preservation Master.
type Master struct {
	Path       string
	CuePath    string
	Format     audio.Format
	Samples    int64
	Duration   time.Duration
	Boundaries []cue.Boundary
	Meta       cue.Meta
}

// Concatenator joins tracks through an audio.Toolkit.
type Concatenator struct {
	toolkit audio.Toolkit
	logger  *slog.Logger
}

// New constructs a Concatenator.
func New(toolkit audio.Toolkit, logger *slog.Logger) *Concatenator {
	return &Concatenator{toolkit: toolkit, logger: logging.NewComponentLogger(logger, "concat")}
}

// Concatenate joins files, in the given order, into dest and writes the
// regenerated cue sheet next to it. Formats are checked before anything is
// written. A single file is copied rather than joined. On failure neither the
// master nor the cue sheet exists at the destination.
func (c *Concatenator) Concatenate(ctx context.Context, files []audio.TrackFile, dest string, meta cue.Meta) (*Master, error) {
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrNoTracks, "concatenate", "check inputs", "no track files to join", nil)
	}
	if err := checkFormats(files); err != nil {
		return nil, err
	}

	format := files[0].Format
	boundaries := make([]cue.Boundary, 0, len(files))
	paths := make([]string, 0, len(files))
	var total int64
	for _, f := range files {
		boundaries = append(boundaries, cue.Boundary{
			Number:    f.Ordinal,
			Title:     f.Title,
			Performer: f.Performer,
			Offset:    total,
		})
		paths = append(paths, f.Path)
		total += f.Samples
	}

	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrAborted, "concatenate", "start", dest, err)
	}

	logger := logging.WithContext(ctx, c.logger)
	err := fileutil.Stage(dest, func(tmp string) error {
		if len(paths) == 1 {
			if err := fileutil.CopyFileVerified(paths[0], tmp); err != nil {
				return services.Wrap(services.ErrIOFailure, "concatenate", "copy single track", paths[0], err)
			}
		} else if err := c.toolkit.Concatenate(ctx, paths, tmp); err != nil {
			return err
		}
		probe, err := c.toolkit.Probe(ctx, tmp)
		if err != nil {
			return err
		}
		if probe.Samples != total {
			return services.Wrap(services.ErrIOFailure, "concatenate", "verify",
				fmt.Sprintf("joined master has %d samples, expected %d", probe.Samples, total), nil)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStageError(err, dest)
	}

	cuePath := CuePathFor(dest)
	text := cue.ToCueText(meta, filepath.Base(dest), cue.FileTypeFor(dest), format.SampleRate, boundaries)
	if err := fileutil.WriteFileAtomic(cuePath, []byte(text), 0o644); err != nil {
		_ = os.Remove(dest)
		return nil, services.Wrap(services.ErrIOFailure, "concatenate", "write cue", cuePath, err)
	}

	master := &Master{
		Path:       dest,
		CuePath:    cuePath,
		Format:     format,
		Samples:    total,
		Duration:   audio.DurationFromSamples(total, format.SampleRate),
		Boundaries: boundaries,
		Meta:       meta,
	}
	logger.Info("preservation master written",
		logging.String(logging.FieldEventType, "master_written"),
		logging.String("path", dest),
		logging.Int("tracks", len(files)),
		logging.Duration("duration", master.Duration),
		logging.String("format", format.String()),
	)
	return master, nil
}

// checkFormats rejects any file whose layout differs from the first one, or
// that has no samples.
func checkFormats(files []audio.TrackFile) error {
	base := files[0].Format
	if base.SampleRate <= 0 || base.BitDepth <= 0 || base.Channels <= 0 {
		return services.Wrap(services.ErrFormatMismatch, "concatenate", "check formats",
			fmt.Sprintf("%s: unknown sample format", files[0].Path), nil)
	}
	for _, f := range files {
		if reason := base.Mismatch(f.Format); reason != "" {
			return services.Wrap(services.ErrFormatMismatch, "concatenate", "check formats",
				fmt.Sprintf("%s: %s", f.Path, reason), nil)
		}
		if f.Samples <= 0 {
			return services.Wrap(services.ErrIOFailure, "concatenate", "check inputs",
				fmt.Sprintf("%s: track has no samples", f.Path), nil)
		}
	}
	return nil
}

// wrapStageError keeps taxonomy markers from the toolkit and tags anything
// else as an IO failure.
func wrapStageError(err error, dest string) error {
	if services.Kind(err) != "io_failure" || errors.Is(err, services.ErrIOFailure) {
		return err
	}
	return services.Wrap(services.ErrIOFailure, "concatenate", "write master", dest, err)
}
