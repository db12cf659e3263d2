// Package split cuts a joined master back into per-track files using the
// boundaries recorded in its cue sheet.
package split

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"splice/internal/audio"
	"splice/internal/cue"
	"splice/internal/fileutil"
	"splice/internal/logging"
	"splice/internal/services"
	"splice/internal/textutil"
)

// Range is the half-open sample span [Start, End) of one track.
type Range struct {
	Number    int
	Title     string
	Performer string
	Start     int64
	End       int64
}

// Splitter extracts tracks through an audio.Toolkit.
type Splitter struct {
	toolkit audio.Toolkit
	logger  *slog.Logger
}

// New constructs a Splitter.
func New(toolkit audio.Toolkit, logger *slog.Logger) *Splitter {
	return &Splitter{toolkit: toolkit, logger: logging.NewComponentLogger(logger, "split")}
}

// SplitFile reads cuePath and splits masterPath into destDir.
func (s *Splitter) SplitFile(ctx context.Context, masterPath, cuePath, destDir string) ([]audio.TrackFile, error) {
	doc, err := cue.ReadFile(cuePath)
	if err != nil {
		return nil, err
	}
	return s.Split(ctx, masterPath, doc, destDir)
}

// Split writes one file per cue track into destDir. Existing files are never
// overwritten. If any track fails, files already produced by this call are
// removed.
func (s *Splitter) Split(ctx context.Context, masterPath string, doc *cue.Document, destDir string) (produced []audio.TrackFile, err error) {
	if doc == nil || len(doc.Tracks) == 0 {
		return nil, services.Wrap(services.ErrNoTracks, "split", "check cue", "cue sheet has no tracks", nil)
	}
	master, err := s.toolkit.Probe(ctx, masterPath)
	if err != nil {
		return nil, err
	}
	ranges, err := Ranges(doc, master.Samples, master.Format.SampleRate)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIOFailure, "split", "create destination", destDir, err)
	}

	ext := strings.TrimPrefix(filepath.Ext(masterPath), ".")
	logger := logging.WithContext(ctx, s.logger)
	defer func() {
		if err == nil {
			return
		}
		for _, f := range produced {
			_ = os.Remove(f.Path)
		}
		produced = nil
	}()

	for _, r := range ranges {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return produced, services.Wrap(services.ErrAborted, "split", "extract", masterPath, ctxErr)
		}
		dest := filepath.Join(destDir, textutil.TrackFileName(r.Number, r.Title, ext))
		if _, statErr := os.Lstat(dest); statErr == nil {
			return produced, services.Wrap(services.ErrIOFailure, "split", "extract", dest, os.ErrExist)
		}
		end := r.End
		if end == master.Samples {
			end = -1
		}
		if err := fileutil.Stage(dest, func(tmp string) error {
			return s.toolkit.Extract(ctx, masterPath, tmp, r.Start, end)
		}); err != nil {
			if services.Kind(err) == "io_failure" && !errors.Is(err, services.ErrIOFailure) {
				err = services.Wrap(services.ErrIOFailure, "split", "extract", dest, err)
			}
			return produced, err
		}
		samples := r.End - r.Start
		produced = append(produced, audio.TrackFile{
			Path:      dest,
			Ordinal:   r.Number,
			Format:    master.Format,
			Samples:   samples,
			Duration:  audio.DurationFromSamples(samples, master.Format.SampleRate),
			Title:     r.Title,
			Performer: r.Performer,
		})
		logger.Debug("track extracted",
			logging.Int("track", r.Number),
			logging.Int64("start_sample", r.Start),
			logging.Int64("end_sample", r.End),
			logging.String("path", dest),
		)
	}

	logger.Info("master split",
		logging.String(logging.FieldEventType, "split_complete"),
		logging.String("master", masterPath),
		logging.Int("tracks", len(produced)),
	)
	return produced, nil
}

// Ranges converts cue positions into sample spans over a master of
// totalSamples at sampleRate. Exact REM SAMPLE_OFFSET values are used when
// the sheet records them for the same rate; otherwise INDEX 01 is rounded to
// the nearest sample. The last track runs to the end of the master.
func Ranges(doc *cue.Document, totalSamples int64, sampleRate int) ([]Range, error) {
	if len(doc.Files) > 1 {
		return nil, services.Wrap(services.ErrBoundary, "split", "compute ranges",
			fmt.Sprintf("cue sheet references %d files; expected one joined master", len(doc.Files)), nil)
	}
	exact := exactOffsets(doc, sampleRate)

	ranges := make([]Range, len(doc.Tracks))
	for i, track := range doc.Tracks {
		start := track.Start().Samples(sampleRate)
		if exact != nil {
			start = exact[i]
		}
		if start >= totalSamples {
			return nil, services.Wrap(services.ErrBoundary, "split", "compute ranges",
				fmt.Sprintf("track %d starts at %s, at or after the end of the master", track.Number, track.Start()), nil)
		}
		if i > 0 && start <= ranges[i-1].Start {
			return nil, services.Wrap(services.ErrBoundary, "split", "compute ranges",
				fmt.Sprintf("track %d does not start after track %d", track.Number, ranges[i-1].Number), nil)
		}
		ranges[i] = Range{
			Number:    track.Number,
			Title:     track.Title,
			Performer: doc.TrackPerformer(track),
			Start:     start,
		}
		if i > 0 {
			ranges[i-1].End = start
		}
	}
	ranges[len(ranges)-1].End = totalSamples
	return ranges, nil
}

// exactOffsets returns per-track sample offsets when the sheet carries a
// complete set recorded at sampleRate, or nil.
func exactOffsets(doc *cue.Document, sampleRate int) []int64 {
	rate, ok := doc.Remark(cue.RemarkSampleRate)
	if !ok || rate != strconv.Itoa(sampleRate) {
		return nil
	}
	offsets := make([]int64, len(doc.Tracks))
	for i, track := range doc.Tracks {
		raw, ok := track.Remark(cue.RemarkSampleOffset)
		if !ok {
			return nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return nil
		}
		// An offset that disagrees with INDEX 01 by more than one frame
		// means the sheet was edited by hand; trust the INDEX.
		if d := v - track.Start().Samples(sampleRate); d > int64(sampleRate/cue.FramesPerSecond) || -d > int64(sampleRate/cue.FramesPerSecond) {
			return nil
		}
		offsets[i] = v
	}
	return offsets
}
