package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Format describes the sample layout shared by every file joined into a master.
type Format struct {
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
	Channels   int    `json:"channels"`
	Codec      string `json:"codec,omitempty"`
}

// Mismatch describes how other differs from f, or returns "" when the two
// can be joined without conversion.
func (f Format) Mismatch(other Format) string {
	switch {
	case f.SampleRate != other.SampleRate:
		return fmt.Sprintf("sample rate %d Hz, expected %d Hz", other.SampleRate, f.SampleRate)
	case f.BitDepth != other.BitDepth:
		return fmt.Sprintf("bit depth %d, expected %d", other.BitDepth, f.BitDepth)
	case f.Channels != other.Channels:
		return fmt.Sprintf("%d channels, expected %d", other.Channels, f.Channels)
	}
	return ""
}

func (f Format) String() string {
	codec := f.Codec
	if codec == "" {
		codec = "pcm"
	}
	return fmt.Sprintf("%s %d Hz %d-bit %dch", codec, f.SampleRate, f.BitDepth, f.Channels)
}

// TrackFile is one physical audio file. Samples counts sample frames, one per
// channel group.
type TrackFile struct {
	Path      string        `json:"path"`
	Ordinal   int           `json:"ordinal"`
	Format    Format        `json:"format"`
	Samples   int64         `json:"samples"`
	Duration  time.Duration `json:"duration"`
	Title     string        `json:"title,omitempty"`
	Performer string        `json:"performer,omitempty"`
}

// Name returns the file's base name.
func (t TrackFile) Name() string {
	return filepath.Base(t.Path)
}

// Loudness is an integrated loudness measurement.
type Loudness struct {
	IntegratedLUFS float64 `json:"integrated_lufs"`
	SamplePeakDBFS float64 `json:"sample_peak_dbfs"`
}

// Toolkit is the sample-level capability the reconstruction stages rely on.
// Implementations must preserve sample rate and bit depth and must not
// resample, dither, or re-encode when joining or cutting.
type Toolkit interface {
	// Probe reads format, length, and embedded title/performer tags.
	Probe(ctx context.Context, path string) (TrackFile, error)
	// Concatenate joins inputs in order into dest.
	Concatenate(ctx context.Context, inputs []string, dest string) error
	// Extract copies sample frames [start, end) of src into dest. An end of
	// -1 extracts through the end of the file.
	Extract(ctx context.Context, src, dest string, start, end int64) error
	// MeasureLoudness reports integrated loudness and sample peak.
	MeasureLoudness(ctx context.Context, path string) (Loudness, error)
	// ApplyGain writes src scaled by gainDB into dest.
	ApplyGain(ctx context.Context, src, dest string, gainDB float64) error
}

// DurationFromSamples converts a sample frame count to wall-clock time.
func DurationFromSamples(samples int64, sampleRate int) time.Duration {
	if sampleRate <= 0 || samples <= 0 {
		return 0
	}
	seconds := samples / int64(sampleRate)
	rem := samples % int64(sampleRate)
	return time.Duration(seconds)*time.Second + time.Duration(rem)*time.Second/time.Duration(sampleRate)
}

var trackExtensions = map[string]struct{}{
	".wav":  {},
	".wave": {},
	".flac": {},
	".aif":  {},
	".aiff": {},
	".wv":   {},
}

// IsTrackFile reports whether name has an extension handled as disc audio.
func IsTrackFile(name string) bool {
	_, ok := trackExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
