package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedCue       = errors.New("malformed cue sheet")
	ErrNoTracks           = errors.New("no audio tracks")
	ErrFormatMismatch     = errors.New("format mismatch")
	ErrIOFailure          = errors.New("io failure")
	ErrMeasurementTimeout = errors.New("loudness measurement timeout")
	ErrClippingRisk       = errors.New("clipping risk")
	ErrBoundary           = errors.New("track boundary error")
	ErrConfiguration      = errors.New("configuration error")
	ErrAborted            = errors.New("aborted")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrIOFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error onto its taxonomy label. Unclassified errors report as
// io_failure since every stage delegates to external tooling or the filesystem.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedCue):
		return "malformed_cue"
	case errors.Is(err, ErrNoTracks):
		return "no_tracks"
	case errors.Is(err, ErrFormatMismatch):
		return "format_mismatch"
	case errors.Is(err, ErrMeasurementTimeout):
		return "measurement_timeout"
	case errors.Is(err, ErrClippingRisk):
		return "clipping_risk"
	case errors.Is(err, ErrBoundary):
		return "boundary_error"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		return "aborted"
	default:
		return "io_failure"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
