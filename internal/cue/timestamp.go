package cue

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FramesPerSecond is the fixed cue sheet timebase.
const FramesPerSecond = 75

// Timestamp is a cue position counted in frames from the start of a file.
type Timestamp int64

// ParseTimestamp parses "mm:ss:ff". Minutes may exceed 99.
func ParseTimestamp(value string) (Timestamp, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timestamp %q: expected mm:ss:ff", value)
	}
	fields := make([]int64, 3)
	for i, part := range parts {
		if part == "" {
			return 0, fmt.Errorf("timestamp %q: empty field", value)
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("timestamp %q: invalid field %q", value, part)
		}
		fields[i] = n
	}
	if fields[1] >= 60 {
		return 0, fmt.Errorf("timestamp %q: seconds out of range", value)
	}
	if fields[2] >= FramesPerSecond {
		return 0, fmt.Errorf("timestamp %q: frames out of range", value)
	}
	return Timestamp((fields[0]*60+fields[1])*FramesPerSecond + fields[2]), nil
}

// TimestampFromSamples converts a sample offset to the nearest frame.
func TimestampFromSamples(samples int64, sampleRate int) Timestamp {
	if sampleRate <= 0 || samples <= 0 {
		return 0
	}
	rate := int64(sampleRate)
	return Timestamp((samples*FramesPerSecond*2 + rate) / (2 * rate))
}

// Frames returns the position in frames.
func (t Timestamp) Frames() int64 { return int64(t) }

// Duration returns the position as wall-clock time.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(int64(t)) * time.Second / FramesPerSecond
}

// Samples converts the position to a sample offset at the given rate,
// rounding to the nearest sample.
func (t Timestamp) Samples(sampleRate int) int64 {
	if sampleRate <= 0 || t <= 0 {
		return 0
	}
	return (int64(t)*int64(sampleRate)*2 + FramesPerSecond) / (2 * FramesPerSecond)
}

func (t Timestamp) String() string {
	frames := int64(t)
	if frames < 0 {
		frames = 0
	}
	minutes := frames / (60 * FramesPerSecond)
	seconds := (frames / FramesPerSecond) % 60
	return fmt.Sprintf("%02d:%02d:%02d", minutes, seconds, frames%FramesPerSecond)
}
