package audio

import (
	"testing"
	"time"
)

func TestFormatMismatch(t *testing.T) {
	base := Format{SampleRate: 44100, BitDepth: 16, Channels: 2}
	tests := []struct {
		name  string
		other Format
		want  string
	}{
		{"same", base, ""},
		{"codec ignored", Format{SampleRate: 44100, BitDepth: 16, Channels: 2, Codec: "pcm_s16le"}, ""},
		{"rate", Format{SampleRate: 48000, BitDepth: 16, Channels: 2}, "sample rate 48000 Hz, expected 44100 Hz"},
		{"depth", Format{SampleRate: 44100, BitDepth: 24, Channels: 2}, "bit depth 24, expected 16"},
		{"channels", Format{SampleRate: 44100, BitDepth: 16, Channels: 1}, "1 channels, expected 2"},
	}
	for _, tt := range tests {
		if got := base.Mismatch(tt.other); got != tt.want {
			t.Errorf("%s: Mismatch = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDurationFromSamples(t *testing.T) {
	if got := DurationFromSamples(44100*3+22050, 44100); got != 3500*time.Millisecond {
		t.Fatalf("unexpected duration %v", got)
	}
	if got := DurationFromSamples(100, 0); got != 0 {
		t.Fatalf("expected zero for invalid rate, got %v", got)
	}
}

func TestIsTrackFile(t *testing.T) {
	for name, want := range map[string]bool{
		"Track 01.wav": true,
		"a.FLAC":       true,
		"disc.cue":     false,
		"notes.txt":    false,
		"cover.jpg":    false,
	} {
		if got := IsTrackFile(name); got != want {
			t.Errorf("IsTrackFile(%q) = %v, want %v", name, got, want)
		}
	}
}
