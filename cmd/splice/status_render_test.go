package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"splice/internal/deps"
	"splice/internal/report"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("123456", statusError, "failed", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "123456:", "[ERROR] failed")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Succeeded", statusOK, "3", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false, Detail: `binary "ffmpeg" not found`},
		{Name: "FFprobe", Available: true, Command: "ffprobe"},
		{Name: "Extra", Available: false, Optional: true, Detail: "not configured"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR]") {
		t.Fatalf("expected error line, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: ffprobe)") {
		t.Fatalf("expected ready line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[INFO] optional: not configured") {
		t.Fatalf("expected optional line, got %q", lines[2])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestRenderRunReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rep := report.New("run-1", "/in", start)
	rep.Add(report.Outcome{
		SessionID:        "123456",
		Status:           report.StatusSucceeded,
		Tracks:           2,
		PreservationPath: "/pm/xyz123456_v01f01_pm.wav",
		Loudness:         &report.Loudness{MeasuredLUFS: -18, GainDB: -5, PostLUFS: -23},
	})
	rep.Add(report.Outcome{
		SessionID:    "654321",
		Status:       report.StatusSucceededWithFallback,
		Tracks:       3,
		MissingCue:   true,
		UsedFallback: true,
	})
	rep.Add(report.Outcome{
		SessionID:        "222222",
		Status:           report.StatusSucceededWithFallback,
		Tracks:           2,
		UsedFallback:     true,
		UnmatchedEntries: []string{"03 Encore", "04 Bows"},
		UnmatchedFiles:   []string{"bonus.wav"},
	})
	rep.Add(report.Outcome{
		SessionID: "111111",
		Status:    report.StatusFailed,
		ErrorKind: "format_mismatch",
		Error:     "02.wav: sample rate 48000 Hz, expected 44100 Hz",
	})
	rep.Skip("scratch")
	rep.Finish(start.Add(time.Minute))

	var buf bytes.Buffer
	renderRunReport(&buf, rep, false)
	out := buf.String()
	for _, want := range []string{
		"xyz123456_v01f01_pm.wav",
		"edit -5.0 dB to -23.0 LUFS",
		"missing",
		"format_mismatch",
		"Missing cue",
		"654321",
		"Skipped",
		"scratch",
		"Unmatched",
		"03 Encore, 04 Bows",
		"bonus.wav",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected report to contain %q:\n%s", want, out)
		}
	}
}

func TestRenderOutcomeLine(t *testing.T) {
	line := renderOutcomeLine(report.Outcome{SessionID: "123456", Status: report.StatusPartial, PreservationPath: "/pm/a.wav"}, false)
	if !strings.Contains(line, "[WARN] partial: /pm/a.wav") {
		t.Fatalf("unexpected line %q", line)
	}
}
