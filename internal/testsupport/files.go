package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TwoTrackCue describes an Overture starting at 00:00:00 and a Finale three
// frames later, which is 300 samples at the 7500 Hz fixture rate.
const TwoTrackCue = "FILE \"disc.wav\" WAVE\n" +
	"  TRACK 01 AUDIO\n    TITLE \"Overture\"\n    INDEX 01 00:00:00\n" +
	"  TRACK 02 AUDIO\n    TITLE \"Finale\"\n    INDEX 01 00:00:03\n"

// WriteText writes text to path, creating parent directories.
func WriteText(t testing.TB, path, text string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteExtractLog writes a ripper log with one line per track. Sessions carry
// these next to their audio and relocation must move them into originals.
func WriteExtractLog(t testing.TB, path string, tracks int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Exact Audio Copy extraction logfile\n\n")
	for i := 1; i <= tracks; i++ {
		fmt.Fprintf(&b, "Track %2d\n     Copy OK\n", i)
	}
	WriteText(t, path, b.String())
}
