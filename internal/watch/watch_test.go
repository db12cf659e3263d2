package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"splice/internal/media/wav"
	"splice/internal/reconstruct"
	"splice/internal/report"
	"splice/internal/testsupport"
)

type recorder struct {
	mu   sync.Mutex
	dirs []string
	seen chan string
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan string, 16)}
}

func (r *recorder) handle(_ context.Context, dir string) error {
	r.mu.Lock()
	r.dirs = append(r.dirs, filepath.Base(dir))
	r.mu.Unlock()
	r.seen <- filepath.Base(dir)
	return nil
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("handled %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func TestWatcherHandlesExistingAndNewSessions(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "111111"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := New(root, 50*time.Millisecond, rec.handle, nil)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, rec.seen, "111111")

	dir := filepath.Join(root, "222222")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "01.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, rec.seen, "222222")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, d := range rec.dirs {
		if d == "notes" {
			t.Fatal("non-session directory must be ignored")
		}
	}
}

func TestSessionDirMapping(t *testing.T) {
	w := New("/in", time.Second, nil, nil)
	tests := map[string]string{
		"/in/123456":              "/in/123456",
		"/in/123456/01.wav":       "/in/123456",
		"/in/123456/sub/x.wav":    "/in/123456",
		"/in/notes/x.wav":         "",
		"/in":                     "",
		"/elsewhere/123456/a.wav": "",
	}
	for path, want := range tests {
		if got := w.sessionDir(path); got != want {
			t.Fatalf("sessionDir(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFlushWaitsForQuietPeriod(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "333333")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	w := New(root, time.Minute, rec.handle, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }
	w.pending[dir] = clock

	clock = clock.Add(30 * time.Second)
	w.flush(context.Background())
	if len(rec.seen) != 0 {
		t.Fatal("directory handled before the quiet period elapsed")
	}
	clock = clock.Add(31 * time.Second)
	w.flush(context.Background())
	waitFor(t, rec.seen, "333333")
	if len(w.pending) != 0 {
		t.Fatal("handled directory should leave the pending set")
	}
}

func TestRelocatedSessionIsHandledOnce(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "incoming")
	opts := reconstruct.Options{
		Prefix:          "xyz",
		Extension:       "wav",
		OriginalsDir:    filepath.Join(base, "originals"),
		PreservationDir: filepath.Join(base, "pm"),
		WorkDir:         filepath.Join(base, "work"),
	}
	for _, d := range []string{root, opts.OriginalsDir, opts.PreservationDir, opts.WorkDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	dir := filepath.Join(root, "123456")
	testsupport.WriteWAV(t, filepath.Join(dir, "Track 01.wav"),
		testsupport.WAV{SampleRate: 7500, BitDepth: 8, Channels: 1}, 300, testsupport.Pattern(1))
	// Discovery skips hidden files, so the directory survives relocation.
	testsupport.WriteText(t, filepath.Join(dir, ".DS_Store"), "finder")

	orchestrator := reconstruct.New(wav.New(nil), opts, nil)
	var mu sync.Mutex
	var statuses []report.Status
	handled := make(chan struct{}, 4)
	handler := func(ctx context.Context, dir string) error {
		outcome := orchestrator.ProcessDir(ctx, dir)
		mu.Lock()
		statuses = append(statuses, outcome.Status)
		mu.Unlock()
		handled <- struct{}{}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(root, 100*time.Millisecond, handler, nil).Run(ctx) }()

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the session")
	}
	time.Sleep(600 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 1 {
		t.Fatalf("session handled %d times (%v), want once", len(statuses), statuses)
	}
	if statuses[0] != report.StatusSucceededWithFallback {
		t.Fatalf("unexpected status %s", statuses[0])
	}
	if _, err := os.Stat(filepath.Join(opts.PreservationDir, "xyz123456_v01f01_pm.wav")); err != nil {
		t.Fatalf("master not relocated: %v", err)
	}
}
