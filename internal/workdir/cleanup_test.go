package workdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"splice/internal/logging"
)

func makeDir(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, "partial.wav"), make([]byte, 128), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("set old time: %v", err)
		}
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOnlyOldScratchDirs(t *testing.T) {
	root := t.TempDir()
	oldScratch := filepath.Join(root, "123456-991")
	recentScratch := filepath.Join(root, "654321-17")
	foreign := filepath.Join(root, "keep-me")
	makeDir(t, oldScratch, 2*time.Hour)
	makeDir(t, recentScratch, 0)
	makeDir(t, foreign, 2*time.Hour)

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != oldScratch {
		t.Fatalf("expected only %s removed, got %v", oldScratch, result.Removed)
	}
	if _, err := os.Stat(oldScratch); !os.IsNotExist(err) {
		t.Error("old scratch directory should have been removed")
	}
	for _, keep := range []string{recentScratch, foreign} {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("%s should still exist", keep)
		}
	}
}

func TestListDirectories(t *testing.T) {
	root := t.TempDir()
	makeDir(t, filepath.Join(root, "123456-1"), 0)
	if err := os.WriteFile(filepath.Join(root, "123456-stray.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected one scratch dir, got %d", len(dirs))
	}
	if dirs[0].SessionID != "123456" || dirs[0].Size != 128 {
		t.Fatalf("unexpected entry %+v", dirs[0])
	}
}

func TestIsScratchDir(t *testing.T) {
	tests := map[string]bool{
		"123456-42":  true,
		"123456-":    false,
		"123456":     false,
		"12345-42":   false,
		"abcdef-42":  false,
		"123456-a-b": true,
	}
	for name, want := range tests {
		if got := IsScratchDir(name); got != want {
			t.Errorf("IsScratchDir(%q) = %v, want %v", name, got, want)
		}
	}
}
