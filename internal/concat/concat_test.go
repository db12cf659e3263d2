package concat

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"splice/internal/audio"
	"splice/internal/cue"
	"splice/internal/media/wav"
	"splice/internal/services"
	"splice/internal/testsupport"
)

// lowRate gives exactly 100 samples per cue frame, which keeps fixtures small.
var lowRate = testsupport.WAV{SampleRate: 7500, BitDepth: 8, Channels: 1}

func probeAll(t *testing.T, engine *wav.Engine, paths ...string) []audio.TrackFile {
	t.Helper()
	files := make([]audio.TrackFile, 0, len(paths))
	for i, path := range paths {
		f, err := engine.Probe(context.Background(), path)
		if err != nil {
			t.Fatalf("probe %s: %v", path, err)
		}
		f.Ordinal = i + 1
		files = append(files, f)
	}
	return files
}

func TestMasterName(t *testing.T) {
	if got := MasterName("xyz", "123456", RolePreservation, "wav"); got != "xyz123456_v01f01_pm.wav" {
		t.Fatalf("unexpected preservation name %q", got)
	}
	if got := MasterName("xyz", "123456", RoleEdit, ".flac"); got != "xyz123456_v01f01_em.flac" {
		t.Fatalf("unexpected edit name %q", got)
	}
	if got := CuePathFor("/tmp/pm/xyz123456_v01f01_pm.wav"); got != "/tmp/pm/xyz123456_v01f01_pm.cue" {
		t.Fatalf("unexpected cue path %q", got)
	}
}

func TestConcatenateWritesMasterAndCumulativeCue(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "Track 01.wav")
	second := filepath.Join(dir, "Track 02.wav")
	// 03:12:18 is 14418 cue frames.
	testsupport.WriteWAV(t, first, lowRate, 14418*100, testsupport.Pattern(1))
	testsupport.WriteWAV(t, second, lowRate, 7500, testsupport.Pattern(2))

	engine := wav.New(nil)
	files := probeAll(t, engine, first, second)
	files[0].Title = "Overture"
	files[1].Title = "Finale"

	dest := filepath.Join(dir, "pm", MasterName("xyz", "123456", RolePreservation, "wav"))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	master, err := New(engine, nil).Concatenate(context.Background(), files, dest, cue.Meta{Title: "Session 123456"})
	if err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	if master.Samples != 14418*100+7500 {
		t.Fatalf("unexpected sample count %d", master.Samples)
	}
	want := append(testsupport.WAVData(t, first), testsupport.WAVData(t, second)...)
	if !bytes.Equal(testsupport.WAVData(t, dest), want) {
		t.Fatal("master samples are not the byte-exact join of the inputs")
	}

	doc, err := cue.ReadFile(master.CuePath)
	if err != nil {
		t.Fatalf("read regenerated cue: %v", err)
	}
	if len(doc.Files) != 1 || doc.Files[0].Name != "xyz123456_v01f01_pm.wav" || doc.Files[0].Type != "WAVE" {
		t.Fatalf("unexpected FILE entries %+v", doc.Files)
	}
	if len(doc.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(doc.Tracks))
	}
	if got := doc.Tracks[0].Start().String(); got != "00:00:00" {
		t.Fatalf("track 1 starts at %s", got)
	}
	if got := doc.Tracks[1].Start().String(); got != "03:12:18" {
		t.Fatalf("track 2 starts at %s", got)
	}
	if doc.Tracks[0].Title != "Overture" || doc.Tracks[1].Title != "Finale" {
		t.Fatalf("unexpected titles %q / %q", doc.Tracks[0].Title, doc.Tracks[1].Title)
	}
	if doc.Title != "Session 123456" {
		t.Fatalf("expected disc title carried over, got %q", doc.Title)
	}
}

func TestConcatenateSingleTrackIsCopied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "only.wav")
	testsupport.WriteWAV(t, src, lowRate, 300, testsupport.Pattern(4))
	engine := wav.New(nil)

	dest := filepath.Join(dir, "master.wav")
	if _, err := New(engine, nil).Concatenate(context.Background(), probeAll(t, engine, src), dest, cue.Meta{}); err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	a, _ := os.ReadFile(src)
	b, _ := os.ReadFile(dest)
	if !bytes.Equal(a, b) {
		t.Fatal("single-track master should be a byte copy")
	}
}

func TestConcatenateFormatMismatchWritesNothing(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	testsupport.WriteWAV(t, a, testsupport.CDAudio, 588, testsupport.Pattern(1))
	testsupport.WriteWAV(t, b, testsupport.WAV{SampleRate: 48000, BitDepth: 16, Channels: 2}, 640, testsupport.Pattern(2))
	engine := wav.New(nil)

	dest := filepath.Join(dir, "out", "master.wav")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := New(engine, nil).Concatenate(context.Background(), probeAll(t, engine, a, b), dest, cue.Meta{})
	if !errors.Is(err, services.ErrFormatMismatch) {
		t.Fatalf("expected ErrFormatMismatch, got %v", err)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("b.wav")) {
		t.Fatalf("error should name the offending file: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 0 {
		t.Fatalf("expected no output files, found %d", len(entries))
	}
}

func TestConcatenateNoTracks(t *testing.T) {
	_, err := New(wav.New(nil), nil).Concatenate(context.Background(), nil, filepath.Join(t.TempDir(), "m.wav"), cue.Meta{})
	if !errors.Is(err, services.ErrNoTracks) {
		t.Fatalf("expected ErrNoTracks, got %v", err)
	}
}

func TestConcatenateCancelledLeavesNoMaster(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	testsupport.WriteWAV(t, a, lowRate, 200, testsupport.Pattern(1))
	testsupport.WriteWAV(t, b, lowRate, 200, testsupport.Pattern(2))
	engine := wav.New(nil)
	files := probeAll(t, engine, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(dir, "out", "master.wav")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := New(engine, nil).Concatenate(ctx, files, dest, cue.Meta{}); !errors.Is(err, services.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 0 {
		t.Fatalf("expected empty destination, found %d entries", len(entries))
	}
}
