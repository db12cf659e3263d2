package reconstruct

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"splice/internal/audio"
	"splice/internal/cue"
	"splice/internal/loudness"
	"splice/internal/media/wav"
	"splice/internal/report"
	"splice/internal/session"
	"splice/internal/testsupport"
)

// lowRate gives exactly 100 samples per cue frame.
var lowRate = testsupport.WAV{SampleRate: 7500, BitDepth: 8, Channels: 1}

type layout struct {
	input string
	opts  Options
}

func newLayout(t *testing.T) layout {
	t.Helper()
	root := t.TempDir()
	l := layout{
		input: filepath.Join(root, "incoming"),
		opts: Options{
			Prefix:          "xyz",
			Extension:       "wav",
			OriginalsDir:    filepath.Join(root, "originals"),
			PreservationDir: filepath.Join(root, "pm"),
			EditDir:         filepath.Join(root, "em"),
			WorkDir:         filepath.Join(root, "work"),
		},
	}
	for _, dir := range []string{l.input, l.opts.OriginalsDir, l.opts.PreservationDir, l.opts.EditDir, l.opts.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func (l layout) session(id string) string {
	return filepath.Join(l.input, id)
}

func writeCue(t *testing.T, path, text string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}

const overtureFinaleCue = `TITLE "Session 123456"
FILE "disc.wav" WAVE
  TRACK 01 AUDIO
    TITLE "Overture"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Finale"
    INDEX 01 03:12:18
`

func TestProcessMatchesByTagAndRelocates(t *testing.T) {
	l := newLayout(t)
	dir := l.session("123456")
	first, second := lowRate, lowRate
	first.Title = "Overture"
	second.Title = "Finale"
	testsupport.WriteWAV(t, filepath.Join(dir, "Track 01.wav"), first, 14418*100, testsupport.Pattern(1))
	testsupport.WriteWAV(t, filepath.Join(dir, "Track 02.wav"), second, 7500*2, testsupport.Pattern(2))
	writeCue(t, filepath.Join(dir, "disc.cue"), overtureFinaleCue)

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", outcome.Status, outcome.Error)
	}
	if outcome.State != string(StateDone) {
		t.Fatalf("expected done state, got %s", outcome.State)
	}
	wantStates := []State{StateDiscovered, StateMatched, StateConcatenated, StateRelocated, StateDone}
	if len(outcome.Transitions) != len(wantStates) {
		t.Fatalf("unexpected transitions %+v", outcome.Transitions)
	}
	for i, st := range wantStates {
		if outcome.Transitions[i].State != string(st) {
			t.Fatalf("transition %d = %s, want %s", i, outcome.Transitions[i].State, st)
		}
	}

	wantPM := filepath.Join(l.opts.PreservationDir, "xyz123456_v01f01_pm.wav")
	if outcome.PreservationPath != wantPM {
		t.Fatalf("unexpected master path %q", outcome.PreservationPath)
	}
	doc, err := cue.ReadFile(filepath.Join(l.opts.PreservationDir, "xyz123456_v01f01_pm.cue"))
	if err != nil {
		t.Fatalf("read master cue: %v", err)
	}
	if doc.Tracks[0].Title != "Overture" || doc.Tracks[0].Start().String() != "00:00:00" {
		t.Fatalf("unexpected track 1: %+v", doc.Tracks[0])
	}
	if doc.Tracks[1].Title != "Finale" || doc.Tracks[1].Start().String() != "03:12:18" {
		t.Fatalf("unexpected track 2: %+v", doc.Tracks[1])
	}
	if doc.Title != "Session 123456" {
		t.Fatalf("expected disc title kept, got %q", doc.Title)
	}
	if v, _ := doc.Remark("SESSION"); v != "123456" {
		t.Fatalf("expected session remark, got %q", v)
	}

	for _, name := range []string{"Track 01.wav", "Track 02.wav", "disc.cue"} {
		if _, err := os.Stat(filepath.Join(l.opts.OriginalsDir, "123456", name)); err != nil {
			t.Fatalf("original %s not relocated: %v", name, err)
		}
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected emptied session directory to be removed, stat err=%v", err)
	}
	assertEmptyDir(t, l.opts.WorkDir)
}

func TestProcessWithoutCueFallsBackAlphabetically(t *testing.T) {
	l := newLayout(t)
	dir := l.session("654321")
	for i, name := range []string{"c.wav", "a.wav", "b.wav"} {
		testsupport.WriteWAV(t, filepath.Join(dir, name), lowRate, int64(100*(i+1)), testsupport.Pattern(i))
	}

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusSucceededWithFallback {
		t.Fatalf("expected succeeded-with-fallback, got %s (%s)", outcome.Status, outcome.Error)
	}
	if !outcome.MissingCue || !outcome.UsedFallback || outcome.FallbackTracks != 3 {
		t.Fatalf("unexpected fallback flags %+v", outcome)
	}
	doc, err := cue.ReadFile(outcome.PreservationCue)
	if err != nil {
		t.Fatalf("read master cue: %v", err)
	}
	// a.wav (200 samples) then b.wav (300) then c.wav (100).
	wantOffsets := []string{"0", "200", "500"}
	if len(doc.Tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(doc.Tracks))
	}
	for i, track := range doc.Tracks {
		if v, _ := track.Remark(cue.RemarkSampleOffset); v != wantOffsets[i] {
			t.Fatalf("track %d offset %q, want %q", i+1, v, wantOffsets[i])
		}
	}
}

func TestProcessMalformedCueFallsBack(t *testing.T) {
	l := newLayout(t)
	dir := l.session("222222")
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), lowRate, 100, testsupport.Pattern(1))
	writeCue(t, filepath.Join(dir, "disc.cue"), "FILE \"x.wav\" WAVE\n  TRACK 01 AUDIO\n")

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusSucceededWithFallback {
		t.Fatalf("expected fallback success, got %s (%s)", outcome.Status, outcome.Error)
	}
	if outcome.CueWarning == "" || outcome.MissingCue {
		t.Fatalf("expected cue warning without missing flag, got %+v", outcome)
	}
}

func TestProcessReportsUnmatchedEntries(t *testing.T) {
	l := newLayout(t)
	dir := l.session("333333")
	spec := lowRate
	spec.Title = "Overture"
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), spec, 100, testsupport.Pattern(1))
	writeCue(t, filepath.Join(dir, "disc.cue"), overtureFinaleCue)

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusSucceeded {
		t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Error)
	}
	if len(outcome.UnmatchedEntries) != 1 || outcome.UnmatchedEntries[0] != "02 Finale" {
		t.Fatalf("unexpected unmatched entries %v", outcome.UnmatchedEntries)
	}
}

func TestProcessFormatMismatchFailsWithoutOutput(t *testing.T) {
	l := newLayout(t)
	dir := l.session("444444")
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), testsupport.CDAudio, 588, testsupport.Pattern(1))
	testsupport.WriteWAV(t, filepath.Join(dir, "02.wav"), testsupport.WAV{SampleRate: 48000, BitDepth: 24, Channels: 2}, 640, testsupport.Pattern(2))

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusFailed || outcome.ErrorKind != "format_mismatch" {
		t.Fatalf("expected format mismatch failure, got %s/%s", outcome.Status, outcome.ErrorKind)
	}
	assertEmptyDir(t, l.opts.PreservationDir)
	assertEmptyDir(t, l.opts.WorkDir)
	if _, err := os.Stat(filepath.Join(dir, "01.wav")); err != nil {
		t.Fatalf("sources must stay in place: %v", err)
	}
}

func TestProcessNoTracks(t *testing.T) {
	l := newLayout(t)
	dir := l.session("555555")
	writeCue(t, filepath.Join(dir, "disc.cue"), overtureFinaleCue)

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusFailed || outcome.ErrorKind != "no_tracks" {
		t.Fatalf("expected no_tracks failure, got %s/%s", outcome.Status, outcome.ErrorKind)
	}
}

func TestProcessCancelledLeavesNoMaster(t *testing.T) {
	l := newLayout(t)
	dir := l.session("666666")
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), lowRate, 100, testsupport.Pattern(1))
	testsupport.WriteWAV(t, filepath.Join(dir, "02.wav"), lowRate, 100, testsupport.Pattern(2))

	o := New(wav.New(nil), l.opts, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s, err := session.Discover(ctx, dir, wav.New(nil))
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	outcome := o.Process(ctx, s)
	if outcome.Status != report.StatusFailed || outcome.ErrorKind != "aborted" {
		t.Fatalf("expected aborted failure, got %s/%s", outcome.Status, outcome.ErrorKind)
	}
	assertEmptyDir(t, l.opts.PreservationDir)
	assertEmptyDir(t, l.opts.WorkDir)
}

func TestProcessEditMasterNormalized(t *testing.T) {
	l := newLayout(t)
	l.opts.EditMasters = true
	dir := l.session("777777")
	amplitude := math.Pow(10, (-18+3.01)/20)
	spec := testsupport.WAV{SampleRate: 48000, BitDepth: 24, Channels: 1}
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), spec, 48000*2, testsupport.Sine(997, amplitude, 48000, 24))
	testsupport.WriteWAV(t, filepath.Join(dir, "02.wav"), spec, 48000*2, testsupport.Sine(997, amplitude, 48000, 24))

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if !outcome.Succeeded() || outcome.Status == report.StatusPartial {
		t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Error)
	}
	if outcome.EditPath != filepath.Join(l.opts.EditDir, "xyz777777_v01f01_em.wav") {
		t.Fatalf("unexpected edit path %q", outcome.EditPath)
	}
	if outcome.Loudness == nil || math.Abs(outcome.Loudness.GainDB-(-5)) > 0.1 {
		t.Fatalf("unexpected loudness figures %+v", outcome.Loudness)
	}
	if math.Abs(outcome.Loudness.PostLUFS-(-23)) > 0.1 {
		t.Fatalf("expected -23 LUFS edit master, got %.3f", outcome.Loudness.PostLUFS)
	}
	if _, err := os.Stat(filepath.Join(l.opts.EditDir, "xyz777777_v01f01_em.cue")); err != nil {
		t.Fatalf("edit master cue missing: %v", err)
	}
}

func TestProcessEditFailureIsPartial(t *testing.T) {
	l := newLayout(t)
	l.opts.EditMasters = true
	l.opts.Loudness = loudness.Options{TargetLUFS: -23, ToleranceLU: 1}
	dir := l.session("888888")
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), lowRate, 7500, testsupport.Pattern(1))

	fake := &testsupport.FakeToolkit{
		Toolkit: wav.New(nil),
		MeasureFunc: func(context.Context, string) (audio.Loudness, error) {
			return audio.Loudness{IntegratedLUFS: -35, SamplePeakDBFS: -1}, nil
		},
	}
	outcome := New(fake, l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusPartial || outcome.ErrorKind != "clipping_risk" {
		t.Fatalf("expected partial clipping outcome, got %s/%s", outcome.Status, outcome.ErrorKind)
	}
	if _, err := os.Stat(outcome.PreservationPath); err != nil {
		t.Fatalf("preservation master must be kept: %v", err)
	}
	assertEmptyDir(t, l.opts.EditDir)
}

func TestProcessRefusesExistingDestination(t *testing.T) {
	l := newLayout(t)
	dir := l.session("999999")
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), lowRate, 100, testsupport.Pattern(1))
	existing := filepath.Join(l.opts.PreservationDir, "xyz999999_v01f01_pm.wav")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusFailed || outcome.ErrorKind != "io_failure" {
		t.Fatalf("expected io failure, got %s/%s", outcome.Status, outcome.ErrorKind)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "old" {
		t.Fatal("existing master was overwritten")
	}
	if _, err := os.Stat(filepath.Join(dir, "01.wav")); err != nil {
		t.Fatalf("sources must stay in place: %v", err)
	}
}

func TestProcessRelocationFailureRestoresFiles(t *testing.T) {
	l := newLayout(t)
	dir := l.session("565656")
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), lowRate, 100, testsupport.Pattern(1))
	testsupport.WriteWAV(t, filepath.Join(dir, "02.wav"), lowRate, 100, testsupport.Pattern(2))

	orig := moveFile
	t.Cleanup(func() { moveFile = orig })
	moveFile = func(src, dst string) error {
		if filepath.Base(dst) == "02.wav" && filepath.Dir(filepath.Dir(dst)) == l.opts.OriginalsDir {
			return syscall.EXDEV
		}
		return orig(src, dst)
	}

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusFailed || outcome.ErrorKind != "io_failure" {
		t.Fatalf("expected io failure, got %s/%s (%s)", outcome.Status, outcome.ErrorKind, outcome.Error)
	}
	assertEmptyDir(t, l.opts.PreservationDir)
	assertEmptyDir(t, l.opts.OriginalsDir)
	for _, name := range []string{"01.wav", "02.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s not restored to the session: %v", name, err)
		}
	}

	moveFile = orig
	outcome = New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.Status != report.StatusSucceededWithFallback {
		t.Fatalf("re-run should succeed, got %s (%s)", outcome.Status, outcome.Error)
	}
}

func TestProcessRejectsForeignContainer(t *testing.T) {
	l := newLayout(t)
	dir := l.session("121212")
	testsupport.WriteWAV(t, filepath.Join(dir, "01.wav"), lowRate, 100, testsupport.Pattern(1))
	l.opts.Extension = "flac"

	outcome := New(wav.New(nil), l.opts, nil).ProcessDir(context.Background(), dir)
	if outcome.ErrorKind != "format_mismatch" {
		t.Fatalf("expected format mismatch, got %s (%s)", outcome.ErrorKind, outcome.Error)
	}
}
