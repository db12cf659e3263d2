package wav

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"splice/internal/services"
	"splice/internal/testsupport"
)

func TestProbeReadsFormatAndTags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Track 01.wav")
	spec := testsupport.CDAudio
	spec.Title = "Overture"
	spec.Performer = "Test Orchestra"
	testsupport.WriteWAV(t, path, spec, 44100, testsupport.Pattern(1))

	track, err := New(nil).Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if track.Format.SampleRate != 44100 || track.Format.BitDepth != 16 || track.Format.Channels != 2 {
		t.Fatalf("unexpected format %+v", track.Format)
	}
	if track.Format.Codec != "pcm_s16le" {
		t.Fatalf("unexpected codec %q", track.Format.Codec)
	}
	if track.Samples != 44100 || track.Duration.Seconds() != 1 {
		t.Fatalf("unexpected length: %d samples %v", track.Samples, track.Duration)
	}
	if track.Title != "Overture" || track.Performer != "Test Orchestra" {
		t.Fatalf("unexpected tags: %q / %q", track.Title, track.Performer)
	}
}

func TestProbeAcceptsExtensiblePCM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ext.wav")
	spec := testsupport.WAV{SampleRate: 48000, BitDepth: 24, Channels: 2, Extensible: true}
	testsupport.WriteWAV(t, path, spec, 480, testsupport.Pattern(2))

	track, err := New(nil).Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if track.Format.BitDepth != 24 || track.Samples != 480 {
		t.Fatalf("unexpected probe result %+v", track)
	}
}

func TestProbeRejectsFloat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "float.wav")
	spec := testsupport.WAV{SampleRate: 48000, BitDepth: 32, Channels: 1}
	testsupport.WriteWAV(t, path, spec, 10, testsupport.Pattern(3))
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[20] = 3
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = New(nil).Probe(context.Background(), path)
	if !errors.Is(err, services.ErrFormatMismatch) {
		t.Fatalf("expected ErrFormatMismatch for float data, got %v", err)
	}
}

func TestConcatenateAndExtractAreInverse(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	spec := testsupport.CDAudio
	lengths := []int64{588 * 75, 588 * 30, 588 * 121}
	var inputs []string
	for i, n := range lengths {
		path := filepath.Join(dir, "in", string(rune('a'+i))+".wav")
		testsupport.WriteWAV(t, path, spec, n, testsupport.Pattern(i))
		inputs = append(inputs, path)
	}

	engine := New(nil)
	master := filepath.Join(dir, "master.wav")
	if err := engine.Concatenate(ctx, inputs, master); err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	probe, err := engine.Probe(ctx, master)
	if err != nil {
		t.Fatalf("Probe master: %v", err)
	}
	if probe.Samples != lengths[0]+lengths[1]+lengths[2] {
		t.Fatalf("unexpected master length %d", probe.Samples)
	}

	var offset int64
	for i, n := range lengths {
		end := offset + n
		if i == len(lengths)-1 {
			end = -1
		}
		out := filepath.Join(dir, "out", string(rune('a'+i))+".wav")
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := engine.Extract(ctx, master, out, offset, end); err != nil {
			t.Fatalf("Extract track %d: %v", i+1, err)
		}
		if !bytes.Equal(testsupport.WAVData(t, out), testsupport.WAVData(t, inputs[i])) {
			t.Fatalf("track %d sample data differs after round trip", i+1)
		}
		offset += n
	}
}

func TestConcatenateRejectsMixedFormats(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "01.wav")
	second := filepath.Join(dir, "02.wav")
	testsupport.WriteWAV(t, first, testsupport.CDAudio, 100, testsupport.Pattern(0))
	testsupport.WriteWAV(t, second, testsupport.WAV{SampleRate: 48000, BitDepth: 16, Channels: 2}, 100, testsupport.Pattern(0))

	dest := filepath.Join(dir, "master.wav")
	err := New(nil).Concatenate(context.Background(), []string{first, second}, dest)
	if !errors.Is(err, services.ErrFormatMismatch) {
		t.Fatalf("expected ErrFormatMismatch, got %v", err)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("02.wav")) {
		t.Fatalf("error should name offending file: %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("no output expected, stat err=%v", statErr)
	}
}

func TestExtractRejectsOutOfRange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	testsupport.WriteWAV(t, src, testsupport.CDAudio, 1000, testsupport.Pattern(0))
	dest := filepath.Join(dir, "out.wav")

	for _, r := range [][2]int64{{1000, -1}, {500, 400}, {0, 1001}} {
		err := New(nil).Extract(context.Background(), src, dest, r[0], r[1])
		if !errors.Is(err, services.ErrBoundary) {
			t.Fatalf("range %v: expected ErrBoundary, got %v", r, err)
		}
	}
}

func TestApplyGainHalvesAndDetectsClipping(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	spec := testsupport.WAV{SampleRate: 44100, BitDepth: 16, Channels: 1}
	testsupport.WriteWAV(t, src, spec, 4, func(frame int64, _ int) int32 {
		return []int32{1000, -1000, 16000, -32768}[frame]
	})

	engine := New(nil)
	half := filepath.Join(dir, "half.wav")
	if err := engine.ApplyGain(ctx, src, half, 20*math.Log10(0.5)); err != nil {
		t.Fatalf("ApplyGain: %v", err)
	}
	data := testsupport.WAVData(t, half)
	want := []int32{500, -500, 8000, -16384}
	for i, w := range want {
		if got := decodeSample(data[i*2:], 16); got != w {
			t.Fatalf("sample %d = %d, want %d", i, got, w)
		}
	}

	loud := filepath.Join(dir, "loud.wav")
	err := engine.ApplyGain(ctx, src, loud, 6)
	if !errors.Is(err, services.ErrClippingRisk) {
		t.Fatalf("expected ErrClippingRisk, got %v", err)
	}
	if _, statErr := os.Stat(loud); !os.IsNotExist(statErr) {
		t.Fatalf("clipped output must be removed, stat err=%v", statErr)
	}
}

func TestMeasureLoudnessFullScaleSine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sine.wav")
	spec := testsupport.WAV{SampleRate: 48000, BitDepth: 24, Channels: 1}
	testsupport.WriteWAV(t, path, spec, 48000*3, testsupport.Sine(997, 1, 48000, 24))

	got, err := New(nil).MeasureLoudness(context.Background(), path)
	if err != nil {
		t.Fatalf("MeasureLoudness: %v", err)
	}
	if math.Abs(got.IntegratedLUFS-(-3.01)) > 0.1 {
		t.Fatalf("expected about -3.01 LUFS, got %.3f", got.IntegratedLUFS)
	}
	if math.Abs(got.SamplePeakDBFS) > 0.01 {
		t.Fatalf("expected peak near 0 dBFS, got %.3f", got.SamplePeakDBFS)
	}
}

func TestGainReachesTargetLoudness(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "pm.wav")
	spec := testsupport.WAV{SampleRate: 44100, BitDepth: 16, Channels: 2}
	testsupport.WriteWAV(t, src, spec, 44100*3, testsupport.Sine(1000, 0.18, 44100, 16))

	engine := New(nil)
	before, err := engine.MeasureLoudness(ctx, src)
	if err != nil {
		t.Fatalf("measure source: %v", err)
	}
	gain := -23 - before.IntegratedLUFS
	dest := filepath.Join(dir, "em.wav")
	if err := engine.ApplyGain(ctx, src, dest, gain); err != nil {
		t.Fatalf("ApplyGain: %v", err)
	}
	after, err := engine.MeasureLoudness(ctx, dest)
	if err != nil {
		t.Fatalf("measure result: %v", err)
	}
	if math.Abs(after.IntegratedLUFS-(-23)) > 0.1 {
		t.Fatalf("expected -23 +/- 0.1 LUFS after %.2f dB gain, got %.3f", gain, after.IntegratedLUFS)
	}
}

func TestMeasureLoudnessSilence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silence.wav")
	testsupport.WriteWAV(t, path, testsupport.CDAudio, 44100, func(int64, int) int32 { return 0 })

	got, err := New(nil).MeasureLoudness(context.Background(), path)
	if err != nil {
		t.Fatalf("MeasureLoudness: %v", err)
	}
	if got.IntegratedLUFS != AbsoluteGateLUFS || got.SamplePeakDBFS != SilenceDBFS {
		t.Fatalf("unexpected silence measurement %+v", got)
	}
}

func TestCancelledContextStopsCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	testsupport.WriteWAV(t, src, testsupport.CDAudio, 1000, testsupport.Pattern(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(dir, "master.wav")
	if err := New(nil).Concatenate(ctx, []string{src}, dest); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("cancelled output must be removed, stat err=%v", err)
	}
}
