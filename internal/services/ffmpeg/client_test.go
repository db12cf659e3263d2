package ffmpeg_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"splice/internal/services"
	"splice/internal/services/ffmpeg"
)

const probeJSON = `{"streams":[{"index":0,"codec_name":"pcm_s24le","codec_type":"audio",
"sample_rate":"48000","channels":2,"bits_per_sample":24,"time_base":"1/48000","duration_ts":96000,
"tags":{"title":"Finale"}}],"format":{"filename":"x.wav","tags":{"artist":"Ensemble"}}}`

const loudnormStderr = `[Parsed_loudnorm_0 @ 0x55d] 
{
	"input_i" : "-18.02",
	"input_tp" : "-4.10",
	"input_lra" : "3.20",
	"input_thresh" : "-28.30",
	"output_i" : "-23.00",
	"output_tp" : "-9.10",
	"output_lra" : "3.10",
	"output_thresh" : "-33.30",
	"normalization_type" : "linear",
	"target_offset" : "0.00"
}
`

type stubExecutor struct {
	calls  [][]string
	stdout map[string]string
	stderr map[string]string
	err    error
	block  bool
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	s.calls = append(s.calls, append([]string{binary}, args...))
	if s.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	if s.err != nil {
		return nil, []byte("Invalid data found when processing input"), s.err
	}
	return []byte(s.stdout[binary]), []byte(s.stderr[binary]), nil
}

func newClient(t *testing.T, exec *stubExecutor, timeout time.Duration) *ffmpeg.Client {
	t.Helper()
	client, err := ffmpeg.New("ffmpeg", "ffprobe", timeout, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRequiresBinaries(t *testing.T) {
	if _, err := ffmpeg.New("", "ffprobe", 0); err == nil {
		t.Fatal("expected error for empty ffmpeg binary")
	}
}

func TestProbeMapsStream(t *testing.T) {
	exec := &stubExecutor{stdout: map[string]string{"ffprobe": probeJSON}}
	track, err := newClient(t, exec, time.Minute).Probe(context.Background(), "x.wav")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if track.Format.SampleRate != 48000 || track.Format.BitDepth != 24 || track.Samples != 96000 {
		t.Fatalf("unexpected track %+v", track)
	}
	if track.Duration != 2*time.Second || track.Title != "Finale" || track.Performer != "Ensemble" {
		t.Fatalf("unexpected metadata %+v", track)
	}
}

func TestMeasureLoudnessParsesLoudnorm(t *testing.T) {
	exec := &stubExecutor{stderr: map[string]string{"ffmpeg": loudnormStderr}}
	got, err := newClient(t, exec, time.Minute).MeasureLoudness(context.Background(), "pm.wav")
	if err != nil {
		t.Fatalf("MeasureLoudness: %v", err)
	}
	if math.Abs(got.IntegratedLUFS-(-18.02)) > 1e-9 || math.Abs(got.SamplePeakDBFS-(-4.10)) > 1e-9 {
		t.Fatalf("unexpected loudness %+v", got)
	}
	args := strings.Join(exec.calls[0], " ")
	if !strings.Contains(args, "loudnorm=I=-23:print_format=json") || !strings.Contains(args, "-f null -") {
		t.Fatalf("unexpected measure args %q", args)
	}
}

func TestMeasureLoudnessSilenceMapsToFloor(t *testing.T) {
	exec := &stubExecutor{stderr: map[string]string{"ffmpeg": `{"input_i" : "-inf", "input_tp" : "-inf"}`}}
	got, err := newClient(t, exec, time.Minute).MeasureLoudness(context.Background(), "pm.wav")
	if err != nil {
		t.Fatalf("MeasureLoudness: %v", err)
	}
	if got.IntegratedLUFS != -70 || got.SamplePeakDBFS != -144 {
		t.Fatalf("unexpected floors %+v", got)
	}
}

func TestMeasureTimeoutIsClassified(t *testing.T) {
	exec := &stubExecutor{block: true}
	_, err := newClient(t, exec, 10*time.Millisecond).MeasureLoudness(context.Background(), "pm.wav")
	if !errors.Is(err, services.ErrMeasurementTimeout) {
		t.Fatalf("expected ErrMeasurementTimeout, got %v", err)
	}
}

func TestCommandFailureIsIOFailure(t *testing.T) {
	exec := &stubExecutor{err: errors.New("exit status 1")}
	dest := filepath.Join(t.TempDir(), "out.wav")
	err := newClient(t, exec, time.Minute).Concatenate(context.Background(), []string{"a.wav", "b.wav"}, dest)
	if !errors.Is(err, services.ErrIOFailure) {
		t.Fatalf("expected ErrIOFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
}

func TestConcatenateUsesStreamCopy(t *testing.T) {
	exec := &stubExecutor{}
	dir := t.TempDir()
	dest := filepath.Join(dir, "master.wav")
	if err := newClient(t, exec, time.Minute).Concatenate(context.Background(), []string{"a.wav", "it's.wav"}, dest); err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	call := exec.calls[0]
	if !slices.Contains(call, "concat") || !slices.Contains(call, "copy") || call[len(call)-1] != dest {
		t.Fatalf("unexpected args %v", call)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".concat-*"))
	if len(leftovers) != 0 {
		t.Fatalf("concat list not removed: %v", leftovers)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("stub should not create output, stat err=%v", err)
	}
}

func TestExtractBuildsTrimFilter(t *testing.T) {
	exec := &stubExecutor{stdout: map[string]string{"ffprobe": probeJSON}}
	dest := filepath.Join(t.TempDir(), "01.wav")
	if err := newClient(t, exec, time.Minute).Extract(context.Background(), "x.wav", dest, 48000, -1); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	args := strings.Join(exec.calls[len(exec.calls)-1], " ")
	if !strings.Contains(args, "atrim=start_sample=48000:end_sample=96000") || !strings.Contains(args, "-c:a pcm_s24le") {
		t.Fatalf("unexpected extract args %q", args)
	}

	err := newClient(t, exec, time.Minute).Extract(context.Background(), "x.wav", dest, 96000, -1)
	if !errors.Is(err, services.ErrBoundary) {
		t.Fatalf("expected ErrBoundary, got %v", err)
	}
}

func TestApplyGainKeepsCodec(t *testing.T) {
	exec := &stubExecutor{stdout: map[string]string{"ffprobe": probeJSON}}
	dest := filepath.Join(t.TempDir(), "em.wav")
	if err := newClient(t, exec, time.Minute).ApplyGain(context.Background(), "pm.wav", dest, -5); err != nil {
		t.Fatalf("ApplyGain: %v", err)
	}
	args := strings.Join(exec.calls[len(exec.calls)-1], " ")
	if !strings.Contains(args, "volume=-5.0000dB") || !strings.Contains(args, "-c:a pcm_s24le") {
		t.Fatalf("unexpected gain args %q", args)
	}
}
