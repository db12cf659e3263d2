package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"splice/internal/audio"
	"splice/internal/logging"
	"splice/internal/media/ffprobe"
	"splice/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "ffmpeg")
	}
}

// Client wraps ffmpeg/ffprobe CLI interactions.
type Client struct {
	ffmpeg  string
	ffprobe string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

var _ audio.Toolkit = (*Client)(nil)

// New constructs an ffmpeg client. A non-positive timeout disables the limit.
func New(ffmpegBinary, ffprobeBinary string, timeout time.Duration, opts ...Option) (*Client, error) {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffmpegBinary == "" || ffprobeBinary == "" {
		return nil, errors.New("ffmpeg and ffprobe binaries required")
	}
	client := &Client{
		ffmpeg:  ffmpegBinary,
		ffprobe: ffprobeBinary,
		timeout: timeout,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(nil, "ffmpeg"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Probe inspects a file with ffprobe.
func (c *Client) Probe(ctx context.Context, path string) (audio.TrackFile, error) {
	stdout, _, err := c.run(ctx, "probe", c.ffprobe, ffprobe.Args(path))
	if err != nil {
		return audio.TrackFile{}, err
	}
	result, err := ffprobe.Parse(stdout)
	if err != nil {
		return audio.TrackFile{}, services.Wrap(services.ErrIOFailure, "ffmpeg", "probe", path, err)
	}
	stream, ok := result.AudioStream()
	if !ok {
		return audio.TrackFile{}, services.Wrap(services.ErrIOFailure, "ffmpeg", "probe", path+": no audio stream", nil)
	}
	rate := stream.SampleRateHz()
	samples := stream.SampleCount()
	return audio.TrackFile{
		Path: path,
		Format: audio.Format{
			SampleRate: rate,
			BitDepth:   stream.BitDepth(),
			Channels:   stream.Channels,
			Codec:      stream.CodecName,
		},
		Samples:   samples,
		Duration:  audio.DurationFromSamples(samples, rate),
		Title:     result.Tag("title"),
		Performer: result.Tag("artist"),
	}, nil
}

// Concatenate joins inputs with the concat demuxer and stream copy.
func (c *Client) Concatenate(ctx context.Context, inputs []string, dest string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrNoTracks, "ffmpeg", "concatenate", "no inputs", nil)
	}
	list, err := os.CreateTemp(filepath.Dir(dest), ".concat-*.txt")
	if err != nil {
		return services.Wrap(services.ErrIOFailure, "ffmpeg", "concatenate", "create list", err)
	}
	defer os.Remove(list.Name())
	var body strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			abs = input
		}
		fmt.Fprintf(&body, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if _, err := list.WriteString(body.String()); err != nil {
		_ = list.Close()
		return services.Wrap(services.ErrIOFailure, "ffmpeg", "concatenate", "write list", err)
	}
	if err := list.Close(); err != nil {
		return services.Wrap(services.ErrIOFailure, "ffmpeg", "concatenate", "close list", err)
	}

	args := []string{"-nostdin", "-hide_banner", "-v", "error", "-f", "concat", "-safe", "0",
		"-i", list.Name(), "-map", "0:a", "-c", "copy", "-y", dest}
	_, _, err = c.run(ctx, "concatenate", c.ffmpeg, args)
	return cleanupOnError(dest, err)
}

// Extract cuts [start, end) sample frames from src. The source codec is kept.
func (c *Client) Extract(ctx context.Context, src, dest string, start, end int64) error {
	info, err := c.Probe(ctx, src)
	if err != nil {
		return err
	}
	if end < 0 {
		end = info.Samples
	}
	if start < 0 || start >= end || end > info.Samples {
		return services.Wrap(services.ErrBoundary, "ffmpeg", "extract",
			fmt.Sprintf("range [%d, %d) outside %d frames", start, end, info.Samples), nil)
	}
	filter := fmt.Sprintf("atrim=start_sample=%d:end_sample=%d,asetpts=PTS-STARTPTS", start, end)
	args := append([]string{"-nostdin", "-hide_banner", "-v", "error", "-i", src, "-map", "0:a", "-af", filter},
		c.codecArgs(info.Format)...)
	args = append(args, "-y", dest)
	_, _, err = c.run(ctx, "extract", c.ffmpeg, args)
	return cleanupOnError(dest, err)
}

// ApplyGain scales src by gainDB with the volume filter, keeping the codec.
func (c *Client) ApplyGain(ctx context.Context, src, dest string, gainDB float64) error {
	info, err := c.Probe(ctx, src)
	if err != nil {
		return err
	}
	filter := "volume=" + strconv.FormatFloat(gainDB, 'f', 4, 64) + "dB"
	args := append([]string{"-nostdin", "-hide_banner", "-v", "error", "-i", src, "-map", "0:a", "-af", filter},
		c.codecArgs(info.Format)...)
	args = append(args, "-y", dest)
	_, _, err = c.run(ctx, "apply gain", c.ffmpeg, args)
	return cleanupOnError(dest, err)
}

// loudnormReport mirrors the loudnorm print_format=json block.
type loudnormReport struct {
	InputI  string `json:"input_i"`
	InputTP string `json:"input_tp"`
}

// MeasureLoudness runs a loudnorm analysis pass and reads its JSON report.
func (c *Client) MeasureLoudness(ctx context.Context, path string) (audio.Loudness, error) {
	args := []string{"-nostdin", "-hide_banner", "-nostats", "-i", path, "-map", "0:a",
		"-af", "loudnorm=I=-23:print_format=json", "-f", "null", "-"}
	_, stderr, err := c.run(ctx, "measure", c.ffmpeg, args)
	if err != nil {
		return audio.Loudness{}, err
	}
	report, err := parseLoudnorm(stderr)
	if err != nil {
		return audio.Loudness{}, services.Wrap(services.ErrIOFailure, "ffmpeg", "measure", path, err)
	}
	return report, nil
}

func parseLoudnorm(output []byte) (audio.Loudness, error) {
	start := bytes.LastIndexByte(output, '{')
	end := bytes.LastIndexByte(output, '}')
	if start < 0 || end < start {
		return audio.Loudness{}, errors.New("no loudnorm JSON in ffmpeg output")
	}
	var report loudnormReport
	if err := json.Unmarshal(output[start:end+1], &report); err != nil {
		return audio.Loudness{}, fmt.Errorf("decode loudnorm JSON: %w", err)
	}
	integrated, err := parseLevel(report.InputI, -70)
	if err != nil {
		return audio.Loudness{}, fmt.Errorf("input_i: %w", err)
	}
	peak, err := parseLevel(report.InputTP, -144)
	if err != nil {
		return audio.Loudness{}, fmt.Errorf("input_tp: %w", err)
	}
	return audio.Loudness{IntegratedLUFS: integrated, SamplePeakDBFS: peak}, nil
}

// parseLevel parses a dB figure, mapping -inf to floor.
func parseLevel(value string, floor float64) (float64, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "-inf") {
		return floor, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(parsed, -1) || parsed < floor {
		return floor, nil
	}
	return parsed, nil
}

// codecArgs selects an encoder that reproduces the source sample format.
func (c *Client) codecArgs(format audio.Format) []string {
	codec := strings.TrimSpace(format.Codec)
	switch {
	case codec == "flac":
		return []string{"-c:a", "flac", "-sample_fmt", flacSampleFmt(format.BitDepth)}
	case codec != "":
		return []string{"-c:a", codec}
	default:
		return []string{"-c:a", fmt.Sprintf("pcm_s%dle", format.BitDepth)}
	}
}

func flacSampleFmt(bits int) string {
	if bits <= 16 {
		return "s16"
	}
	return "s32"
}

func (c *Client) run(ctx context.Context, operation, binary string, args []string) ([]byte, []byte, error) {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	started := time.Now()
	stdout, stderr, err := c.exec.Run(runCtx, binary, args)
	c.logger.Debug("ffmpeg command finished",
		logging.String("operation", operation),
		logging.String("binary", binary),
		logging.Strings("args", args),
		logging.Duration("elapsed", time.Since(started)),
	)
	if err == nil {
		return stdout, stderr, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, services.Wrap(services.ErrAborted, "ffmpeg", operation, "cancelled", ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		marker := services.ErrIOFailure
		if operation == "measure" {
			marker = services.ErrMeasurementTimeout
		}
		return nil, nil, services.Wrap(marker, "ffmpeg", operation, fmt.Sprintf("timed out after %s", c.timeout), runCtx.Err())
	}
	detail := strings.TrimSpace(string(stderr))
	if len(detail) > 512 {
		detail = detail[len(detail)-512:]
	}
	return nil, nil, services.Wrap(services.ErrIOFailure, "ffmpeg", operation, detail, err)
}

func cleanupOnError(dest string, err error) error {
	if err != nil {
		_ = os.Remove(dest)
	}
	return err
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
