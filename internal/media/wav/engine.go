package wav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"splice/internal/audio"
	"splice/internal/logging"
	"splice/internal/services"
)

const copyBufferSize = 256 * 1024

// Engine implements audio.Toolkit for PCM WAVE files.
type Engine struct {
	logger *slog.Logger
}

// New constructs the native engine.
func New(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.NewComponentLogger(logger, "wav")}
}

var _ audio.Toolkit = (*Engine)(nil)

type source struct {
	file   *os.File
	header Header
}

func open(path string) (*source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIOFailure, "wav", "open", path, err)
	}
	header, err := ReadHeader(file)
	if err != nil {
		_ = file.Close()
		return nil, services.Wrap(services.ErrIOFailure, "wav", "read header", path, err)
	}
	return &source{file: file, header: header}, nil
}

func (s *source) Close() error { return s.file.Close() }

// dataReader returns a reader over frames [start, end) of the data chunk.
func (s *source) dataReader(start, end int64) *io.SectionReader {
	align := int64(s.header.BlockAlign)
	return io.NewSectionReader(s.file, s.header.DataOffset+start*align, (end-start)*align)
}

// Probe reads the header and INFO tags of a WAVE file.
func (e *Engine) Probe(_ context.Context, path string) (audio.TrackFile, error) {
	src, err := open(path)
	if err != nil {
		return audio.TrackFile{}, err
	}
	defer src.Close()
	h := src.header
	return audio.TrackFile{
		Path:      path,
		Format:    h.Format,
		Samples:   h.Frames(),
		Duration:  audio.DurationFromSamples(h.Frames(), h.Format.SampleRate),
		Title:     h.Title,
		Performer: h.Performer,
	}, nil
}

// Concatenate joins the data chunks of inputs into dest. All inputs must share
// sample rate, bit depth, and channel count.
func (e *Engine) Concatenate(ctx context.Context, inputs []string, dest string) (err error) {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrNoTracks, "wav", "concatenate", "no inputs", nil)
	}
	sources := make([]*source, 0, len(inputs))
	defer func() {
		for _, src := range sources {
			_ = src.Close()
		}
	}()
	var total int64
	for _, path := range inputs {
		src, err := open(path)
		if err != nil {
			return err
		}
		sources = append(sources, src)
		if reason := sources[0].header.Format.Mismatch(src.header.Format); reason != "" {
			return services.Wrap(services.ErrFormatMismatch, "wav", "concatenate", fmt.Sprintf("%s: %s", path, reason), nil)
		}
		total += src.header.Frames() * int64(src.header.BlockAlign)
	}

	out, err := createOutput(dest)
	if err != nil {
		return err
	}
	defer func() { err = finishOutput(out, dest, err) }()

	if err := writeHeader(out, sources[0].header.fmtChunk, total, nil); err != nil {
		return err
	}
	for _, src := range sources {
		reader := src.dataReader(0, src.header.Frames())
		if err := copyContext(ctx, out, reader); err != nil {
			return services.Wrap(services.ErrIOFailure, "wav", "concatenate", src.file.Name(), err)
		}
	}
	if err := writePad(out, total); err != nil {
		return services.Wrap(services.ErrIOFailure, "wav", "concatenate", dest, err)
	}
	e.logger.Debug("wav concatenated", logging.Int("inputs", len(inputs)), logging.Int64("data_bytes", total))
	return nil
}

// Extract copies frames [start, end) of src into dest.
func (e *Engine) Extract(ctx context.Context, srcPath, dest string, start, end int64) (err error) {
	src, err := open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	frames := src.header.Frames()
	if end < 0 {
		end = frames
	}
	if start < 0 || start >= end || end > frames {
		return services.Wrap(services.ErrBoundary, "wav", "extract",
			fmt.Sprintf("range [%d, %d) outside %d frames", start, end, frames), nil)
	}

	out, err := createOutput(dest)
	if err != nil {
		return err
	}
	defer func() { err = finishOutput(out, dest, err) }()

	size := (end - start) * int64(src.header.BlockAlign)
	if err := writeHeader(out, src.header.fmtChunk, size, nil); err != nil {
		return err
	}
	if err := copyContext(ctx, out, src.dataReader(start, end)); err != nil {
		return services.Wrap(services.ErrIOFailure, "wav", "extract", srcPath, err)
	}
	return writePad(out, size)
}

// ApplyGain scales every sample by gainDB at the source bit depth. A sample
// that would exceed full scale fails the operation with ErrClippingRisk.
func (e *Engine) ApplyGain(ctx context.Context, srcPath, dest string, gainDB float64) (err error) {
	src, err := open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	h := src.header
	out, err := createOutput(dest)
	if err != nil {
		return err
	}
	defer func() { err = finishOutput(out, dest, err) }()

	size := h.Frames() * int64(h.BlockAlign)
	if err := writeHeader(out, h.fmtChunk, size, nil); err != nil {
		return err
	}

	factor := math.Pow(10, gainDB/20)
	bits := h.Format.BitDepth
	width := bits / 8
	lo, hi := sampleLimits(bits)
	var position int64
	err = eachChunk(ctx, src.dataReader(0, h.Frames()), h.BlockAlign, func(buf []byte) error {
		for off := 0; off < len(buf); off += width {
			scaled := math.Round(float64(decodeSample(buf[off:], bits)) * factor)
			if scaled > float64(hi) || scaled < float64(lo) {
				frame := position + int64(off/h.BlockAlign)
				return services.Wrap(services.ErrClippingRisk, "wav", "apply gain",
					fmt.Sprintf("%+.2f dB clips at frame %d", gainDB, frame), nil)
			}
			encodeSample(buf[off:], bits, int32(scaled))
		}
		position += int64(len(buf) / h.BlockAlign)
		_, werr := out.Write(buf)
		return werr
	})
	if err != nil {
		return err
	}
	return writePad(out, size)
}

// MeasureLoudness computes BS.1770 integrated loudness and sample peak.
func (e *Engine) MeasureLoudness(ctx context.Context, path string) (audio.Loudness, error) {
	src, err := open(path)
	if err != nil {
		return audio.Loudness{}, err
	}
	defer src.Close()

	h := src.header
	meter := NewMeter(h.Format.SampleRate, h.Format.Channels)
	bits := h.Format.BitDepth
	width := bits / 8
	scale := fullScale(bits)
	frame := make([]float64, h.Format.Channels)
	err = eachChunk(ctx, src.dataReader(0, h.Frames()), h.BlockAlign, func(buf []byte) error {
		for off := 0; off < len(buf); off += h.BlockAlign {
			for ch := range frame {
				frame[ch] = float64(decodeSample(buf[off+ch*width:], bits)) / scale
			}
			meter.Add(frame)
		}
		return nil
	})
	if err != nil {
		return audio.Loudness{}, services.Wrap(services.ErrIOFailure, "wav", "measure", path, err)
	}
	result := audio.Loudness{IntegratedLUFS: meter.Integrated(), SamplePeakDBFS: meter.PeakDBFS()}
	e.logger.Debug("wav loudness measured",
		logging.String("path", path),
		logging.Float64("integrated_lufs", result.IntegratedLUFS),
		logging.Float64("sample_peak_dbfs", result.SamplePeakDBFS),
	)
	return result, nil
}

func createOutput(dest string) (*os.File, error) {
	out, err := os.Create(dest)
	if err != nil {
		return nil, services.Wrap(services.ErrIOFailure, "wav", "create", dest, err)
	}
	return out, nil
}

// finishOutput closes out and removes it when the write failed.
func finishOutput(out *os.File, dest string, err error) error {
	closeErr := out.Close()
	if err == nil && closeErr != nil {
		err = services.Wrap(services.ErrIOFailure, "wav", "close", dest, closeErr)
	}
	if err != nil {
		_ = os.Remove(dest)
	}
	return err
}

// copyContext copies r into w, checking ctx between buffers.
func copyContext(ctx context.Context, w io.Writer, r io.Reader) error {
	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// eachChunk reads r in whole-frame buffers and hands each to fn.
func eachChunk(ctx context.Context, r io.Reader, blockAlign int, fn func([]byte) error) error {
	buf := make([]byte, (copyBufferSize/blockAlign)*blockAlign)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			n -= n % blockAlign
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
