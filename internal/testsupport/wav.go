package testsupport

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// WAV describes a PCM fixture file.
type WAV struct {
	SampleRate int
	BitDepth   int
	Channels   int
	Title      string
	Performer  string
	// Extensible writes a WAVE_FORMAT_EXTENSIBLE fmt chunk.
	Extensible bool
}

// CDAudio is 44.1 kHz 16-bit stereo.
var CDAudio = WAV{SampleRate: 44100, BitDepth: 16, Channels: 2}

// SampleFunc yields the signed sample for a frame and channel.
type SampleFunc func(frame int64, channel int) int32

// Pattern returns a deterministic, seed-dependent sample pattern that fits
// any bit depth from 8 to 32.
func Pattern(seed int) SampleFunc {
	return func(frame int64, channel int) int32 {
		v := (frame*31 + int64(channel)*7 + int64(seed)*101) % 199
		return int32(v - 99)
	}
}

// Sine returns a full-band sine of the given frequency whose peak is
// amplitude (0..1) of full scale at the given bit depth.
func Sine(freq, amplitude float64, sampleRate, bitDepth int) SampleFunc {
	full := float64(int64(1)<<(bitDepth-1)) - 1
	return func(frame int64, _ int) int32 {
		return int32(math.Round(amplitude * full * math.Sin(2*math.Pi*freq*float64(frame)/float64(sampleRate))))
	}
}

// FramesPerCDFrame is the number of sample frames in one 1/75 s cue frame.
func (w WAV) FramesPerCDFrame() int64 {
	return int64(w.SampleRate / 75)
}

// WriteWAV writes a PCM WAVE file with frames sample frames produced by gen.
func WriteWAV(t testing.TB, path string, spec WAV, frames int64, gen SampleFunc) {
	t.Helper()

	width := spec.BitDepth / 8
	blockAlign := width * spec.Channels
	data := make([]byte, frames*int64(blockAlign))
	for f := range frames {
		for ch := range spec.Channels {
			off := f*int64(blockAlign) + int64(ch*width)
			putSample(data[off:], spec.BitDepth, gen(f, ch))
		}
	}

	var fmtChunk bytes.Buffer
	tag := uint16(1)
	if spec.Extensible {
		tag = 0xFFFE
	}
	le := binary.LittleEndian
	_ = binary.Write(&fmtChunk, le, tag)
	_ = binary.Write(&fmtChunk, le, uint16(spec.Channels))
	_ = binary.Write(&fmtChunk, le, uint32(spec.SampleRate))
	_ = binary.Write(&fmtChunk, le, uint32(spec.SampleRate*blockAlign))
	_ = binary.Write(&fmtChunk, le, uint16(blockAlign))
	_ = binary.Write(&fmtChunk, le, uint16(spec.BitDepth))
	if spec.Extensible {
		_ = binary.Write(&fmtChunk, le, uint16(22))
		_ = binary.Write(&fmtChunk, le, uint16(spec.BitDepth))
		_ = binary.Write(&fmtChunk, le, uint32(3))
		fmtChunk.Write([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})
	}

	var info bytes.Buffer
	for _, entry := range [][2]string{{"INAM", spec.Title}, {"IART", spec.Performer}} {
		if entry[1] == "" {
			continue
		}
		value := append([]byte(entry[1]), 0)
		info.WriteString(entry[0])
		_ = binary.Write(&info, le, uint32(len(value)))
		info.Write(value)
		if len(value)%2 == 1 {
			info.WriteByte(0)
		}
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	out.Write([]byte{0, 0, 0, 0})
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	_ = binary.Write(&out, le, uint32(fmtChunk.Len()))
	out.Write(fmtChunk.Bytes())
	if info.Len() > 0 {
		out.WriteString("LIST")
		_ = binary.Write(&out, le, uint32(4+info.Len()))
		out.WriteString("INFO")
		out.Write(info.Bytes())
	}
	out.WriteString("data")
	_ = binary.Write(&out, le, uint32(len(data)))
	out.Write(data)
	if len(data)%2 == 1 {
		out.WriteByte(0)
	}
	raw := out.Bytes()
	le.PutUint32(raw[4:8], uint32(len(raw)-8))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
}

// WAVData returns the data chunk payload of a WAVE file.
func WAVData(t testing.TB, path string) []byte {
	t.Helper()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav %s: %v", path, err)
	}
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		t.Fatalf("%s is not a WAVE file", path)
	}
	for off := 12; off+8 <= len(raw); {
		id := string(raw[off : off+4])
		size := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + 8
		if id == "data" {
			return raw[body:min(body+size, len(raw))]
		}
		off = body + size + size%2
	}
	t.Fatalf("%s has no data chunk", path)
	return nil
}

func putSample(b []byte, bits int, v int32) {
	switch bits {
	case 8:
		b[0] = byte(v + 128)
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case 24:
		b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
	default:
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
}
