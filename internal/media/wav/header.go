package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"splice/internal/audio"
	"splice/internal/services"
)

const (
	formatPCM        = 0x0001
	formatExtensible = 0xFFFE

	maxRIFFSize = math.MaxUint32
)

// Header describes the layout of a WAVE file.
type Header struct {
	Format     audio.Format
	BlockAlign int
	DataOffset int64
	DataSize   int64
	Title      string
	Performer  string

	fmtChunk []byte
}

// Frames returns the number of sample frames in the data chunk.
func (h Header) Frames() int64 {
	if h.BlockAlign <= 0 {
		return 0
	}
	return h.DataSize / int64(h.BlockAlign)
}

// ReadHeader scans the RIFF chunk list. Chunks after the data chunk, such as
// trailing LIST/INFO tags, are read as well.
func ReadHeader(r io.ReadSeeker) (Header, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return Header{}, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Header{}, err
	}

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Header{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Header{}, errors.New("not a RIFF/WAVE file")
	}

	var h Header
	haveData := false
	pos := int64(12)
	for pos+8 <= size {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Header{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		body := pos + 8
		if chunkSize > size-body {
			chunkSize = size - body
		}

		switch id {
		case "fmt ":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Header{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			if err := h.parseFormat(buf); err != nil {
				return Header{}, err
			}
		case "LIST":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Header{}, fmt.Errorf("read LIST chunk: %w", err)
			}
			h.parseInfo(buf)
		case "data":
			h.DataOffset = body
			h.DataSize = chunkSize
			haveData = true
		}

		pos = body + chunkSize + chunkSize%2
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return Header{}, err
		}
	}

	if h.fmtChunk == nil {
		return Header{}, errors.New("missing fmt chunk")
	}
	if !haveData {
		return Header{}, errors.New("missing data chunk")
	}
	h.DataSize -= h.DataSize % int64(h.BlockAlign)
	return h, nil
}

func (h *Header) parseFormat(buf []byte) error {
	if len(buf) < 16 {
		return fmt.Errorf("fmt chunk too short (%d bytes)", len(buf))
	}
	tag := binary.LittleEndian.Uint16(buf[0:2])
	channels := int(binary.LittleEndian.Uint16(buf[2:4]))
	rate := int(binary.LittleEndian.Uint32(buf[4:8]))
	blockAlign := int(binary.LittleEndian.Uint16(buf[12:14]))
	bits := int(binary.LittleEndian.Uint16(buf[14:16]))

	if tag == formatExtensible {
		if len(buf) < 40 {
			return errors.New("extensible fmt chunk too short")
		}
		tag = binary.LittleEndian.Uint16(buf[24:26])
	}
	if tag != formatPCM {
		return services.Wrap(services.ErrFormatMismatch, "wav", "header",
			fmt.Sprintf("unsupported encoding 0x%04x, only integer PCM is handled natively", tag), nil)
	}
	switch bits {
	case 8, 16, 24, 32:
	default:
		return services.Wrap(services.ErrFormatMismatch, "wav", "header", fmt.Sprintf("unsupported bit depth %d", bits), nil)
	}
	if channels <= 0 || rate <= 0 || blockAlign != channels*bits/8 {
		return fmt.Errorf("inconsistent fmt chunk: %d channels, %d Hz, block align %d", channels, rate, blockAlign)
	}

	h.Format = audio.Format{SampleRate: rate, BitDepth: bits, Channels: channels, Codec: codecName(bits)}
	h.BlockAlign = blockAlign
	h.fmtChunk = append([]byte(nil), buf...)
	return nil
}

func (h *Header) parseInfo(buf []byte) {
	if len(buf) < 4 || string(buf[0:4]) != "INFO" {
		return
	}
	for off := 4; off+8 <= len(buf); {
		id := string(buf[off : off+4])
		n := int(binary.LittleEndian.Uint32(buf[off+4 : off+8]))
		start := off + 8
		end := min(start+n, len(buf))
		value := decodeInfoString(buf[start:end])
		switch id {
		case "INAM":
			h.Title = value
		case "IART":
			h.Performer = value
		}
		off = start + n + n%2
	}
}

func decodeInfoString(raw []byte) string {
	raw = bytes.TrimRight(raw, "\x00")
	if utf8.Valid(raw) {
		return strings.TrimSpace(string(raw))
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(decoded))
}

func codecName(bits int) string {
	if bits == 8 {
		return "pcm_u8"
	}
	return fmt.Sprintf("pcm_s%dle", bits)
}

// tag is one LIST/INFO entry written into generated files.
type tag struct {
	id    string
	value string
}

// writeHeader emits RIFF, fmt, optional LIST/INFO, and the data chunk header.
// The fmt chunk is copied from a source file so extensible headers survive.
func writeHeader(w io.Writer, fmtChunk []byte, dataSize int64, tags []tag) error {
	var info bytes.Buffer
	for _, t := range tags {
		if t.value == "" {
			continue
		}
		value := append([]byte(t.value), 0)
		info.WriteString(t.id)
		_ = binary.Write(&info, binary.LittleEndian, uint32(len(value)))
		info.Write(value)
		if len(value)%2 == 1 {
			info.WriteByte(0)
		}
	}

	riffSize := int64(4) + 8 + int64(len(fmtChunk)) + int64(len(fmtChunk)%2) + 8 + dataSize + dataSize%2
	if info.Len() > 0 {
		riffSize += 8 + 4 + int64(info.Len())
	}
	if riffSize > maxRIFFSize {
		return services.Wrap(services.ErrIOFailure, "wav", "write", fmt.Sprintf("%d data bytes exceed the RIFF size limit", dataSize), nil)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(riffSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(fmtChunk)))
	buf.Write(fmtChunk)
	if len(fmtChunk)%2 == 1 {
		buf.WriteByte(0)
	}
	if info.Len() > 0 {
		buf.WriteString("LIST")
		_ = binary.Write(&buf, binary.LittleEndian, uint32(4+info.Len()))
		buf.WriteString("INFO")
		buf.Write(info.Bytes())
	}
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	_, err := w.Write(buf.Bytes())
	return err
}

// writePad terminates an odd-sized data chunk.
func writePad(w io.Writer, dataSize int64) error {
	if dataSize%2 == 0 {
		return nil
	}
	_, err := w.Write([]byte{0})
	return err
}
