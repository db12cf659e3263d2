package wav

import "encoding/binary"

// decodeSample reads one signed sample. 8-bit PCM is unsigned on disk.
func decodeSample(b []byte, bits int) int32 {
	switch bits {
	case 8:
		return int32(b[0]) - 128
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		return int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}

func encodeSample(b []byte, bits int, v int32) {
	switch bits {
	case 8:
		b[0] = byte(v + 128)
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case 24:
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
	default:
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
}

// sampleLimits returns the representable signed range for a bit depth.
func sampleLimits(bits int) (lo, hi int64) {
	hi = int64(1)<<(bits-1) - 1
	return -hi - 1, hi
}

// fullScale is the magnitude mapped to 0 dBFS.
func fullScale(bits int) float64 {
	return float64(int64(1) << (bits - 1))
}
