package audio

import (
	"encoding/binary"
)

// Float32ToPCM16LE converts normalized float32 samples to 16-bit
// little-endian PCM bytes. dst must hold at least len(src)*2 bytes.
// Returns the number of bytes written.
func Float32ToPCM16LE(dst []byte, src []float32) int {
	for i, s := range src {
		scaled := s * 32768.0
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(int16(scaled)))
	}

	return len(src) * 2
}

// PCM16LEToFloat32 converts 16-bit little-endian PCM bytes to normalized
// float32 samples. dst must hold at least len(src)/2 values. Returns the
// number of samples written.
func PCM16LEToFloat32(dst []float32, src []byte) int {
	n := len(src) / 2
	for i := 0; i < n; i++ {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(src[2*i:]))) / 32768.0
	}

	return n
}

// MonoToStereo duplicates mono samples into interleaved stereo.
func MonoToStereo(m []float32) []float32 {
	dst := make([]float32, len(m)*2)
	for i, v := range m {
		dst[2*i], dst[2*i+1] = v, v
	}

	return dst
}

// Clamp01 clamps a gain value to the unit range.
func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}

	return v
}

// ClampSample hard-limits a sample to the normalized [-1, 1] range.
func ClampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}

	return v
}
