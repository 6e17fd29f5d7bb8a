package audio

import (
	"encoding/binary"
	"math"
)

// Int16ToFloat converts signed 16-bit samples to floats in [-1, 1).
func Int16ToFloat(dst []float32, src []int16) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		dst[i] = float32(s) / 32768
	}
	return dst
}

// FloatToInt16 converts floats to signed 16-bit samples with clipping.
func FloatToInt16(dst []int16, src []float32) []int16 {
	if cap(dst) < len(src) {
		dst = make([]int16, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		v := float64(s) * 32767
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		dst[i] = int16(v)
	}
	return dst
}

// DecodeS16LE decodes little-endian signed 16-bit PCM into floats. A trailing
// odd byte is ignored.
func DecodeS16LE(dst []float32, data []byte) []float32 {
	n := len(data) / 2
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}
	return dst
}

// EncodeF32LE appends samples as little-endian float32 bytes.
func EncodeF32LE(dst []byte, samples []float32) []byte {
	var buf [4]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(s))
		dst = append(dst, buf[:]...)
	}
	return dst
}

// Resample converts samples from one rate to another with linear interpolation.
func Resample(samples []float32, from, to int) []float32 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}
	n := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx] + (samples[idx+1]-samples[idx])*frac
	}
	return out
}
