package capture

import "math"

// levelScale normalizes RMS against a full-scale sine wave (RMS 1/√2).
const levelScale = math.Sqrt2

// RMS returns the root-mean-square of window.
func RMS(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(window)))
}

// Level converts a time-domain window into a normalized level in [0,1].
func Level(window []float32) float64 {
	level := RMS(window) * levelScale
	switch {
	case level > 1:
		return 1
	case level < 0 || math.IsNaN(level):
		return 0
	}
	return level
}
