package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"confcap/internal/audio"
)

func TestDecodeS16LE(t *testing.T) {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:], uint16(0))
	binary.LittleEndian.PutUint16(data[2:], uint16(0x4000))
	minValue := int16(math.MinInt16)
	binary.LittleEndian.PutUint16(data[4:], uint16(minValue))

	got := audio.DecodeS16LE(nil, append(data, 0x7f))
	want := []float32{0, 0.5, -1}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFloatToInt16Clips(t *testing.T) {
	got := audio.FloatToInt16(nil, []float32{2, -2, 0})
	if got[0] != math.MaxInt16 || got[1] != math.MinInt16 || got[2] != 0 {
		t.Fatalf("unexpected clipping result: %v", got)
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		in       []float32
		from, to int
		wantLen  int
	}{
		{name: "same rate passthrough", in: []float32{1, 2, 3}, from: 48000, to: 48000, wantLen: 3},
		{name: "upsample doubles", in: []float32{0, 1, 0, 1}, from: 24000, to: 48000, wantLen: 8},
		{name: "downsample halves", in: []float32{0, 1, 0, 1}, from: 48000, to: 24000, wantLen: 2},
		{name: "empty input", in: nil, from: 16000, to: 48000, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.Resample(tt.in, tt.from, tt.to)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}

	up := audio.Resample([]float32{0, 1}, 1, 2)
	if up[1] != 0.5 {
		t.Fatalf("expected interpolated midpoint 0.5, got %v", up[1])
	}
}
