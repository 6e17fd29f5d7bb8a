package capture

import (
	"testing"
	"time"

	"confcap/internal/audio"
)

func TestAnalysisTapKeepsLatestWindow(t *testing.T) {
	tap := newAnalysisTap(4, nil, 0)

	if got := tap.window(nil); len(got) != 4 || got[0] != 0 || got[3] != 0 {
		t.Fatalf("unwritten window should be silent, got %v", got)
	}

	tap.write([]float32{1, 2, 3})
	tap.write([]float32{4, 5})
	got := tap.window(nil)
	want := []float32{2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window = %v, want %v", got, want)
		}
	}

	tap.write([]float32{6, 7, 8, 9, 10, 11})
	got = tap.window(got)
	want = []float32{8, 9, 10, 11}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window after overflow = %v, want %v", got, want)
		}
	}
}

func TestAnalysisTapGoesSilentWhenFramesStop(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tap := newAnalysisTap(4, func() time.Time { return now }, 100*time.Millisecond)

	tap.write([]float32{0.5, 0.5, 0.5, 0.5})
	now = now.Add(100 * time.Millisecond)
	if got := tap.window(nil); got[0] != 0.5 || got[3] != 0.5 {
		t.Fatalf("window within the stale limit = %v, want the written samples", got)
	}

	now = now.Add(time.Millisecond)
	got := tap.window(nil)
	for i, v := range got {
		if v != 0 {
			t.Fatalf("stale window[%d] = %v, want silence", i, v)
		}
	}

	tap.write([]float32{0.25, 0.25})
	got = tap.window(got)
	want := []float32{0, 0, 0.25, 0.25}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window after resume = %v, want %v", got, want)
		}
	}
}

func TestAnalysisStaleAfter(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		interval time.Duration
		want     time.Duration
	}{
		{name: "interval longer than window", rate: 48000, interval: 100 * time.Millisecond, want: 100 * time.Millisecond},
		{name: "window longer than interval", rate: 8000, interval: 100 * time.Millisecond, want: 256 * time.Millisecond},
		{name: "unknown rate", rate: 0, interval: 50 * time.Millisecond, want: 50 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := analysisStaleAfter(tt.rate, tt.interval); got != tt.want {
				t.Fatalf("analysisStaleAfter(%d, %v) = %v, want %v", tt.rate, tt.interval, got, tt.want)
			}
		})
	}
}

func TestPCMTapEmitsFixedBuffers(t *testing.T) {
	var sizes []int
	tap := newPCMTap(4, func(samples []float32, rate int, at time.Time) {
		if rate != 16000 {
			t.Errorf("rate = %d", rate)
		}
		sizes = append(sizes, len(samples))
	})

	tap.write(audio.Frame{Samples: make([]float32, 3), SampleRate: 16000})
	if len(sizes) != 0 {
		t.Fatalf("partial buffer emitted: %v", sizes)
	}
	tap.write(audio.Frame{Samples: make([]float32, 9), SampleRate: 16000})
	if len(sizes) != 3 {
		t.Fatalf("expected three full buffers, got %v", sizes)
	}
	for _, n := range sizes {
		if n != 4 {
			t.Fatalf("buffer size %d, want 4", n)
		}
	}
}

func TestMixBusSumsAndClamps(t *testing.T) {
	bus := newMixBus(48000)
	bus.write("a", []float32{0.5, 0.75, 0.25}, 48000)
	bus.write("b", []float32{0.75, 0.5}, 48000)

	got := bus.pull()
	want := []float32{1, 1, 0.25}
	if len(got) != len(want) {
		t.Fatalf("pull = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pull = %v, want %v", got, want)
		}
	}
	if again := bus.pull(); again != nil {
		t.Fatalf("queues should be drained, got %v", again)
	}

	bus.write("a", []float32{0.1}, 48000)
	bus.remove("a")
	if got := bus.pull(); got != nil {
		t.Fatalf("removed input still mixed: %v", got)
	}

	bus.release()
	bus.write("a", []float32{0.1}, 48000)
	if got := bus.pull(); got != nil {
		t.Fatalf("released bus accepted input: %v", got)
	}
}
