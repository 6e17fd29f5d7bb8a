package capture

import (
	"sync"
	"time"

	"confcap/internal/audio"
)

// analysisTap keeps the most recent window of time-domain samples. When no
// frame has arrived for longer than staleAfter the window reads as silence.
type analysisTap struct {
	mu         sync.Mutex
	ring       []float32
	pos        int
	filled     bool
	now        func() time.Time
	staleAfter time.Duration
	last       time.Time
}

func newAnalysisTap(size int, now func() time.Time, staleAfter time.Duration) *analysisTap {
	return &analysisTap{ring: make([]float32, size), now: now, staleAfter: staleAfter}
}

func (t *analysisTap) write(samples []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.now != nil {
		t.last = t.now()
	}
	n := len(t.ring)
	if len(samples) >= n {
		copy(t.ring, samples[len(samples)-n:])
		t.pos = 0
		t.filled = true
		return
	}
	for _, s := range samples {
		t.ring[t.pos] = s
		t.pos++
		if t.pos == n {
			t.pos = 0
			t.filled = true
		}
	}
}

// window copies the current window, oldest sample first, into dst. Slots not
// yet written read as silence.
func (t *analysisTap) window(dst []float32) []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stale() {
		clear(t.ring)
		t.pos = 0
		t.filled = false
	}
	n := len(t.ring)
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	copied := copy(dst, t.ring[t.pos:])
	copy(dst[copied:], t.ring[:t.pos])
	return dst
}

func (t *analysisTap) stale() bool {
	if t.now == nil || t.staleAfter <= 0 || t.last.IsZero() {
		return false
	}
	return t.now().Sub(t.last) > t.staleAfter
}

// analysisStaleAfter is how long a tap may go without frames before its
// window reads as silence: one window at sampleRate or one level interval,
// whichever is longer.
func analysisStaleAfter(sampleRate int, levelInterval time.Duration) time.Duration {
	stale := levelInterval
	if sampleRate > 0 {
		if w := time.Duration(AnalysisWindowSize) * time.Second / time.Duration(sampleRate); w > stale {
			stale = w
		}
	}
	return stale
}

// pcmTap groups incoming samples into fixed-size buffers.
type pcmTap struct {
	mu     sync.Mutex
	size   int
	buf    []float32
	onFull func(samples []float32, sampleRate int, at time.Time)
}

func newPCMTap(size int, onFull func([]float32, int, time.Time)) *pcmTap {
	return &pcmTap{size: size, buf: make([]float32, 0, size), onFull: onFull}
}

func (t *pcmTap) write(frame audio.Frame) {
	var ready [][]float32
	t.mu.Lock()
	samples := frame.Samples
	for len(samples) > 0 {
		take := t.size - len(t.buf)
		if take > len(samples) {
			take = len(samples)
		}
		t.buf = append(t.buf, samples[:take]...)
		samples = samples[take:]
		if len(t.buf) == t.size {
			ready = append(ready, t.buf)
			t.buf = make([]float32, 0, t.size)
		}
	}
	t.mu.Unlock()

	for _, full := range ready {
		t.onFull(full, frame.SampleRate, frame.Timestamp)
	}
}
