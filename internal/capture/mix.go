package capture

import (
	"sync"

	"confcap/internal/audio"
)

// mixBus is the shared destination every non-raw source feeds. Each input
// keeps its own queue; pull sums whatever each queue holds.
type mixBus struct {
	mu         sync.Mutex
	sampleRate int
	maxQueue   int
	inputs     map[string][]float32
}

func newMixBus(sampleRate int) *mixBus {
	return &mixBus{
		sampleRate: sampleRate,
		maxQueue:   sampleRate * 2,
		inputs:     make(map[string][]float32),
	}
}

func (m *mixBus) write(key string, samples []float32, sampleRate int) {
	if len(samples) == 0 {
		return
	}
	samples = audio.Resample(samples, sampleRate, m.sampleRate)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inputs == nil {
		return
	}
	queue := append(m.inputs[key], samples...)
	if over := len(queue) - m.maxQueue; over > 0 {
		queue = queue[over:]
	}
	m.inputs[key] = queue
}

func (m *mixBus) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inputs, key)
}

// pull returns the mixed samples queued since the previous pull.
func (m *mixBus) pull() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.inputs {
		if len(q) > n {
			n = len(q)
		}
	}
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for key, q := range m.inputs {
		for i, s := range q {
			out[i] += s
		}
		m.inputs[key] = q[:0]
	}
	for i, s := range out {
		switch {
		case s > 1:
			out[i] = 1
		case s < -1:
			out[i] = -1
		}
	}
	return out
}

func (m *mixBus) release() {
	m.mu.Lock()
	m.inputs = nil
	m.mu.Unlock()
}
