package audio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStreamEnded is returned when subscribing to a stream that is no longer live.
var ErrStreamEnded = errors.New("stream ended")

// Frame is a block of mono samples in [-1, 1].
type Frame struct {
	Samples    []float32
	SampleRate int
	Timestamp  time.Time
}

// Stream is a live source of audio frames.
type Stream interface {
	ID() string
	SampleRate() int
	Live() bool
	// Subscribe registers fn for every subsequent frame. The returned cancel
	// function detaches fn without waiting for an in-flight delivery.
	Subscribe(fn func(Frame)) (cancel func() error, err error)
}

// Broadcaster fans frames out to subscribers. Stream implementations embed it.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]func(Frame)
	nextID uint64
	ended  atomic.Bool
	onEnd  []func()
}

// Subscribe implements Stream.
func (b *Broadcaster) Subscribe(fn func(Frame)) (func() error, error) {
	if fn == nil {
		return nil, errors.New("subscribe: nil callback")
	}
	if b.ended.Load() {
		return nil, ErrStreamEnded
	}
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[uint64]func(Frame))
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() error {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
		return nil
	}, nil
}

// Publish delivers frame to every current subscriber.
func (b *Broadcaster) Publish(frame Frame) {
	if b.ended.Load() {
		return
	}
	b.mu.Lock()
	subs := make([]func(Frame), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn(frame)
	}
}

// Live reports whether the stream still produces frames.
func (b *Broadcaster) Live() bool {
	return !b.ended.Load()
}

// OnEnd registers fn to run once when the stream ends.
func (b *Broadcaster) OnEnd(fn func()) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	if b.ended.Load() {
		b.mu.Unlock()
		fn()
		return
	}
	b.onEnd = append(b.onEnd, fn)
	b.mu.Unlock()
}

// End marks the stream as ended, drops subscribers, and runs end callbacks.
func (b *Broadcaster) End() {
	if b.ended.Swap(true) {
		return
	}
	b.mu.Lock()
	b.subs = nil
	callbacks := b.onEnd
	b.onEnd = nil
	b.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}
