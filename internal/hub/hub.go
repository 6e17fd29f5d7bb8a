package hub

import (
	"context"
	"sync"
	"time"

	"confcap/internal/capture"
)

// Record is one buffered event.
type Record struct {
	Sequence uint64
	Event    capture.Event
}

// Hub stores recent events in a ring and wakes waiters when new events
// arrive. Buffered sequences are contiguous, oldest at head.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Record
	head     int
	size     int
	nextSeq  uint64
	counts   map[capture.EventKind]uint64
}

// New constructs a bounded in-memory event buffer.
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 1024
	}
	h := &Hub{
		capacity: capacity,
		buffer:   make([]Record, capacity),
		counts:   make(map[capture.EventKind]uint64),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Emit implements capture.Sink. It never blocks on consumers.
func (h *Hub) Emit(ev capture.Event) {
	if h == nil || ev == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	rec := Record{Sequence: h.nextSeq, Event: ev}
	if h.size == h.capacity {
		h.buffer[h.head] = rec
		h.head = (h.head + 1) % h.capacity
	} else {
		h.buffer[(h.head+h.size)%h.capacity] = rec
		h.size++
	}
	h.counts[ev.Kind()]++
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns events with sequence greater than since, up to limit. When
// wait is true, Fetch blocks until at least one event is available or the
// context ends. The returned cursor is the sequence to pass next time.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Record, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		records, next := h.snapshotLocked(since, limit)
		if len(records) > 0 || !wait {
			return records, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// FetchTimeout is Fetch with wait bounded by timeout. A timeout returns no
// records and no error.
func (h *Hub) FetchTimeout(ctx context.Context, since uint64, limit int, timeout time.Duration) ([]Record, uint64, error) {
	if timeout <= 0 {
		return h.Fetch(ctx, since, limit, false)
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	records, next, err := h.Fetch(waitCtx, since, limit, true)
	if err != nil && ctx.Err() == nil {
		return records, next, nil
	}
	return records, next, err
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Record, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := max(h.size-limit, 0)
	return h.copyLocked(start, h.size), h.nextSeq
}

// LastSequence returns the sequence of the newest event, or 0.
func (h *Hub) LastSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered. A
// consumer whose cursor is below FirstSequence()-1 has missed events.
func (h *Hub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size == 0 {
		return h.nextSeq + 1
	}
	return h.buffer[h.head].Sequence
}

// Stats summarizes hub activity.
type Stats struct {
	Buffered int                          `json:"buffered"`
	Capacity int                          `json:"capacity"`
	LastSeq  uint64                       `json:"last_seq"`
	Counts   map[capture.EventKind]uint64 `json:"counts"`
}

// Stats returns a snapshot of hub counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make(map[capture.EventKind]uint64, len(h.counts))
	for k, v := range h.counts {
		counts[k] = v
	}
	return Stats{Buffered: h.size, Capacity: h.capacity, LastSeq: h.nextSeq, Counts: counts}
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Record, uint64) {
	if h.size == 0 || since >= h.nextSeq {
		return nil, h.nextSeq
	}
	first := h.buffer[h.head].Sequence
	start := 0
	if since >= first {
		start = int(since - first + 1)
	}
	end := min(start+limit, h.size)
	out := h.copyLocked(start, end)
	return out, out[len(out)-1].Sequence
}

// copyLocked returns the records at ring offsets [from, to) from head.
func (h *Hub) copyLocked(from, to int) []Record {
	out := make([]Record, to-from)
	for i := range out {
		out[i] = h.buffer[(h.head+from+i)%h.capacity]
	}
	return out
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
