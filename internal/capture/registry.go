package capture

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Locality distinguishes the local participant from remote ones.
type Locality string

const (
	LocalityLocal  Locality = "local"
	LocalityRemote Locality = "remote"
)

// LocalSourceKey is the registry key of the local participant.
const LocalSourceKey = "local-audio"

// SourceKey derives the stable registry key for a participant's audio.
func SourceKey(locality Locality, participantID string) string {
	if locality == LocalityLocal {
		return LocalSourceKey
	}
	return "remote-" + participantID
}

// SourceEntry is one participant stream admitted to the mix.
type SourceEntry struct {
	Key           string
	ParticipantID string
	DisplayName   string
	Locality      Locality
	AddedAt       time.Time

	// LastLevel is the most recent normalized level in [0,1].
	LastLevel float64
	// Smoothed is the exponentially smoothed meter value.
	Smoothed float64

	vad      voiceDetector
	analysis *analysisTap
	pcm      *pcmTap

	detach      func() error
	releaseOnce sync.Once
	released    atomic.Bool
	releaseErr  error
}

// Speaking reports the debounced voice-activity state.
func (e *SourceEntry) Speaking() bool {
	return e.vad.speaking
}

// release detaches every tap of the entry as one unit. It is idempotent.
func (e *SourceEntry) release() error {
	e.releaseOnce.Do(func() {
		e.released.Store(true)
		e.vad.reset()
		if e.detach != nil {
			if err := e.detach(); err != nil {
				e.releaseErr = fmt.Errorf("%w: %s: %v", ErrTapDisconnect, e.Key, err)
			}
		}
	})
	return e.releaseErr
}

// Registry maps source keys to admitted entries and remembers the key set
// of the previous reconciliation.
type Registry struct {
	entries  map[string]*SourceEntry
	previous map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]*SourceEntry),
		previous: make(map[string]struct{}),
	}
}

// Add registers e unless its key is already present.
func (r *Registry) Add(e *SourceEntry) bool {
	if e == nil {
		return false
	}
	if _, exists := r.entries[e.Key]; exists {
		return false
	}
	r.entries[e.Key] = e
	return true
}

// Get returns the entry for key.
func (r *Registry) Get(key string) (*SourceEntry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Remove deletes and returns the entry for key.
func (r *Registry) Remove(key string) (*SourceEntry, bool) {
	e, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return e, ok
}

// Len returns the number of admitted entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Keys returns the admitted keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns the admitted entries ordered by key.
func (r *Registry) Entries() []*SourceEntry {
	keys := r.Keys()
	out := make([]*SourceEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.entries[k])
	}
	return out
}

// Previous returns the key set recorded by the last reconciliation.
func (r *Registry) Previous() map[string]struct{} {
	return r.previous
}

// SetPrevious records the key set of the latest reconciliation.
func (r *Registry) SetPrevious(keys map[string]struct{}) {
	if keys == nil {
		keys = make(map[string]struct{})
	}
	r.previous = keys
}

// Reset forgets every entry and the previous snapshot without releasing anything.
func (r *Registry) Reset() {
	r.entries = make(map[string]*SourceEntry)
	r.previous = make(map[string]struct{})
}
