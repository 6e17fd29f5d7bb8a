package tracks

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"confcap/internal/audio"
	"confcap/internal/capture"
	"confcap/internal/logging"
)

// Opener turns an audio descriptor into a live stream.
type Opener func(d Descriptor) (audio.Stream, error)

// Options configures a Store.
type Options struct {
	SampleRate    int
	FramesPerRead int
	Logger        *slog.Logger
	// Opener overrides how sources are opened; tests inject fakes here.
	Opener Opener
}

type entry struct {
	desc   Descriptor
	stream audio.Stream
	err    error
}

// Store is the external source of truth for capture.Controller. It is safe
// for concurrent use.
type Store struct {
	sampleRate int
	frames     int
	logger     *slog.Logger
	open       Opener

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	subs    map[int]func()
	nextSub int
	closed  bool
}

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	s := &Store{
		sampleRate: opts.SampleRate,
		frames:     opts.FramesPerRead,
		logger:     logging.NewComponentLogger(opts.Logger, "tracks"),
		entries:    make(map[string]*entry),
		subs:       make(map[int]func()),
	}
	if s.sampleRate <= 0 {
		s.sampleRate = capture.DefaultSampleRate
	}
	s.open = opts.Opener
	if s.open == nil {
		s.open = s.openDefault
	}
	return s
}

func (s *Store) openDefault(d Descriptor) (audio.Stream, error) {
	rate := d.SampleRate
	if rate <= 0 {
		rate = s.sampleRate
	}
	if d.Source == MicrophoneSource {
		mic := audio.NewMicrophone(d.ID, rate, s.frames, s.logger)
		if err := mic.Open(); err != nil {
			return nil, err
		}
		return mic, nil
	}
	return audio.OpenPipe(d.ID, d.Source, rate)
}

// Tracks implements capture.TrackSource. Tracks whose source failed to open
// are listed without a stream so the controller treats them as absent.
func (s *Store) Tracks() []capture.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capture.Track, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		out = append(out, capture.Track{
			ID:            e.desc.ID,
			Kind:          e.desc.Kind,
			Locality:      e.desc.Locality,
			ParticipantID: e.desc.ParticipantID,
			Stream:        e.stream,
		})
	}
	return out
}

// DisplayName implements capture.TrackSource.
func (s *Store) DisplayName(locality capture.Locality, participantID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := capture.SourceKey(locality, participantID)
	for _, id := range s.order {
		d := s.entries[id].desc
		if d.DisplayName != "" && capture.SourceKey(d.Locality, d.ParticipantID) == key {
			return d.DisplayName
		}
	}
	return ""
}

// Subscribe implements capture.TrackSource.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Descriptors returns the current descriptors in insertion order.
func (s *Store) Descriptors() []Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Descriptor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].desc)
	}
	return out
}

// Status describes one track and whether its stream is usable.
type Status struct {
	Descriptor
	Live  bool   `json:"live"`
	Error string `json:"error,omitempty"`
}

// Statuses reports every track with its stream state.
func (s *Store) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		st := Status{Descriptor: e.desc, Live: e.stream != nil && e.stream.Live()}
		if e.err != nil {
			st.Error = e.err.Error()
		}
		out = append(out, st)
	}
	return out
}

// Replace swaps the whole track list. Streams of unchanged descriptors are
// kept open; removed or changed ones are closed. A source that fails to open
// is logged and kept without a stream so a later Refresh can retry it.
func (s *Store) Replace(descs []Descriptor) error {
	normalized := make([]Descriptor, 0, len(descs))
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		d = d.normalized()
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("duplicate track id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
		normalized = append(normalized, d)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("track store closed")
	}
	var stale []audio.Stream
	next := make(map[string]*entry, len(normalized))
	order := make([]string, 0, len(normalized))
	for _, d := range normalized {
		if prev, ok := s.entries[d.ID]; ok && sameSource(prev.desc, d) && prev.stream != nil && prev.stream.Live() {
			prev.desc = d
			next[d.ID] = prev
		} else {
			if ok && prev.stream != nil {
				stale = append(stale, prev.stream)
			}
			next[d.ID] = &entry{desc: d}
		}
		order = append(order, d.ID)
	}
	for id, prev := range s.entries {
		if _, keep := next[id]; !keep && prev.stream != nil {
			stale = append(stale, prev.stream)
		}
	}
	s.entries = next
	s.order = order
	pending := s.unopenedLocked()
	s.mu.Unlock()

	s.closeStreams(stale)
	s.openPending(pending)
	s.notify()
	return nil
}

// Upsert adds or replaces a single descriptor.
func (s *Store) Upsert(d Descriptor) error {
	descs := s.Descriptors()
	d = d.normalized()
	replaced := false
	for i := range descs {
		if descs[i].ID == d.ID {
			descs[i] = d
			replaced = true
		}
	}
	if !replaced {
		descs = append(descs, d)
	}
	return s.Replace(descs)
}

// Remove drops the track with id. Unknown ids are a no-op.
func (s *Store) Remove(id string) error {
	descs := s.Descriptors()
	out := descs[:0]
	for _, d := range descs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	if len(out) == len(descs) {
		return nil
	}
	return s.Replace(out)
}

// Refresh reopens audio tracks whose stream is missing or has ended and
// notifies subscribers when anything changed.
func (s *Store) Refresh() int {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	var stale []audio.Stream
	for _, id := range s.order {
		e := s.entries[id]
		if e.stream != nil && !e.stream.Live() {
			stale = append(stale, e.stream)
			e.stream = nil
		}
	}
	pending := s.unopenedLocked()
	s.mu.Unlock()

	s.closeStreams(stale)
	opened := s.openPending(pending)
	if opened > 0 || len(stale) > 0 {
		s.notify()
	}
	return opened
}

// Close releases every stream. The store rejects further changes.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var streams []audio.Stream
	for _, e := range s.entries {
		if e.stream != nil {
			streams = append(streams, e.stream)
		}
	}
	s.entries = make(map[string]*entry)
	s.order = nil
	s.mu.Unlock()
	s.closeStreams(streams)
	return nil
}

func (s *Store) unopenedLocked() []Descriptor {
	var out []Descriptor
	for _, id := range s.order {
		e := s.entries[id]
		if e.desc.Kind == capture.MediaAudio && e.stream == nil {
			out = append(out, e.desc)
		}
	}
	return out
}

// openPending opens sources outside the lock; opening a pipe can block.
func (s *Store) openPending(descs []Descriptor) int {
	opened := 0
	for _, d := range descs {
		stream, err := s.open(d)
		s.mu.Lock()
		e, ok := s.entries[d.ID]
		current := ok && !s.closed && sameSource(e.desc, d) && e.stream == nil
		if current {
			e.stream, e.err = stream, err
		}
		s.mu.Unlock()

		if err != nil {
			logging.WarnWithContext(s.logger, "track source unavailable", "track_open_failed",
				logging.String("track_id", d.ID),
				logging.String(logging.FieldParticipantID, d.ParticipantID),
				logging.String("source", d.Source),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the host is writing PCM to the source"),
				logging.String(logging.FieldImpact, "participant missing until the source reopens"),
			)
			continue
		}
		if !current {
			s.closeStreams([]audio.Stream{stream})
			continue
		}
		opened++
		s.watchEnd(d.ID, stream)
		s.logger.Debug("track source opened",
			logging.String("track_id", d.ID),
			logging.String("source", d.Source),
			logging.Int("sample_rate", stream.SampleRate()),
		)
	}
	return opened
}

// watchEnd notifies subscribers when a stream ends on its own so the
// controller drops the participant without waiting for the next push.
func (s *Store) watchEnd(id string, stream audio.Stream) {
	ender, ok := stream.(interface{ OnEnd(func()) })
	if !ok {
		return
	}
	ender.OnEnd(func() {
		s.mu.Lock()
		e, ok := s.entries[id]
		owned := ok && e.stream == stream && !s.closed
		s.mu.Unlock()
		if !owned {
			return
		}
		s.logger.Info("track source ended",
			logging.String(logging.FieldEventType, "track_ended"),
			logging.String("track_id", id),
		)
		go s.notify()
	})
}

func (s *Store) closeStreams(streams []audio.Stream) {
	for _, stream := range streams {
		closer, ok := stream.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			s.logger.Debug("track source close failed",
				logging.String("track_id", stream.ID()),
				logging.Error(err),
			)
		}
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
