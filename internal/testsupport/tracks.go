package testsupport

import (
	"sync"

	"confcap/internal/capture"
)

// StaticTracks is an in-memory capture.TrackSource.
type StaticTracks struct {
	mu     sync.Mutex
	tracks []capture.Track
	names  map[string]string
	subs   map[int]func()
	nextID int
}

// NewStaticTracks returns a source holding tracks.
func NewStaticTracks(tracks ...capture.Track) *StaticTracks {
	return &StaticTracks{tracks: tracks, names: map[string]string{}, subs: map[int]func(){}}
}

// Tracks implements capture.TrackSource.
func (s *StaticTracks) Tracks() []capture.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capture.Track(nil), s.tracks...)
}

// DisplayName implements capture.TrackSource.
func (s *StaticTracks) DisplayName(locality capture.Locality, participantID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[capture.SourceKey(locality, participantID)]
}

// SetName configures a participant display name.
func (s *StaticTracks) SetName(locality capture.Locality, participantID, name string) {
	s.mu.Lock()
	s.names[capture.SourceKey(locality, participantID)] = name
	s.mu.Unlock()
}

// Subscribe implements capture.TrackSource.
func (s *StaticTracks) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Subscribers returns the number of registered change listeners.
func (s *StaticTracks) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Set replaces the track list and notifies subscribers on the calling goroutine.
func (s *StaticTracks) Set(tracks ...capture.Track) {
	s.mu.Lock()
	s.tracks = tracks
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// LocalTrack builds the local participant's audio track.
func LocalTrack(participantID string, stream *ManualStream) capture.Track {
	return capture.Track{ID: stream.ID(), Kind: capture.MediaAudio, Locality: capture.LocalityLocal, ParticipantID: participantID, Stream: stream}
}

// RemoteTrack builds a remote audio track for participantID.
func RemoteTrack(participantID string, stream *ManualStream) capture.Track {
	return capture.Track{ID: stream.ID(), Kind: capture.MediaAudio, Locality: capture.LocalityRemote, ParticipantID: participantID, Stream: stream}
}
