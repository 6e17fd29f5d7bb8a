package capture

import (
	"sort"
	"strings"

	"confcap/internal/audio"
)

// MediaKind is the media type of an external track.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Track is one entry of the external track list.
type Track struct {
	ID            string
	Kind          MediaKind
	Locality      Locality
	ParticipantID string
	Stream        audio.Stream
}

// TrackSource is the external source of truth for available tracks.
type TrackSource interface {
	// Tracks returns the complete current track list.
	Tracks() []Track
	// DisplayName returns the configured name for a participant, or "".
	DisplayName(locality Locality, participantID string) string
	// Subscribe registers fn for change notifications. fn is never called
	// synchronously from Subscribe.
	Subscribe(fn func()) (unsubscribe func())
}

// admission is a source the reconciliation wants added.
type admission struct {
	key         string
	track       Track
	displayName string
}

// reconcilePlan is the diff between the registry and an external track list.
type reconcilePlan struct {
	add     []admission
	remove  []string
	current map[string]struct{}
}

// planReconcile diffs tracks against the registry. Tracks that are not audio,
// have no live stream, or belong to an excluded locality are ignored, so a
// lost stream reads the same as a departed participant.
func planReconcile(cfg Config, reg *Registry, tracks []Track, names func(Locality, string) string) reconcilePlan {
	plan := reconcilePlan{current: make(map[string]struct{}, len(tracks))}
	for _, t := range tracks {
		if t.Kind != MediaAudio || t.Stream == nil || !t.Stream.Live() {
			continue
		}
		switch t.Locality {
		case LocalityLocal:
			if !cfg.IncludeLocal {
				continue
			}
		case LocalityRemote:
			if !cfg.IncludeRemote || strings.TrimSpace(t.ParticipantID) == "" {
				continue
			}
		default:
			continue
		}

		key := SourceKey(t.Locality, t.ParticipantID)
		if _, seen := plan.current[key]; seen {
			continue
		}
		plan.current[key] = struct{}{}
		if _, exists := reg.Get(key); exists {
			continue
		}
		var name string
		if names != nil {
			name = strings.TrimSpace(names(t.Locality, t.ParticipantID))
		}
		if name == "" {
			name = FallbackDisplayName(t.Locality, t.ParticipantID)
		}
		plan.add = append(plan.add, admission{key: key, track: t, displayName: name})
	}

	for key := range reg.Previous() {
		if _, ok := plan.current[key]; !ok {
			plan.remove = append(plan.remove, key)
		}
	}
	sort.Strings(plan.remove)
	return plan
}

// FallbackDisplayName labels a participant without a configured name.
func FallbackDisplayName(locality Locality, participantID string) string {
	if locality == LocalityLocal {
		return "You"
	}
	id := strings.TrimSpace(participantID)
	if id == "" {
		return "Participant"
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return "Participant " + id
}
