package capture

import (
	"testing"

	"confcap/internal/audio"
)

type liveStream struct {
	audio.Broadcaster
	id string
}

func (s *liveStream) ID() string      { return s.id }
func (s *liveStream) SampleRate() int { return 48000 }

func track(locality Locality, id string, stream audio.Stream) Track {
	return Track{ID: id, Kind: MediaAudio, Locality: locality, ParticipantID: id, Stream: stream}
}

func addedKeys(plan reconcilePlan) []string {
	keys := make([]string, 0, len(plan.add))
	for _, a := range plan.add {
		keys = append(keys, a.key)
	}
	return keys
}

func TestPlanReconcile(t *testing.T) {
	cfg := DefaultConfig()
	reg := NewRegistry()
	stream := &liveStream{id: "s"}
	ended := &liveStream{id: "gone"}
	ended.End()

	plan := planReconcile(cfg, reg, []Track{
		track(LocalityLocal, "me", stream),
		track(LocalityRemote, "A", stream),
		track(LocalityRemote, "A", stream),
		track(LocalityRemote, "", stream),
		track(LocalityRemote, "C", ended),
		{ID: "v", Kind: MediaVideo, Locality: LocalityRemote, ParticipantID: "B", Stream: stream},
	}, func(l Locality, id string) string {
		if id == "A" {
			return "Alice"
		}
		return ""
	})

	got := addedKeys(plan)
	if len(got) != 2 || got[0] != "local-audio" || got[1] != "remote-A" {
		t.Fatalf("unexpected admissions: %v", got)
	}
	if plan.add[0].displayName != "You" || plan.add[1].displayName != "Alice" {
		t.Fatalf("unexpected names: %q %q", plan.add[0].displayName, plan.add[1].displayName)
	}
	if len(plan.remove) != 0 {
		t.Fatalf("unexpected removals: %v", plan.remove)
	}

	for _, a := range plan.add {
		reg.Add(&SourceEntry{Key: a.key, ParticipantID: a.track.ParticipantID})
	}
	reg.SetPrevious(plan.current)

	plan = planReconcile(cfg, reg, []Track{
		track(LocalityRemote, "A", stream),
		track(LocalityRemote, "B", stream),
	}, nil)
	if got := addedKeys(plan); len(got) != 1 || got[0] != "remote-B" {
		t.Fatalf("expected only remote-B added, got %v", got)
	}
	if len(plan.remove) != 1 || plan.remove[0] != "local-audio" {
		t.Fatalf("expected local-audio removed, got %v", plan.remove)
	}
	if plan.add[0].displayName != "Participant B" {
		t.Fatalf("fallback name = %q", plan.add[0].displayName)
	}
}

func TestPlanReconcileHonoursFilters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeRemote = false
	stream := &liveStream{id: "s"}

	plan := planReconcile(cfg, NewRegistry(), []Track{
		track(LocalityLocal, "me", stream),
		track(LocalityRemote, "A", stream),
	}, nil)
	if got := addedKeys(plan); len(got) != 1 || got[0] != LocalSourceKey {
		t.Fatalf("expected only the local source, got %v", got)
	}
}
