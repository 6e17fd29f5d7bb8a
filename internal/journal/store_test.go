package journal_test

import (
	"context"
	"testing"
	"time"

	"confcap/internal/capture"
	"confcap/internal/journal"
	"confcap/internal/logging"
	"confcap/internal/testsupport"
)

func TestSessionLifecycleIsRecorded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	capCfg := capture.DefaultConfig()
	store.SessionStarted(capture.SessionRecord{ID: "s1", StartedAt: started, MimeType: "audio/webm", Config: capCfg})
	store.SourceAdded("s1", capture.SourceStatus{Key: "local-audio", DisplayName: "You", Locality: capture.LocalityLocal}, started)
	store.SourceAdded("s1", capture.SourceStatus{Key: "remote-a", ParticipantID: "a", DisplayName: "Ann", Locality: capture.LocalityRemote}, started.Add(time.Second))
	store.SourceRemoved("s1", "local-audio", started.Add(2*time.Second))
	store.SessionStopped("s1", started.Add(time.Minute))
	testsupport.SyncJournal(t, store)

	sessions, err := store.Sessions(ctx, 10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	sess := sessions[0]
	if sess.ID != "s1" || sess.MimeType != "audio/webm" || sess.RawPCM {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Duration() != time.Minute {
		t.Fatalf("unexpected duration: %v", sess.Duration())
	}

	sources, err := store.Sources(ctx, "s1")
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].SourceKey != "local-audio" || sources[0].RemovedAt == nil || !sources[0].RemovedAt.Equal(started.Add(2*time.Second)) {
		t.Fatalf("unexpected local source: %+v", sources[0])
	}
	if sources[1].RemovedAt == nil || !sources[1].RemovedAt.Equal(started.Add(time.Minute)) {
		t.Fatalf("expected stop to close remaining sources, got %+v", sources[1])
	}
}

func TestTranscriptionPreferenceDefaultsTrue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	enabled, err := store.TranscriptionPreference(ctx)
	if err != nil {
		t.Fatalf("TranscriptionPreference: %v", err)
	}
	if !enabled {
		t.Fatal("expected default preference true")
	}

	if err := store.SetTranscriptionPreference(ctx, false); err != nil {
		t.Fatalf("SetTranscriptionPreference: %v", err)
	}
	enabled, err = store.TranscriptionPreference(ctx)
	if err != nil {
		t.Fatalf("TranscriptionPreference: %v", err)
	}
	if enabled {
		t.Fatal("expected persisted preference false")
	}
}

func TestReopenKeepsDataAndSkipsAppliedMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := journal.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.SetTranscriptionPreference(ctx, false); err != nil {
		t.Fatalf("SetTranscriptionPreference: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := testsupport.MustOpenJournal(t, cfg)
	enabled, err := second.TranscriptionPreference(ctx)
	if err != nil {
		t.Fatalf("TranscriptionPreference: %v", err)
	}
	if enabled {
		t.Fatal("expected preference to survive reopen")
	}
}

func TestPruneKeepsNewestSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		store.SessionStarted(capture.SessionRecord{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	testsupport.SyncJournal(t, store)

	removed, err := store.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned session, got %d", removed)
	}
	sessions, err := store.Sessions(ctx, 10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "new" || sessions[1].ID != "mid" {
		t.Fatalf("unexpected sessions after prune: %+v", sessions)
	}
}

func TestWritesAfterCloseAreDropped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	store.SessionStarted(capture.SessionRecord{ID: "late"})
	if err := store.Sync(context.Background()); err != journal.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
