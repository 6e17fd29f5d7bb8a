package testsupport

import (
	"context"
	"testing"
	"time"

	"confcap/internal/config"
	"confcap/internal/journal"
	"confcap/internal/logging"
)

// MustOpenJournal opens a journal.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SyncJournal waits for queued journal writes.
func SyncJournal(t testing.TB, store *journal.Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Sync(ctx); err != nil {
		t.Fatalf("journal sync: %v", err)
	}
}
