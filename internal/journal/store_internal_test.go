package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"confcap/internal/config"
	"confcap/internal/logging"
)

func TestSyncOnFullQueueDoesNotBlockEnqueue(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	gate := make(chan struct{})
	entered := make(chan struct{})
	store.enqueue("gate", func(context.Context) error {
		close(entered)
		<-gate
		return nil
	})
	<-entered
	for range writeQueueSize {
		store.enqueue("fill", func(context.Context) error { return nil })
	}

	syncDone := make(chan error, 1)
	go func() {
		syncDone <- store.Sync(context.Background())
	}()
	time.Sleep(5 * syncRetry)

	enqueued := make(chan struct{})
	go func() {
		store.enqueue("extra", func(context.Context) error { return nil })
		close(enqueued)
	}()
	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked behind Sync on a full queue")
	}

	close(gate)
	select {
	case err := <-syncDone:
		if err != nil {
			t.Fatalf("Sync: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Sync did not finish after the queue drained")
	}
}

func TestSyncHonoursContextOnFullQueue(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(&cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	gate := make(chan struct{})
	t.Cleanup(func() {
		close(gate)
		_ = store.Close()
	})

	store.enqueue("gate", func(context.Context) error {
		<-gate
		return nil
	})
	for range writeQueueSize + 1 {
		store.enqueue("fill", func(context.Context) error { return nil })
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := store.Sync(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Sync = %v, want deadline exceeded", err)
	}
}
