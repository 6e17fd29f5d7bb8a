package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"confcap/internal/capture"
	"confcap/internal/config"
	"confcap/internal/logging"
)

const (
	writeQueueSize   = 256
	writeTimeout     = 5 * time.Second
	syncRetry        = 10 * time.Millisecond
	transcriptionKey = "transcription.enabled"
	// timeLayout is fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("journal closed")

// Store manages journal persistence backed by SQLite. It implements
// capture.Journal.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	writes chan func(context.Context) error
	done   chan struct{}
}

var _ capture.Journal = (*Store)(nil)

// Open initializes or connects to the journal database and applies migrations.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	path := cfg.Journal.Path
	if path == "" {
		path = filepath.Join(cfg.Paths.StateDir, "journal.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, "journal"),
		writes: make(chan func(context.Context) error, writeQueueSize),
		done:   make(chan struct{}),
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	go store.writer()
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close drains queued writes and closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.writes)
	s.mu.Unlock()
	<-s.done
	return s.db.Close()
}

func (s *Store) writer() {
	defer close(s.done)
	for write := range s.writes {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := write(ctx); err != nil {
			logging.WarnWithContext(s.logger, "journal write failed", "journal_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check disk space and permissions on "+s.path),
				logging.String(logging.FieldImpact, "session history incomplete"),
			)
		}
		cancel()
	}
}

// enqueue hands a write to the writer goroutine without blocking. Writes are
// dropped when the queue is full or the store is closed.
func (s *Store) enqueue(kind string, write func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.writes <- write:
	default:
		logging.WarnWithContext(s.logger, "journal queue full; write dropped", "journal_queue_full",
			logging.String("write", kind),
			logging.String(logging.FieldImpact, "session history incomplete"),
		)
	}
}

// Sync blocks until every write queued before the call has been applied.
// While the queue is full it retries without holding the store lock, so
// enqueue never waits behind it.
func (s *Store) Sync(ctx context.Context) error {
	marker := make(chan struct{})
	write := func(context.Context) error { close(marker); return nil }
	for {
		queued, err := s.tryEnqueue(write)
		if err != nil {
			return err
		}
		if queued {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(syncRetry):
		}
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) tryEnqueue(write func(context.Context) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	select {
	case s.writes <- write:
		return true, nil
	default:
		return false, nil
	}
}

// SessionStarted implements capture.Journal.
func (s *Store) SessionStarted(rec capture.SessionRecord) {
	cfgJSON, err := json.Marshal(rec.Config)
	if err != nil {
		cfgJSON = []byte("{}")
	}
	s.enqueue("session_started", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, started_at, mime_type, raw_pcm, config_json) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, formatTime(rec.StartedAt), rec.MimeType, boolToInt(rec.Config.RawPCM), string(cfgJSON),
		)
		if err != nil {
			return fmt.Errorf("insert session %s: %w", rec.ID, err)
		}
		return nil
	})
}

// SessionStopped implements capture.Journal.
func (s *Store) SessionStopped(sessionID string, at time.Time) {
	s.enqueue("session_stopped", func(ctx context.Context) error {
		stamp := formatTime(at)
		if _, err := s.db.ExecContext(ctx,
			`UPDATE session_sources SET removed_at = ? WHERE session_id = ? AND removed_at IS NULL`,
			stamp, sessionID,
		); err != nil {
			return fmt.Errorf("close sources of %s: %w", sessionID, err)
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET stopped_at = ? WHERE id = ?`, stamp, sessionID); err != nil {
			return fmt.Errorf("stop session %s: %w", sessionID, err)
		}
		return nil
	})
}

// SourceAdded implements capture.Journal.
func (s *Store) SourceAdded(sessionID string, src capture.SourceStatus, at time.Time) {
	s.enqueue("source_added", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO session_sources (session_id, source_key, participant_id, display_name, locality, added_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, src.Key, src.ParticipantID, src.DisplayName, string(src.Locality), formatTime(at),
		)
		if err != nil {
			return fmt.Errorf("insert source %s: %w", src.Key, err)
		}
		return nil
	})
}

// SourceRemoved implements capture.Journal.
func (s *Store) SourceRemoved(sessionID, key string, at time.Time) {
	s.enqueue("source_removed", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE session_sources SET removed_at = ? WHERE session_id = ? AND source_key = ? AND removed_at IS NULL`,
			formatTime(at), sessionID, key,
		)
		if err != nil {
			return fmt.Errorf("close source %s: %w", key, err)
		}
		return nil
	})
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, stopped_at, mime_type, raw_pcm, config_json
		 FROM sessions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			started string
			stopped sql.NullString
			raw     int
		)
		if err := rows.Scan(&sess.ID, &started, &stopped, &sess.MimeType, &raw, &sess.ConfigJSON); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if sess.StoppedAt, err = parseNullableTime(stopped); err != nil {
			return nil, err
		}
		sess.RawPCM = raw != 0
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Sources returns the source admissions of one session in admission order.
func (s *Store) Sources(ctx context.Context, sessionID string) ([]SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, source_key, participant_id, display_name, locality, added_at, removed_at
		 FROM session_sources WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []SourceRecord
	for rows.Next() {
		var (
			rec     SourceRecord
			added   string
			removed sql.NullString
		)
		if err := rows.Scan(&rec.SessionID, &rec.SourceKey, &rec.ParticipantID, &rec.DisplayName, &rec.Locality, &added, &removed); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if rec.AddedAt, err = parseTime(added); err != nil {
			return nil, err
		}
		if rec.RemovedAt, err = parseNullableTime(removed); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep sessions and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id NOT IN (SELECT id FROM sessions ORDER BY started_at DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

// TranscriptionPreference returns the persisted transcription flag. It
// defaults to true when never set.
func (s *Store) TranscriptionPreference(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, transcriptionKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("read transcription preference: %w", err)
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return true, fmt.Errorf("parse transcription preference %q: %w", value, err)
	}
	return enabled, nil
}

// SetTranscriptionPreference persists the transcription flag.
func (s *Store) SetTranscriptionPreference(ctx context.Context, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		transcriptionKey, strconv.FormatBool(enabled), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("write transcription preference: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
