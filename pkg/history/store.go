// Package history archives committed transcript entries to Postgres. It is a
// live.Consumer implementation; the session core itself keeps no on-disk
// state.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/vyakaran/tutorlive/pkg/core/live"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	queueSize     = 256
	insertTimeout = 10 * time.Second
)

// Store archives transcript entries. Update returns immediately; inserts run
// on a background worker so the session event loop is never blocked on the
// database.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu       sync.Mutex
	archived map[string]int // session id -> entries already enqueued

	queue chan task
	wg    sync.WaitGroup

	closeOnce sync.Once

	// insert is swappable for tests.
	insert func(ctx context.Context, t task) error
}

type task struct {
	sessionID string
	seq       int
	entry     live.Entry
}

// Open migrates the schema and returns a ready Store.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := migrate(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}

	s := newStore(logger)
	s.pool = pool
	s.insert = s.insertRow
	s.start()
	return s, nil
}

func newStore(logger *slog.Logger) *Store {
	return &Store{
		logger:   logger,
		archived: make(map[string]int),
		queue:    make(chan task, queueSize),
	}
}

func (s *Store) start() {
	s.wg.Add(1)
	go s.worker()
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("history: open for migration: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("history: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Update implements live.Consumer. New committed entries since the last
// snapshot of the same session are queued for archival; partials and status
// churn are ignored.
func (s *Store) Update(snap live.Snapshot) {
	if snap.SessionID == "" {
		return
	}

	s.mu.Lock()
	seen := s.archived[snap.SessionID]
	if len(snap.History) <= seen {
		s.mu.Unlock()
		return
	}
	fresh := snap.History[seen:]
	s.archived[snap.SessionID] = len(snap.History)
	s.mu.Unlock()

	for i, entry := range fresh {
		t := task{sessionID: snap.SessionID, seq: seen + i, entry: entry}
		select {
		case s.queue <- t:
		default:
			// Dropping beats stalling the session event loop.
			s.logger.Warn("transcript archive queue full, dropping entry",
				"session_id", t.sessionID, "seq", t.seq)
		}
	}
}

func (s *Store) worker() {
	defer s.wg.Done()
	for t := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := s.insert(ctx, t); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		cancel()
		if err != nil {
			s.logger.Error("transcript entry not archived",
				"session_id", t.sessionID, "seq", t.seq, "err", err)
		}
	}
}

func (s *Store) insertRow(ctx context.Context, t task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcript_entries (session_id, seq, speaker, text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, seq) DO NOTHING`,
		t.sessionID, t.seq, string(t.entry.Speaker), t.entry.Text)
	return err
}

// Close drains the queue and releases the pool.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
		s.wg.Wait()
		if s.pool != nil {
			s.pool.Close()
		}
	})
}
