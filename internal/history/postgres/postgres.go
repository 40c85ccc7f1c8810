// Package postgres provides a PostgreSQL-backed [history.Store] over a
// single [pgxpool.Pool].
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/earshot-dev/earshot/internal/history"
)

var _ history.Store = (*Store)(nil)

const ddlTurns = `
CREATE TABLE IF NOT EXISTS turns (
    id               BIGSERIAL   PRIMARY KEY,
    started_at       TIMESTAMPTZ NOT NULL,
    mode             TEXT        NOT NULL,
    transcript       TEXT        NOT NULL,
    reply            TEXT        NOT NULL,
    held_open        BOOLEAN     NOT NULL,
    capture_duration_ns BIGINT   NOT NULL,
    turn_duration_ns    BIGINT   NOT NULL
);
CREATE INDEX IF NOT EXISTS turns_started_at_idx ON turns (started_at DESC);
`

// Store appends turns to the turns table. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the database at dsn and ensures the
// turns table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlTurns); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Append implements [history.Store].
func (s *Store) Append(ctx context.Context, turn history.Turn) error {
	const q = `
		INSERT INTO turns
		    (started_at, mode, transcript, reply, held_open, capture_duration_ns, turn_duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		turn.StartedAt,
		turn.Mode,
		turn.Transcript,
		turn.Reply,
		turn.HeldOpen,
		turn.CaptureDuration.Nanoseconds(),
		turn.TurnDuration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("history: append turn: %w", err)
	}
	return nil
}

// Recent implements [history.Store].
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Turn, error) {
	const q = `
		SELECT started_at, mode, transcript, reply, held_open, capture_duration_ns, turn_duration_ns
		FROM   turns
		ORDER  BY started_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var turns []history.Turn
	for rows.Next() {
		var (
			t         history.Turn
			captureNS int64
			turnNS    int64
		)
		if err := rows.Scan(&t.StartedAt, &t.Mode, &t.Transcript, &t.Reply, &t.HeldOpen, &captureNS, &turnNS); err != nil {
			return nil, fmt.Errorf("history: scan turn: %w", err)
		}
		t.CaptureDuration = time.Duration(captureNS)
		t.TurnDuration = time.Duration(turnNS)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate turns: %w", err)
	}
	return turns, nil
}

// Ping implements [history.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements [history.Store].
func (s *Store) Close() {
	s.pool.Close()
}
