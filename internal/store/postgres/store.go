// Package postgres implements the session store on PostgreSQL, one row per
// session with the turn history as JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id     TEXT PRIMARY KEY,
	version        INT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	last_active_at TIMESTAMPTZ NOT NULL,
	history        JSONB NOT NULL
)`

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Save(ctx context.Context, entry *domain.SessionEntry) error {
	history, err := json.Marshal(entry.History)
	if err != nil {
		return fmt.Errorf("postgres.Store.Save: marshal: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, version, created_at, last_active_at, history)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO UPDATE
		 SET version = EXCLUDED.version,
		     created_at = EXCLUDED.created_at,
		     last_active_at = EXCLUDED.last_active_at,
		     history = EXCLUDED.history`,
		entry.SessionID, entry.Version, entry.CreatedAt, entry.LastActiveAt, history,
	)
	if err != nil {
		return fmt.Errorf("postgres.Store.Save: %w", err)
	}

	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionEntry, error) {
	var (
		entry   domain.SessionEntry
		history []byte
	)

	err := s.pool.QueryRow(ctx,
		`SELECT session_id, version, created_at, last_active_at, history
		 FROM sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&entry.SessionID, &entry.Version, &entry.CreatedAt, &entry.LastActiveAt, &history)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres.Store.Load: %w", err)
	}

	decodeErr := json.Unmarshal(history, &entry.History)
	if decodeErr == nil && entry.Version == domain.EntryVersion {
		decodeErr = entry.Validate()
	} else if decodeErr == nil {
		decodeErr = fmt.Errorf("unsupported record version %d", entry.Version)
	}
	if decodeErr != nil {
		// Row exists but cannot be decoded into a usable entry: discard it.
		log.Warn().Err(decodeErr).Str("session_id", sessionID).Msg("discarding corrupt session record")
		if _, delErr := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID); delErr != nil {
			log.Error().Err(delErr).Str("session_id", sessionID).Msg("failed to delete corrupt session record")
		}
		return nil, fmt.Errorf("postgres.Store.Load: %w: %w", domain.ErrCorruptRecord, decodeErr)
	}

	return &entry, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("postgres.Store.Delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT session_id FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.List: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres.Store.List: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.Store.List: rows: %w", err)
	}

	return ids, nil
}
