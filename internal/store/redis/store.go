// Package redis implements the session store on a Redis instance, one key
// per session.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/domain"
)

const keyPrefix = "parley:session:"

type Store struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("redis.Store.Close: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, entry *domain.SessionEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis.Store.Save: marshal: %w", err)
	}

	// SET replaces the value atomically; no expiry here, the manager's
	// sweep owns session lifetime.
	if err := s.client.Set(ctx, keyPrefix+entry.SessionID, data, 0).Err(); err != nil {
		return fmt.Errorf("redis.Store.Save: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionEntry, error) {
	data, err := s.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis.Store.Load: %w", err)
	}

	entry, err := domain.DecodeEntry(data)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("discarding corrupt session record")
		_ = s.client.Del(ctx, keyPrefix+sessionID).Err()
		return nil, fmt.Errorf("redis.Store.Load: %w: %w", domain.ErrCorruptRecord, err)
	}

	return entry, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis.Store.Delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis.Store.List: %w", err)
	}

	return ids, nil
}
