// Package file implements the session store as one JSON file per session.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/domain"
)

const recordExt = ".json"

// Store persists sessions under a single directory. Writes go to a temp
// file and are renamed into place, so a record is never partially visible.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a Store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("file.New: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+recordExt)
}

// validID rejects IDs that could escape the store directory. Server-minted
// IDs are UUIDs, but the ID ultimately arrives from a client cookie.
func validID(sessionID string) bool {
	return sessionID != "" &&
		!strings.ContainsAny(sessionID, "/\\") &&
		sessionID == filepath.Base(sessionID)
}

func (s *Store) Save(_ context.Context, entry *domain.SessionEntry) error {
	if !validID(entry.SessionID) {
		return fmt.Errorf("file.Store.Save: invalid session id %q", entry.SessionID)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("file.Store.Save: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, entry.SessionID+".tmp-*")
	if err != nil {
		return fmt.Errorf("file.Store.Save: %w", err)
	}

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("file.Store.Save: write: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(entry.SessionID)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("file.Store.Save: rename: %w", err)
	}

	return nil
}

func (s *Store) Load(_ context.Context, sessionID string) (*domain.SessionEntry, error) {
	if !validID(sessionID) {
		return nil, domain.ErrNotFound
	}

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("file.Store.Load: %w", err)
	}

	entry, err := domain.DecodeEntry(data)
	if err != nil {
		// Undecodable records are discarded so the session restarts clean.
		log.Warn().Err(err).Str("session_id", sessionID).Msg("discarding corrupt session record")
		_ = os.Remove(s.path(sessionID))
		return nil, fmt.Errorf("file.Store.Load: %w: %w", domain.ErrCorruptRecord, err)
	}

	return entry, nil
}

func (s *Store) Delete(_ context.Context, sessionID string) error {
	if !validID(sessionID) {
		return nil
	}

	err := os.Remove(s.path(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file.Store.Delete: %w", err)
	}
	return nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("file.Store.List: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	return ids, nil
}
