package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EntryVersion is the schema version written into durable records. Loaders
// treat records with an unknown version like corrupt ones.
const EntryVersion = 1

// SessionEntry is the durable form of one conversation. History is
// insertion-ordered and append-only while the session is live; it is
// replaced wholesale only on reset.
type SessionEntry struct {
	Version      int       `json:"version"`
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	History      []Turn    `json:"history"`
}

// Expired reports whether the entry's inactivity exceeds timeout at now.
func (e *SessionEntry) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(e.LastActiveAt) > timeout
}

// Validate checks structural invariants: lastActiveAt >= createdAt and a
// well-formed alternating user/assistant history.
func (e *SessionEntry) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("session entry: empty session id")
	}
	if e.LastActiveAt.Before(e.CreatedAt) {
		return fmt.Errorf("session entry %s: last_active_at precedes created_at", e.SessionID)
	}
	for i, turn := range e.History {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if turn.Role != want {
			return fmt.Errorf("session entry %s: turn %d has role %q, want %q", e.SessionID, i, turn.Role, want)
		}
	}
	return nil
}

// DecodeEntry parses and validates a serialized durable record. All store
// drivers share it so version and invariant checks stay uniform.
func DecodeEntry(data []byte) (*SessionEntry, error) {
	var entry SessionEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	if entry.Version != EntryVersion {
		return nil, fmt.Errorf("unsupported record version %d", entry.Version)
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SessionStore persists conversations across process restarts. The durable
// store is the source of truth; in-memory state is only a cache.
type SessionStore interface {
	// Save durably overwrites the record for entry.SessionID. The write is
	// atomic: either the new content is fully visible or the prior content
	// remains.
	Save(ctx context.Context, entry *SessionEntry) error

	// Load returns the durable record for sessionID, ErrNotFound when
	// absent, or ErrCorruptRecord when the record exists but cannot be
	// decoded (the record is deleted before returning).
	Load(ctx context.Context, sessionID string) (*SessionEntry, error)

	// Delete removes the durable record. Deleting an absent record is a
	// no-op.
	Delete(ctx context.Context, sessionID string) error

	// List enumerates all durable session IDs. Entries deleted concurrently
	// with the enumeration are skipped, not reported as errors.
	List(ctx context.Context) ([]string, error)
}
