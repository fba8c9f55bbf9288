package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/domain"
)

func TestSessionEntry_Expired(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	entry := &domain.SessionEntry{
		Version:      domain.EntryVersion,
		SessionID:    "s1",
		CreatedAt:    base,
		LastActiveAt: base,
	}

	timeout := time.Hour

	// At exactly the timeout boundary the session is still live; it expires
	// only once inactivity strictly exceeds the timeout.
	assert.False(t, entry.Expired(base, timeout))
	assert.False(t, entry.Expired(base.Add(timeout), timeout))
	assert.True(t, entry.Expired(base.Add(timeout+time.Nanosecond), timeout))
}

func TestSessionEntry_Validate(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	valid := func() *domain.SessionEntry {
		return &domain.SessionEntry{
			Version:      domain.EntryVersion,
			SessionID:    "s1",
			CreatedAt:    base,
			LastActiveAt: base.Add(time.Minute),
			History: []domain.Turn{
				{Role: domain.RoleUser, Content: "hi"},
				{Role: domain.RoleAssistant, Content: "hello"},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, valid().Validate())
	})

	t.Run("empty session id", func(t *testing.T) {
		t.Parallel()
		entry := valid()
		entry.SessionID = ""
		assert.Error(t, entry.Validate())
	})

	t.Run("last active precedes created", func(t *testing.T) {
		t.Parallel()
		entry := valid()
		entry.LastActiveAt = base.Add(-time.Minute)
		assert.Error(t, entry.Validate())
	})

	t.Run("history must alternate user then assistant", func(t *testing.T) {
		t.Parallel()
		entry := valid()
		entry.History = []domain.Turn{
			{Role: domain.RoleAssistant, Content: "hello"},
			{Role: domain.RoleUser, Content: "hi"},
		}
		assert.Error(t, entry.Validate())
	})

	t.Run("trailing user turn is allowed", func(t *testing.T) {
		t.Parallel()
		entry := valid()
		entry.History = append(entry.History, domain.Turn{Role: domain.RoleUser, Content: "more"})
		assert.NoError(t, entry.Validate())
	})
}

func TestDecodeEntry(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		entry := &domain.SessionEntry{
			Version:      domain.EntryVersion,
			SessionID:    "s1",
			CreatedAt:    base,
			LastActiveAt: base,
			History:      []domain.Turn{{Role: domain.RoleUser, Content: "hi"}},
		}

		data, err := json.Marshal(entry)
		require.NoError(t, err)

		decoded, err := domain.DecodeEntry(data)
		require.NoError(t, err)
		assert.Equal(t, entry, decoded)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()

		_, err := domain.DecodeEntry([]byte("{not json"))
		assert.Error(t, err)
	})

	t.Run("rejects unknown version", func(t *testing.T) {
		t.Parallel()

		_, err := domain.DecodeEntry([]byte(`{"version":2,"session_id":"s1","created_at":"2026-08-29T12:00:00Z","last_active_at":"2026-08-29T12:00:00Z","history":[]}`))
		assert.ErrorContains(t, err, "version")
	})

	t.Run("rejects invariant violations", func(t *testing.T) {
		t.Parallel()

		_, err := domain.DecodeEntry([]byte(`{"version":1,"session_id":"","created_at":"2026-08-29T12:00:00Z","last_active_at":"2026-08-29T12:00:00Z","history":[]}`))
		assert.Error(t, err)
	})
}
