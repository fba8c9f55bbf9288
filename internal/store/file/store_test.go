package file_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/domain"
	"github.com/parley-ai/parley/internal/store/file"
)

func newEntry(sessionID string) *domain.SessionEntry {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	return &domain.SessionEntry{
		Version:      domain.EntryVersion,
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActiveAt: now,
		History: []domain.Turn{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "hello"},
		},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	t.Parallel()

	store, err := file.New(t.TempDir())
	require.NoError(t, err)

	ctx := t.Context()
	entry := newEntry("s1")
	require.NoError(t, store.Save(ctx, entry))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, entry, loaded)

	// Save overwrites atomically: a second save fully replaces the record.
	entry.History = append(entry.History, domain.Turn{Role: domain.RoleUser, Content: "more"})
	entry.LastActiveAt = entry.LastActiveAt.Add(time.Minute)
	require.NoError(t, store.Save(ctx, entry))

	loaded, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, loaded.History, 3)
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store, err := file.New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(t.Context(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_LoadCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := file.New(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o600))

	_, err = store.Load(t.Context(), "bad")
	assert.ErrorIs(t, err, domain.ErrCorruptRecord)

	// The corrupt record is discarded; the session restarts clean.
	assert.NoFileExists(t, path)
	_, err = store.Load(t.Context(), "bad")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_LoadWrongVersion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := file.New(dir)
	require.NoError(t, err)

	record := `{"version":99,"session_id":"s1","created_at":"2026-08-29T12:00:00Z","last_active_at":"2026-08-29T12:00:00Z","history":[]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1.json"), []byte(record), 0o600))

	_, err = store.Load(t.Context(), "s1")
	assert.ErrorIs(t, err, domain.ErrCorruptRecord)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	store, err := file.New(t.TempDir())
	require.NoError(t, err)

	ctx := t.Context()
	require.NoError(t, store.Save(ctx, newEntry("s1")))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting an absent record is a no-op.
	assert.NoError(t, store.Delete(ctx, "s1"))
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	store, err := file.New(t.TempDir())
	require.NoError(t, err)

	ctx := t.Context()
	require.NoError(t, store.Save(ctx, newEntry("s1")))
	require.NoError(t, store.Save(ctx, newEntry("s2")))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestStore_RejectsPathEscapes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := file.New(dir)
	require.NoError(t, err)

	ctx := t.Context()

	entry := newEntry("../escape")
	assert.Error(t, store.Save(ctx, entry))

	_, err = store.Load(ctx, "../escape")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "../escape"))
}
