package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/domain"
)

// sweepInterval is the minimum gap between opportunistic full sweeps
// triggered from the resolve path. Sweep cadence therefore tracks request
// volume instead of a dedicated timer.
const sweepInterval = time.Minute

// AgentFactory constructs the underlying conversational agent for a new
// session. Construction may fail (e.g. missing credentials); that failure
// is fatal for the request, not swallowed.
type AgentFactory func() (Agent, error)

type cacheEntry struct {
	assistant    *Assistant
	createdAt    time.Time
	lastActiveAt time.Time
}

// Manager orchestrates session lookup, lazy restoration from durable
// storage, creation and expiry. It exclusively owns the in-memory cache;
// the durable store remains the source of truth across restarts.
type Manager struct {
	mu             sync.Mutex
	store          domain.SessionStore
	factory        AgentFactory
	sessionTimeout time.Duration
	agentTimeout   time.Duration
	cache          map[string]*cacheEntry
	lastSweep      time.Time
	now            func() time.Time
}

// NewManager creates a Manager. sessionTimeout is the inactivity deadline
// for both cache and durable records; agentTimeout bounds each LLM
// round-trip.
func NewManager(store domain.SessionStore, factory AgentFactory, sessionTimeout, agentTimeout time.Duration) *Manager {
	return NewManagerWithClock(store, factory, sessionTimeout, agentTimeout, time.Now)
}

// NewManagerWithClock is NewManager with an injectable clock for tests.
func NewManagerWithClock(store domain.SessionStore, factory AgentFactory, sessionTimeout, agentTimeout time.Duration, now func() time.Time) *Manager {
	return &Manager{
		store:          store,
		factory:        factory,
		sessionTimeout: sessionTimeout,
		agentTimeout:   agentTimeout,
		cache:          make(map[string]*cacheEntry),
		now:            now,
	}
}

// Resolve returns the live assistant for sessionID, restoring it from
// durable storage after a restart or creating a fresh one on first
// contact. Only agent construction failures propagate; storage problems
// degrade to a new conversation.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (*Assistant, error) {
	m.maybeSweep(ctx)
	now := m.now()

	m.mu.Lock()
	if e, ok := m.cache[sessionID]; ok {
		if now.Sub(e.lastActiveAt) <= m.sessionTimeout {
			e.lastActiveAt = now
			a := e.assistant
			m.mu.Unlock()
			return a, nil
		}
		delete(m.cache, sessionID)
	}
	m.mu.Unlock()

	// Not live in memory: durable storage decides whether this is a
	// crash-recovery restore or a truly new conversation. Store I/O stays
	// outside the cache lock.
	entry, err := m.store.Load(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCorruptRecord):
		entry = nil
	default:
		log.Error().Err(err).Str("session_id", shortID(sessionID)).Msg("session load failed, starting fresh")
		entry = nil
	}

	agent, err := m.factory()
	if err != nil {
		return nil, fmt.Errorf("session.Manager.Resolve: %w: %w", domain.ErrAgentInit, err)
	}

	assistant := NewAssistant(agent, m.agentTimeout)
	createdAt := now
	if entry != nil {
		assistant.ImportHistory(entry.History)
		createdAt = entry.CreatedAt
		log.Info().Str("session_id", shortID(sessionID)).Int("turns", len(entry.History)).Msg("session restored")
	} else {
		log.Info().Str("session_id", shortID(sessionID)).Msg("session created")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.cache[sessionID]; ok {
		// Lost a resolve race; keep the first assistant so history is not
		// forked.
		e.lastActiveAt = now
		return e.assistant, nil
	}
	m.cache[sessionID] = &cacheEntry{
		assistant:    assistant,
		createdAt:    createdAt,
		lastActiveAt: now,
	}
	return assistant, nil
}

// RecordActivity persists the session's exported history and refreshed
// lastActiveAt. Called after an exchange completes, so a crash between
// exchanges loses at most the in-flight message, never committed history.
func (m *Manager) RecordActivity(ctx context.Context, sessionID string) error {
	now := m.now()

	m.mu.Lock()
	e, ok := m.cache[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	e.lastActiveAt = now
	assistant := e.assistant
	createdAt := e.createdAt
	m.mu.Unlock()

	// Export outside m.mu: the assistant's own mutex is held for the whole
	// multi-second exchange, and waiting on it here must not stall
	// unrelated sessions.
	entry := &domain.SessionEntry{
		Version:      domain.EntryVersion,
		SessionID:    sessionID,
		CreatedAt:    createdAt,
		LastActiveAt: now,
		History:      assistant.ExportHistory(),
	}

	if err := m.store.Save(ctx, entry); err != nil {
		log.Error().Err(err).Str("session_id", shortID(sessionID)).Msg("session save failed")
		return fmt.Errorf("session.Manager.RecordActivity: %w", err)
	}
	return nil
}

// ResetSession clears the live history (if the session is cached) and
// deletes the durable record. Resetting an unknown session is a no-op.
func (m *Manager) ResetSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	var assistant *Assistant
	if e, ok := m.cache[sessionID]; ok {
		assistant = e.assistant
	}
	m.mu.Unlock()

	// Reset outside m.mu for the same reason RecordActivity exports
	// outside it: the assistant mutex can be held for a whole exchange.
	if assistant != nil {
		assistant.Reset()
	}

	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session.Manager.ResetSession: %w", err)
	}

	log.Info().Str("session_id", shortID(sessionID)).Msg("session reset")
	return nil
}

// SweepExpired evicts every cache entry and durable record whose
// inactivity exceeds the session timeout at now.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) {
	m.mu.Lock()
	var expired []string
	for id, e := range m.cache {
		if now.Sub(e.lastActiveAt) > m.sessionTimeout {
			delete(m.cache, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		if err := m.store.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Str("session_id", shortID(id)).Msg("failed to delete expired session record")
		}
		log.Info().Str("session_id", shortID(id)).Msg("session expired")
	}

	ids, err := m.store.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("session sweep: list failed")
		return
	}
	for _, id := range ids {
		entry, err := m.store.Load(ctx, id)
		if err != nil {
			// Deleted concurrently, or corrupt and already discarded by the
			// store. Either way there is nothing left to evict.
			continue
		}
		if entry.Expired(now, m.sessionTimeout) {
			if err := m.store.Delete(ctx, id); err != nil {
				log.Warn().Err(err).Str("session_id", shortID(id)).Msg("failed to delete expired session record")
				continue
			}
			log.Info().Str("session_id", shortID(id)).Msg("session expired")
		}
	}
}

// Len reports the number of live cached sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// maybeSweep runs a full sweep when the last one is older than
// sweepInterval, keeping resolve latency flat under load.
func (m *Manager) maybeSweep(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	if now.Sub(m.lastSweep) < sweepInterval {
		m.mu.Unlock()
		return
	}
	m.lastSweep = now
	m.mu.Unlock()

	m.SweepExpired(ctx, now)
}

func shortID(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8] + "..."
	}
	return sessionID
}
