// Package session owns conversation lifecycle: the per-session assistant
// facade around the LLM agent, and the manager that creates, restores,
// persists and expires sessions.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/domain"
)

// Agent is the opaque conversational engine behind the assistant. Tool
// selection, prompting and iteration limits all live behind this call.
type Agent interface {
	Complete(ctx context.Context, input string, history []domain.Turn) (string, error)
}

// Assistant wraps one conversation with the agent. It owns the in-memory
// history and serializes exchanges: its mutex is the per-session exclusion
// required while the multi-second agent call is in flight.
type Assistant struct {
	mu      sync.Mutex
	agent   Agent
	history []domain.Turn
	timeout time.Duration
}

// NewAssistant returns an Assistant with empty history. timeout bounds each
// agent round-trip; zero means no bound.
func NewAssistant(agent Agent, timeout time.Duration) *Assistant {
	return &Assistant{agent: agent, timeout: timeout}
}

// Send forwards message plus the prior history to the agent. On success
// the user message and reply are appended to history and the reply is
// returned. On any failure, including timeout, the returned string is a
// user-visible apology and nothing is recorded, so the conversation stays
// usable and a retry sees the pre-failure context.
func (a *Assistant) Send(ctx context.Context, message string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	reply, err := a.agent.Complete(ctx, message, a.snapshot())
	if err != nil {
		log.Warn().Err(err).Msg("exchange failed")
		return fmt.Sprintf("Sorry, something went wrong while handling your request: %v", err)
	}

	a.history = append(a.history,
		domain.Turn{Role: domain.RoleUser, Content: message},
		domain.Turn{Role: domain.RoleAssistant, Content: reply},
	)

	return reply
}

// ExportHistory returns a snapshot of the conversation, detached from the
// live slice so later exchanges cannot mutate a persisted copy.
func (a *Assistant) ExportHistory() []domain.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// ImportHistory replaces the conversation wholesale. Used only when
// restoring a session from durable storage.
func (a *Assistant) ImportHistory(turns []domain.Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append([]domain.Turn(nil), turns...)
}

// Reset clears the conversation.
func (a *Assistant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// snapshot copies history; callers must hold a.mu.
func (a *Assistant) snapshot() []domain.Turn {
	return append([]domain.Turn(nil), a.history...)
}
