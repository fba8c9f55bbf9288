// Package ratelimit implements per-client sliding-window request admission.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits requests under a per-client trailing-window quota. It
// keeps the timestamps of admitted requests inside the window and rejects
// once their count reaches the limit. State is process-local and lost on
// restart; the limiter throttles, it does not account.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string][]time.Time
	now     func() time.Time
}

// New creates a Limiter admitting up to limit requests per client within
// the trailing window.
func New(limit int, window time.Duration) *Limiter {
	return NewWithClock(limit, window, time.Now)
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(limit int, window time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		clients: make(map[string][]time.Time),
		now:     now,
	}
}

// Allow reports whether a request from clientID is admitted now. Admitted
// requests are recorded; rejected ones are not. A clientID never seen
// before has zero prior requests.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.clients[clientID][:0:0]
	for _, t := range l.clients[clientID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.clients[clientID] = recent
		return false
	}

	l.clients[clientID] = append(recent, now)
	return true
}

// RetryAfter returns the hint callers should surface on rejection: the
// window length, after which a fresh request is guaranteed admissible.
func (l *Limiter) RetryAfter() time.Duration {
	return l.window
}

// Sweep drops clients whose every recorded request has aged out of the
// window, bounding memory growth.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for id, stamps := range l.clients {
		idle := true
		for _, t := range stamps {
			if t.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(l.clients, id)
		}
	}
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
