package middleware

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/ratelimit"
)

// RateLimit rejects requests exceeding the per-client sliding window with
// 429. Clients are keyed by session token when present, falling back to the
// remote address.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, ok := SessionIDFromContext(r.Context())
			if !ok {
				clientID = r.RemoteAddr
			}

			if !limiter.Allow(clientID) {
				retryAfter := limiter.RetryAfter()
				log.Warn().
					Str("client_id", clientID).
					Str("path", r.URL.Path).
					Msg("rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"success":false,"error":"Rate limit exceeded. Please try again later.","retry_after":%.0f}`, retryAfter.Seconds())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
