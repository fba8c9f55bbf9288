package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "parley_session"

// sessionCookieTTL keeps the conversation resumable across browser
// restarts; the server-side inactivity timeout is what actually ends a
// session.
const sessionCookieTTL = 30 * 24 * time.Hour

// Session ensures every request carries a session token: an existing
// cookie is reused, otherwise a fresh random token is minted and set. The
// token enters the request context for handlers. Tokens are UUIDv4, never
// derived from client input, and never reused.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
				sessionID = c.Value
			} else {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(sessionCookieTTL.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
		})
	}
}
