package middleware

import "context"

type contextKey string

// ContextKeySessionID carries the caller's session token through the
// request context.
const ContextKeySessionID contextKey = "session_id"

func SessionIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeySessionID).(string)
	return v, ok && v != ""
}

// WithSessionID returns ctx carrying the session token. Exported for
// handler tests.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}
