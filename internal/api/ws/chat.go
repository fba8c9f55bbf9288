// Package ws provides the WebSocket chat transport: one connection per
// client, JSON request/response frames over the same session semantics as
// the HTTP API.
package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/ratelimit"
	"github.com/parley-ai/parley/internal/server/middleware"
	"github.com/parley-ai/parley/internal/session"
)

// ChatRequest is a client frame: one user message.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is a server frame. Exactly one of Response or Error is set
// when Success is true or false respectively.
type ChatResponse struct {
	Success    bool    `json:"success"`
	Response   string  `json:"response,omitempty"`
	Error      string  `json:"error,omitempty"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}

// Hub serves WebSocket chat connections.
type Hub struct {
	mgr     *session.Manager
	limiter *ratelimit.Limiter // nil when rate limiting is disabled
}

// NewHub creates a WebSocket hub over the session manager.
func NewHub(mgr *session.Manager, limiter *ratelimit.Limiter) *Hub {
	return &Hub{mgr: mgr, limiter: limiter}
}

// ServeChat upgrades the request and runs a read-reply loop until the
// client disconnects. Each frame counts against the same rate limit as an
// HTTP chat call.
func (h *Hub) ServeChat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	for {
		var req ChatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			log.Debug().Err(err).Msg("websocket read")
			return
		}

		resp := h.exchange(ctx, sessionID, req.Message)
		if err := wsjson.Write(ctx, conn, resp); err != nil {
			log.Debug().Err(err).Msg("websocket write")
			return
		}
	}
}

func (h *Hub) exchange(ctx context.Context, sessionID, message string) *ChatResponse {
	message = strings.TrimSpace(message)
	if message == "" {
		return &ChatResponse{Error: "message must not be empty"}
	}

	if h.limiter != nil && !h.limiter.Allow(sessionID) {
		return &ChatResponse{
			Error:      "Rate limit exceeded. Please try again later.",
			RetryAfter: h.limiter.RetryAfter().Seconds(),
		}
	}

	assistant, err := h.mgr.Resolve(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Msg("websocket resolve session")
		return &ChatResponse{Error: "assistant is not available"}
	}

	reply := assistant.Send(ctx, message)

	if err := h.mgr.RecordActivity(ctx, sessionID); err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}

	return &ChatResponse{Success: true, Response: reply}
}
