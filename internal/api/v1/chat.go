// Package v1 contains the HTTP API operations: chat exchange, session
// reset, health and status reporting.
package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/domain"
	"github.com/parley-ai/parley/internal/server/middleware"
	"github.com/parley-ai/parley/internal/session"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

type ChatInput struct {
	Body struct {
		Message string `json:"message" doc:"User message to the assistant"`
	}
}

type ChatOutput struct {
	Body struct {
		Success  bool   `json:"success"`
		Response string `json:"response"`
	}
}

type ResetOutput struct {
	Body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
}

type HealthOutput struct {
	Body struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
		Version        string `json:"version"`
	}
}

type StatusOutput struct {
	Body struct {
		Model          string `json:"model"`
		SearchEngine   string `json:"search_engine"`
		SessionTimeout string `json:"session_timeout"`
		RateLimit      struct {
			Enabled bool   `json:"enabled"`
			RPM     int    `json:"rpm"`
			Window  string `json:"window"`
		} `json:"rate_limit"`
	}
}

// RegisterChatRoutes wires the conversational endpoints. These sit behind
// the rate limit middleware.
func RegisterChatRoutes(api huma.API, mgr *session.Manager) {
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Send a message to the assistant",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, input *ChatInput) (*ChatOutput, error) {
		message := strings.TrimSpace(input.Body.Message)
		if message == "" {
			return nil, huma.Error400BadRequest("message must not be empty")
		}

		sessionID, ok := middleware.SessionIDFromContext(ctx)
		if !ok {
			return nil, huma.Error400BadRequest("missing session")
		}

		assistant, err := mgr.Resolve(ctx, sessionID)
		if err != nil {
			if errors.Is(err, domain.ErrAgentInit) {
				return nil, huma.Error500InternalServerError("assistant is not available", err)
			}
			return nil, huma.Error500InternalServerError("failed to resolve session", err)
		}

		reply := assistant.Send(ctx, message)

		if err := mgr.RecordActivity(ctx, sessionID); err != nil {
			// The reply is already computed; losing one persistence write
			// only costs durability, not the exchange.
			log.Warn().Err(err).Msg("failed to persist session")
		}

		out := &ChatOutput{}
		out.Body.Success = true
		out.Body.Response = reply
		return out, nil
	})
}

// RegisterControlRoutes wires reset, health and status. These are exempt
// from rate limiting so monitoring keeps working when a client is throttled.
func RegisterControlRoutes(api huma.API, mgr *session.Manager, cfg *config.Config) {
	huma.Register(api, huma.Operation{
		OperationID: "reset",
		Method:      http.MethodPost,
		Path:        "/reset",
		Summary:     "Clear the conversation history for this session",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, _ *struct{}) (*ResetOutput, error) {
		sessionID, ok := middleware.SessionIDFromContext(ctx)
		if !ok {
			return nil, huma.Error400BadRequest("missing session")
		}

		if err := mgr.ResetSession(ctx, sessionID); err != nil {
			return nil, huma.Error500InternalServerError("failed to reset session", err)
		}

		out := &ResetOutput{}
		out.Body.Success = true
		out.Body.Message = "Conversation history cleared."
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health and active session count",
		Tags:        []string{"System"},
	}, func(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
		// Health checks double as a sweep trigger so expired sessions are
		// reclaimed even on an otherwise idle service.
		mgr.SweepExpired(ctx, time.Now())

		out := &HealthOutput{}
		out.Body.Status = "healthy"
		out.Body.ActiveSessions = mgr.Len()
		out.Body.Version = Version
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Effective runtime configuration",
		Tags:        []string{"System"},
	}, func(_ context.Context, _ *struct{}) (*StatusOutput, error) {
		out := &StatusOutput{}
		out.Body.Model = cfg.OpenAI.Model
		out.Body.SearchEngine = cfg.Search.ResolveEngine()
		out.Body.SessionTimeout = cfg.Session.Timeout.String()
		out.Body.RateLimit.Enabled = cfg.RateLimit.Enabled
		out.Body.RateLimit.RPM = cfg.RateLimit.RPM
		out.Body.RateLimit.Window = cfg.RateLimit.Window.String()
		return out, nil
	})
}
