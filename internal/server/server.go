// Package server wires the HTTP surface: routing, middleware, the JSON API,
// the WebSocket chat transport and the embedded chat page.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/parley-ai/parley/internal/api/ws"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/ratelimit"
	"github.com/parley-ai/parley/internal/server/middleware"
	"github.com/parley-ai/parley/internal/session"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	mgr        *session.Manager
	limiter    *ratelimit.Limiter // nil when rate limiting is disabled
	cfg        *config.Config
}

// New creates a Server with all routes wired.
// webAssets may be nil; when provided, the embedded chat page is served on
// all unmatched routes (go:embed for single-binary distribution).
func New(cfg *config.Config, mgr *session.Manager, limiter *ratelimit.Limiter, webAssets fs.FS) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router:  router,
		mgr:     mgr,
		limiter: limiter,
		cfg:     cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api with two sub-groups:
	// 1. Rate-limited chat exchange.
	// 2. Control endpoints (reset, health, status) that stay reachable while
	//    a client is throttled.
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Session())

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(middleware.RateLimit(limiter))
			}

			chatConfig := huma.DefaultConfig("Parley Chat API", "1.0.0")
			chatConfig.Servers = []*huma.Server{
				{URL: "/api"},
			}
			chatAPI := humachi.New(r, chatConfig)
			registerChatRoutes(chatAPI, mgr)
		})

		r.Group(func(r chi.Router) {
			controlConfig := huma.DefaultConfig("Parley Control API", "1.0.0")
			controlConfig.Servers = []*huma.Server{
				{URL: "/api"},
			}
			controlAPI := humachi.New(r, controlConfig)
			registerControlRoutes(controlAPI, mgr, cfg)
		})
	})

	// WebSocket chat.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Session())
		registerWSRoutes(r, ws.NewHub(mgr, limiter))
	})

	// Serve the embedded chat page on all unmatched routes.
	// This must be the last route registered so API/WS routes take priority.
	if webAssets != nil {
		router.NotFound(staticFileServer(webAssets).ServeHTTP)
		log.Info().Msg("embedded chat page enabled")
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
