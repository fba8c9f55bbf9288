package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/parley-ai/parley/internal/api/v1"
	"github.com/parley-ai/parley/internal/api/ws"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/session"
)

func registerChatRoutes(api huma.API, mgr *session.Manager) {
	v1.RegisterChatRoutes(api, mgr)
}

func registerControlRoutes(api huma.API, mgr *session.Manager, cfg *config.Config) {
	v1.RegisterControlRoutes(api, mgr, cfg)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/chat", hub.ServeChat)
}
