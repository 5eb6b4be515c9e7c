package server

import (
	"net/http"

	"github.com/cloo-solutions/leadbot/internal/api/handlers"
	"github.com/cloo-solutions/leadbot/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	ConversationHandler *handlers.ConversationHandler
	IndexStats          handlers.IndexStats
	// AdminToken guards the leads listing; empty leaves it open
	AdminToken string
	RateLimit  middleware.RateLimitConfig
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", handlers.Health(cfg.IndexStats))

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimit(cfg.RateLimit)).Post("/chat", cfg.ConversationHandler.Chat)
		r.Get("/sessions/{id}/history", cfg.ConversationHandler.History)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminToken(cfg.AdminToken))
			r.Get("/leads", cfg.ConversationHandler.ListLeads)
		})
	})

	return r
}
