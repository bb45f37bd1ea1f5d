package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veridoc/veridoc/internal/api"
	"github.com/veridoc/veridoc/internal/api/handlers"
	"github.com/veridoc/veridoc/internal/api/middleware"
)

type RouterConfig struct {
	APIKey           string
	AskHandler       *handlers.AskHandler
	DocumentsHandler *handlers.DocumentsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 16 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))

		r.Post("/ask", cfg.AskHandler.Ask)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentsHandler.Ingest)
			r.Get("/", cfg.DocumentsHandler.Stats)
			r.Delete("/", cfg.DocumentsHandler.Clear)
			r.Get("/{source}/original", cfg.DocumentsHandler.Original)
			r.Get("/{source}/archive-url", cfg.DocumentsHandler.ArchiveURL)
		})
	})

	return r
}
