package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the optional pieces mounted next to the API.
type RouterConfig struct {
	AllowedOrigins []string
	Metrics        http.Handler
	Static         http.Handler
}

// NewRouter builds the full HTTP surface.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/health"))
	r.Use(Correlation)
	r.Use(CORS(cfg.AllowedOrigins))

	h.RegisterRoutes(r)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.Static != nil {
		r.Handle("/*", cfg.Static)
	}
	return r
}
