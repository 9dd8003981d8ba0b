package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dreamvault/internal/entryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *entryservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entries and search.
	r.Get("/entries", h.ListEntries)
	r.Get("/search", h.Search)

	// Metrics.
	r.Get("/metrics", h.Metrics)
	r.Get("/conflicts", h.Conflicts)
	r.Get("/stats", h.Stats)

	// Scrape and front-matter write-back.
	r.Post("/scrape", h.Scrape)
	r.Post("/frontmatter/*", h.WriteBack)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
