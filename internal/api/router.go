package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Registry browsing.
	r.Get("/providers", h.ListProviders)
	r.Get("/providers/{provider}", h.GetProvider)
	r.Get("/providers/{provider}/{service}/{version}", h.GetEntry)
	r.Get("/providers/{provider}/{service}/{version}/document", h.GetDocument)

	// Search.
	r.Get("/search", h.Search)

	// Status.
	r.Get("/status", h.Status)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
