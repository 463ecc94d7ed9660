package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/chainval/internal/chainservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *chainservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Chain files.
	r.Get("/chains", h.ListChains)
	r.Get("/chains/*", h.GetChain)

	// Validation and rebase.
	r.Post("/validate", h.Validate)
	r.Get("/versions", h.Versions)
	r.Post("/rebase", h.Rebase)

	// Rule set.
	r.Get("/rules", h.Rules)

	// Run history.
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
