package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(notes Notes, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(notes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Note list and read-only access.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)
	r.Delete("/notes/*", h.DeleteNote)

	// New-note composition.
	r.Post("/compose", h.Compose)
	r.Post("/compose/confirm", h.ConfirmTitle)

	// Active note and editor buffer.
	r.Get("/active", h.Active)
	r.Put("/active", h.Select)
	r.Put("/active/content", h.Edit)
	r.Post("/flush", h.Flush)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
