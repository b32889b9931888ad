package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soffiafdz/palimpsest-sub000/internal/wikiservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *wikiservice.Service, auth Auth, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth))

	r.Post("/sync", h.Sync)
	r.Post("/generate", h.Generate)

	r.Get("/lint", h.Lint)
	r.Get("/lint/*", h.Lint)

	r.Get("/pending", h.Pending)
	r.Get("/pages/*", h.GetPage)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
