// internal/app/features/authcallback/routes.go
package authcallback

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeCallback)
	return r
}
