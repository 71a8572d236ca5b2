// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeLogin)
	r.Get("/provider", h.HandleProviderStart)
	r.Post("/guest", h.HandleGuest)
	r.Post("/recovery", h.HandleRecoveryStart)
	return r
}
