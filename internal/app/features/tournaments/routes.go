// internal/app/features/tournaments/routes.go
package tournaments

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.ServeCreate)
	r.Get("/quota", h.ServeQuota)
	r.Get("/{tournamentID}", h.ServeGet)
	r.Delete("/{tournamentID}", h.ServeDelete)
	return r
}
