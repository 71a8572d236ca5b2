// internal/app/features/members/routes.go
package members

import "github.com/go-chi/chi/v5"

// Routes is mounted under /api/tournaments/{tournamentID}/members.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/transfer", h.ServeTransfer)
	r.Post("/{userID}/role", h.ServeChangeRole)
	r.Delete("/{userID}", h.ServeRemove)
	return r
}
