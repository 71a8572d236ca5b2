// internal/app/features/invites/routes.go
package invites

import "github.com/go-chi/chi/v5"

// ManageRoutes is mounted under /api/tournaments/{tournamentID}/invites.
func ManageRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeCreate)
	r.Get("/", h.ServeList)
	r.Delete("/{token}", h.ServeRevoke)
	return r
}

// RedeemRoutes is mounted under /api/invites.
func RedeemRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/{token}/redeem", h.ServeRedeem)
	return r
}
