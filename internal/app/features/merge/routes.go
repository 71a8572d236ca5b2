// internal/app/features/merge/routes.go
package merge

import "github.com/go-chi/chi/v5"

// Routes is mounted under /api/account/merge.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeMerge)
	return r
}
