// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /api/user. The endpoint answers for anonymous
// visitors too, so it takes no auth middleware; the handler reads the
// session itself.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/api/user", h.ServeUserInfo)
}
