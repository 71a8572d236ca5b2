// internal/app/features/userinfo/handler.go
package userinfo

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// Handler serves identity information for the current session.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

// ServeUserInfo returns JSON with the current session's authentication
// status and identity.
//
// Response format:
//
//	{ "isAuthenticated": bool, "id": "...", "name": "...", "email": "...",
//	  "global_role": "...", "is_guest": bool }
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user, ok := auth.CurrentUser(r)
	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"isAuthenticated": false,
			"id":              "",
			"name":            "",
			"email":           "",
			"global_role":     "",
			"is_guest":        false,
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"isAuthenticated": true,
		"id":              user.ID,
		"name":            user.Name,
		"email":           user.Email,
		"global_role":     user.GlobalRole,
		"is_guest":        strings.EqualFold(user.GlobalRole, string(models.GlobalRoleGuest)),
	})
}
