// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// UserCtx returns the user's global role (lowercased), display name, provider
// subject ID, and a found flag. If no user is present in context it returns
// "visitor", "", "", false so callers can trust that ok=true means a valid,
// authenticated user.
func UserCtx(r *http.Request) (role string, name string, identityID string, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok || user.ID == "" {
		return "visitor", "", "", false
	}
	return strings.ToLower(user.GlobalRole), user.Name, user.ID, true
}

// IsAdmin reports whether the current request's user is an application admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == string(models.GlobalRoleAdmin)
}

// IsGuest reports whether the current request's user is an anonymous guest.
func IsGuest(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == string(models.GlobalRoleGuest)
}

// IsSignedIn reports whether any identity (guest included) is in context.
func IsSignedIn(r *http.Request) bool {
	_, ok := auth.CurrentUser(r)
	return ok
}
