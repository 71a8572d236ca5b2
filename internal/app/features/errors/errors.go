// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"

	"github.com/opencourt/tournhub/internal/app/system/authz"
)

// pageData is the view model for the error pages.
type pageData struct {
	Title      string
	IsLoggedIn bool
	IsGuest    bool
	Role       string
	UserName   string
	Message    string
	BackURL    string
}

// Handler renders the error pages. It has no dependencies; everything it
// needs comes from the request context.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden renders the "access denied" page.
// GET /forbidden
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	role, name, _, signedIn := authz.UserCtx(r)

	data := pageData{
		Title:      "Access denied",
		IsLoggedIn: signedIn,
		IsGuest:    authz.IsGuest(r),
		Role:       role,
		UserName:   name,
		Message:    "Your role in this tournament doesn't allow that.",
		BackURL:    "/",
	}

	templates.Render(w, r, "error_forbidden", data)
}

// Unauthorized renders the "sign in required" page. Guests are signed in as
// far as the session is concerned, so they land on Forbidden instead.
// GET /unauthorized
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	role, name, _, signedIn := authz.UserCtx(r)

	data := pageData{
		Title:      "Sign in required",
		IsLoggedIn: signedIn,
		IsGuest:    authz.IsGuest(r),
		Role:       role,
		UserName:   name,
		Message:    "Please sign in to continue.",
		BackURL:    "/login",
	}

	// Shares the error_forbidden template; the two pages differ only in
	// message and back link.
	templates.Render(w, r, "error_forbidden", data)
}
