// internal/app/features/setpassword/handler.go
package setpassword

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/system/auditlog"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/idp"
	"github.com/opencourt/tournhub/internal/app/system/sanitize"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
)

const minPasswordLen = 8

// Handler serves the set-password screen the recovery flow lands on. The
// provider owns credentials; this feature only relays the new password over
// the session's access token.
type Handler struct {
	Provider idp.Client
	Log      *zap.Logger

	// Audit records completed password changes. Optional; a nil logger is a no-op.
	Audit *auditlog.Logger
}

func NewHandler(provider idp.Client, logger *zap.Logger) *Handler {
	return &Handler{Provider: provider, Log: logger}
}

type pageData struct {
	Title string
	Error string
}

// ServeForm handles GET /set-password.
func (h *Handler) ServeForm(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "set_password", pageData{Title: "Set a new password"})
}

// HandleSubmit handles POST /set-password.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok || u.AccessToken == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, "Invalid form data.")
		return
	}
	newPassword := r.FormValue("new_password")
	confirm := r.FormValue("confirm_password")

	switch {
	case len(newPassword) < minPasswordLen:
		h.renderError(w, r, "Password must be at least 8 characters.")
		return
	case newPassword != confirm:
		h.renderError(w, r, "Passwords do not match.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Provider.UpdatePassword(ctx, u.AccessToken, newPassword); err != nil {
		h.Log.Error("password update failed",
			zap.String("identity_id", u.ID),
			zap.Error(err))
		h.renderError(w, r, sanitize.ProviderError(err.Error()))
		return
	}

	h.Log.Info("password updated", zap.String("identity_id", u.ID))
	h.Audit.PasswordChanged(ctx, u.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, msg string) {
	templates.Render(w, r, "set_password", pageData{
		Title: "Set a new password",
		Error: msg,
	})
}
