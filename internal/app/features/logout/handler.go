// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/system/auditlog"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/idp"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
)

// Handler signs the user out locally and revokes the provider session. The
// guest cookie is deliberately left alone: a guest who signs out keeps their
// identity for next time, and a pending merge survives the sign-out.
type Handler struct {
	Provider idp.Client
	Log      *zap.Logger

	// Audit records sign-outs. Optional; a nil logger is a no-op.
	Audit *auditlog.Logger
}

func NewHandler(provider idp.Client, logger *zap.Logger) *Handler {
	return &Handler{Provider: provider, Log: logger}
}

// ServeLogout handles POST /logout (and GET for plain links).
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	u, signedIn := auth.CurrentUser(r)
	if signedIn && u.AccessToken != "" {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		if err := h.Provider.SignOut(ctx, u.AccessToken); err != nil {
			// Local sign-out proceeds regardless; the provider token expires
			// on its own.
			h.Log.Warn("provider sign-out failed", zap.Error(err))
		}
		cancel()
	}

	if err := auth.SignOut(w, r); err != nil {
		h.Log.Error("session clear failed", zap.Error(err))
	}
	if signedIn {
		h.Audit.SignOut(r.Context(), u.ID)
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
