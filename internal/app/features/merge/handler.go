// internal/app/features/merge/handler.go
package merge

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/service/accountmerge"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// Handler exposes the guest merge as an explicit endpoint. The sign-in
// callback already merges automatically; this surface exists for the "keep
// my guest tournaments" prompt shown to users who signed in on a device
// where the automatic merge was skipped or failed partway.
type Handler struct {
	Merger *accountmerge.Coordinator
	Guests *auth.GuestCookies
	Log    *zap.Logger
}

func NewHandler(merger *accountmerge.Coordinator, guests *auth.GuestCookies, logger *zap.Logger) *Handler {
	return &Handler{Merger: merger, Guests: guests, Log: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ServeMerge handles POST /api/account/merge.
func (h *Handler) ServeMerge(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in first"})
		return
	}
	if u.GlobalRole == string(models.GlobalRoleGuest) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "sign in with a permanent account to merge"})
		return
	}

	claim, ok := h.Guests.Get(w, r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending guest to merge"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res := h.Merger.Merge(ctx, claim.ID, u.ID)
	if !res.Success {
		switch res.Err {
		case accountmerge.ErrSourceNotGuest, accountmerge.ErrSameIdentity:
			// The cookie points at something that is not a mergeable guest;
			// it will never become one, so drop it.
			h.Guests.Clear(w)
			writeJSON(w, http.StatusConflict, map[string]string{"error": "nothing to merge"})
		default:
			h.Log.Error("account merge failed",
				zap.String("guest_id", claim.ID),
				zap.String("identity_id", u.ID),
				zap.Error(res.Err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "merge did not complete; try again"})
		}
		return
	}

	h.Guests.Clear(w)
	h.Log.Info("account merged",
		zap.String("guest_id", claim.ID),
		zap.String("identity_id", u.ID),
		zap.Int("tournaments", res.TournamentsMerged))

	writeJSON(w, http.StatusOK, map[string]any{
		"merged":             true,
		"tournaments_merged": res.TournamentsMerged,
	})
}
