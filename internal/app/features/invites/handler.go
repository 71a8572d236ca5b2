// internal/app/features/invites/handler.go
package invites

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	membershipsvc "github.com/opencourt/tournhub/internal/app/service/membership"
	invitationstore "github.com/opencourt/tournhub/internal/app/store/invitations"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// Handler is the invitation surface: mint, list, and revoke tokens for a
// tournament, and redeem a token into a membership. Redemption works for
// guests and permanent users alike.
type Handler struct {
	Members *membershipsvc.Service
	Log     *zap.Logger
}

func NewHandler(members *membershipsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Members: members, Log: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func tournamentID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "tournamentID"))
	return id, err == nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/tournaments/{tournamentID}/invites                                |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeCreate mints an invitation. max_uses of 0 (or absent) means
// unlimited; expires_in is an optional Go duration like "72h".
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := tournamentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tournament id")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	role := models.Role(strings.TrimSpace(r.FormValue("role")))
	teamIDs := r.Form["team_ids"]

	maxUses := 0
	if raw := strings.TrimSpace(r.FormValue("max_uses")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "max_uses must be a non-negative integer")
			return
		}
		maxUses = n
	}

	var expiresAt *time.Time
	if raw := strings.TrimSpace(r.FormValue("expires_in")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "expires_in must be a positive duration")
			return
		}
		at := time.Now().UTC().Add(d)
		expiresAt = &at
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	inv, err := h.Members.CreateInvitation(ctx, id, u.ID, role, teamIDs, maxUses, expiresAt)
	if err != nil {
		if err == membershipsvc.ErrForbidden {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "could not create invitation")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invitation": inv})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/tournaments/{tournamentID}/invites                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := tournamentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tournament id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	invs, err := h.Members.ListInvitations(ctx, id, u.ID)
	if err != nil {
		if err == membershipsvc.ErrForbidden {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load invitations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": invs})
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /api/tournaments/{tournamentID}/invites/{token}                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRevoke(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := tournamentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tournament id")
		return
	}
	token := chi.URLParam(r, "token")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.RevokeInvitation(ctx, id, u.ID, token); err != nil {
		switch err {
		case membershipsvc.ErrForbidden:
			writeError(w, http.StatusForbidden, err.Error())
		case invitationstore.ErrNotFound:
			writeError(w, http.StatusNotFound, "invitation not found")
		default:
			writeError(w, http.StatusInternalServerError, "could not revoke invitation")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"revoked": token})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/invites/{token}/redeem                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeRedeem consumes one use of the token and joins the caller to the
// tournament at the invitation's role.
func (h *Handler) ServeRedeem(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	token := chi.URLParam(r, "token")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Members.RedeemInvitation(ctx, token, u.ID)
	if err != nil {
		switch err {
		case membershipsvc.ErrAlreadyMember:
			writeError(w, http.StatusConflict, err.Error())
		case invitationstore.ErrExpired:
			writeError(w, http.StatusGone, "this invitation has expired")
		case invitationstore.ErrExhausted:
			writeError(w, http.StatusGone, "this invitation has no uses left")
		case invitationstore.ErrNotFound:
			writeError(w, http.StatusNotFound, "invitation not found")
		default:
			writeError(w, http.StatusInternalServerError, "could not redeem invitation")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"membership": m})
}
