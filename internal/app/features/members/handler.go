// internal/app/features/members/handler.go
package members

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	membershipsvc "github.com/opencourt/tournhub/internal/app/service/membership"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// Handler is the roster surface for a single tournament: list members,
// change roles, remove members, and transfer ownership. All authorization
// decisions live in the membership service, which checks stored roles rather
// than anything the client sent.
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

// writeServiceError maps membership service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch err {
	case membershipsvc.ErrForbidden:
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case membershipsvc.ErrNotMember:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case membershipsvc.ErrTransferIncomplete:
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "operation failed"})
	}
}

func tournamentID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "tournamentID"))
	return id, err == nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/tournaments/{tournamentID}/members                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := tournamentID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tournament id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	roster, err := h.Members.ListMembers(ctx, id, u.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": roster})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/tournaments/{tournamentID}/members/{userID}/role                  |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeChangeRole sets a member's role. Trainer grants may carry team_ids to
// scope write access; any other role drops the scope.
func (h *Handler) ServeChangeRole(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := tournamentID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tournament id"})
		return
	}
	targetID := chi.URLParam(r, "userID")

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form data"})
		return
	}
	newRole := models.Role(strings.TrimSpace(r.FormValue("role")))
	teamIDs := r.Form["team_ids"]

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.ChangeRole(ctx, id, u.ID, targetID, newRole, teamIDs); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": string(newRole)})
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /api/tournaments/{tournamentID}/members/{userID}                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRemove(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := tournamentID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tournament id"})
		return
	}
	targetID := chi.URLParam(r, "userID")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.RemoveMember(ctx, id, u.ID, targetID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": targetID})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/tournaments/{tournamentID}/members/transfer                       |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeTransfer hands ownership to a co-admin successor.
func (h *Handler) ServeTransfer(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := tournamentID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tournament id"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form data"})
		return
	}
	successorID := strings.TrimSpace(r.FormValue("successor_id"))
	if successorID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "successor_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Members.TransferOwnership(ctx, id, u.ID, successorID); err != nil {
		writeServiceError(w, err)
		return
	}

	h.Log.Info("ownership transferred via API",
		zap.String("tournament_id", id.Hex()),
		zap.String("from", u.ID),
		zap.String("to", successorID))
	writeJSON(w, http.StatusOK, map[string]string{"owner_id": successorID})
}
