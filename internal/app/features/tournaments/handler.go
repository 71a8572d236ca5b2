// internal/app/features/tournaments/handler.go
package tournaments

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	identitystore "github.com/opencourt/tournhub/internal/app/store/identities"
	invitationstore "github.com/opencourt/tournhub/internal/app/store/invitations"
	membershipstore "github.com/opencourt/tournhub/internal/app/store/memberships"
	tournamentstore "github.com/opencourt/tournhub/internal/app/store/tournaments"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/guestlimit"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// Handler is the tournament resource surface: create (quota-gated for
// guests), list, inspect, and soft-delete.
type Handler struct {
	Tournaments *tournamentstore.Store
	Memberships *membershipstore.Store
	Invitations *invitationstore.Store
	Identities  *identitystore.Store
	Limits      *guestlimit.Tracker
	Log         *zap.Logger
}

func NewHandler(
	tournaments *tournamentstore.Store,
	memberships *membershipstore.Store,
	invitations *invitationstore.Store,
	identities *identitystore.Store,
	limits *guestlimit.Tracker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Tournaments: tournaments,
		Memberships: memberships,
		Invitations: invitations,
		Identities:  identities,
		Limits:      limits,
		Log:         logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// quotaFor evaluates the caller's guest quota against their current active
// tournament count.
func (h *Handler) quotaFor(ctx context.Context, identityID string) (guestlimit.Status, error) {
	ident, err := h.Identities.GetByID(ctx, identityID)
	if err != nil {
		return guestlimit.Status{}, err
	}
	used, err := h.Tournaments.CountActiveByOwner(ctx, identityID)
	if err != nil {
		return guestlimit.Status{}, err
	}
	return h.Limits.Evaluate(ident.IsGuest(), int(used)), nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/tournaments                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeList returns the tournaments the caller owns plus every membership
// they hold, with their quota status alongside.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	owned, err := h.Tournaments.ListByOwner(ctx, u.ID, models.TournamentActive)
	if err != nil {
		h.Log.Error("list owned tournaments failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load tournaments")
		return
	}
	memberships, err := h.Memberships.ListByUser(ctx, u.ID)
	if err != nil {
		h.Log.Error("list memberships failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load tournaments")
		return
	}
	quota, err := h.quotaFor(ctx, u.ID)
	if err != nil {
		h.Log.Error("quota evaluation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load tournaments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owned":       owned,
		"memberships": memberships,
		"quota":       quota,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/tournaments                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeCreate creates a tournament with the caller as owner. Guests are
// checked against the active-tournament quota first; deleted tournaments do
// not count against it.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "tournament name is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	quota, err := h.quotaFor(ctx, u.ID)
	if err != nil {
		h.Log.Error("quota evaluation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create tournament")
		return
	}
	if !quota.CanCreate {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": "guest accounts are limited to 3 active tournaments; sign up to keep them all",
			"quota": quota,
		})
		return
	}

	tourn, err := h.Tournaments.Create(ctx, u.ID, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not create tournament")
		return
	}

	if _, err := h.Memberships.Add(ctx, tourn.ID, u.ID, models.RoleOwner, nil); err != nil {
		// Without an owner membership the tournament is unusable; take it
		// back out rather than leaving an orphan.
		h.Log.Error("owner membership insert failed",
			zap.String("tournament_id", tourn.ID.Hex()), zap.Error(err))
		if derr := h.Tournaments.SetStatus(ctx, tourn.ID, models.TournamentDeleted); derr != nil {
			h.Log.Error("orphan tournament cleanup failed",
				zap.String("tournament_id", tourn.ID.Hex()), zap.Error(derr))
		}
		writeError(w, http.StatusInternalServerError, "could not create tournament")
		return
	}

	h.Log.Info("tournament created",
		zap.String("tournament_id", tourn.ID.Hex()),
		zap.String("owner_id", u.ID))
	writeJSON(w, http.StatusCreated, map[string]any{"tournament": tourn})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/tournaments/quota                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeQuota(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	quota, err := h.quotaFor(ctx, u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not evaluate quota")
		return
	}
	writeJSON(w, http.StatusOK, quota)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/tournaments/{tournamentID}                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "tournamentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tournament id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	tourn, err := h.Tournaments.GetByID(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			writeError(w, http.StatusNotFound, "tournament not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load tournament")
		return
	}

	role := ""
	if m, err := h.Memberships.Get(ctx, id, u.ID); err == nil {
		role = string(m.Role)
	}

	// Soft-deleted tournaments stay visible to their members only.
	if tourn.Status == models.TournamentDeleted && role == "" {
		writeError(w, http.StatusNotFound, "tournament not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tournament": tourn, "role": role})
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /api/tournaments/{tournamentID}                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeDelete soft-deletes a tournament. Only the owner (or an application
// admin) may do this; memberships stay in place so an undelete remains
// possible, but open invitations are revoked immediately.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "tournamentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tournament id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if !u.IsAdmin() {
		m, err := h.Memberships.Get(ctx, id, u.ID)
		if err != nil || m.Role != models.RoleOwner {
			writeError(w, http.StatusForbidden, "only the owner can delete a tournament")
			return
		}
	}

	if err := h.Tournaments.SetStatus(ctx, id, models.TournamentDeleted); err != nil {
		h.Log.Error("tournament delete failed",
			zap.String("tournament_id", id.Hex()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete tournament")
		return
	}

	if n, err := h.Invitations.DeleteByTournament(ctx, id); err != nil {
		h.Log.Warn("invitation cleanup failed",
			zap.String("tournament_id", id.Hex()), zap.Error(err))
	} else if n > 0 {
		h.Log.Info("invitations revoked with tournament",
			zap.String("tournament_id", id.Hex()), zap.Int64("count", n))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": models.TournamentDeleted})
}
