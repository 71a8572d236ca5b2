// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/google/uuid"
	"go.uber.org/zap"

	identitystore "github.com/opencourt/tournhub/internal/app/store/identities"
	"github.com/opencourt/tournhub/internal/app/system/auditlog"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/flagstore"
	"github.com/opencourt/tournhub/internal/app/system/ratelimit"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// AuthURLProvider builds the hand-off URL for interactive provider login.
// Satisfied by idp.HTTPClient.
type AuthURLProvider interface {
	AuthCodeURL(state, redirectTo string) string
}

// Handler serves the login page and the two entry points it offers: the
// provider hand-off for permanent accounts, and the local guest path that
// needs no provider round-trip at all.
type Handler struct {
	Provider   AuthURLProvider
	Identities *identitystore.Store
	Flags      *flagstore.Flags
	Guests     *auth.GuestCookies
	GuestRate  *ratelimit.GuestLimiter // nil disables throttling
	BaseURL    string                  // public base URL, used to build the callback redirect
	Log        *zap.Logger

	// Audit records guest session starts. Optional; a nil logger is a no-op.
	Audit *auditlog.Logger
}

func NewHandler(
	provider AuthURLProvider,
	identities *identitystore.Store,
	flags *flagstore.Flags,
	guests *auth.GuestCookies,
	guestRate *ratelimit.GuestLimiter,
	baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Provider:   provider,
		Identities: identities,
		Flags:      flags,
		Guests:     guests,
		GuestRate:  guestRate,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Log:        logger,
	}
}

type loginPageData struct {
	Title     string
	ReturnURL string
	Error     string
	GuestName string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	// Already signed in: nothing to do here.
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, urlutil.SafeReturn(query.Get(r, "return"), "", "/"), http.StatusSeeOther)
		return
	}

	data := loginPageData{
		Title:     "Sign in",
		ReturnURL: query.Get(r, "return"),
	}
	// A returning guest gets their name pre-filled.
	if claim, ok := h.Guests.Get(w, r); ok {
		data.GuestName = claim.DisplayName
	}

	templates.Render(w, r, "login", data)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login/provider                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleProviderStart hands the browser to the identity provider. The
// provider redirects back to /auth/callback when it is done.
func (h *Handler) HandleProviderStart(w http.ResponseWriter, r *http.Request) {
	dest := h.Provider.AuthCodeURL(uuid.NewString(), h.BaseURL+"/auth/callback")
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login/guest                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleGuest signs the visitor in as a local anonymous identity. A returning
// guest (valid guest cookie pointing at a live guest record) gets their
// existing identity back instead of a fresh one, so their tournaments follow
// them between visits.
func (h *Handler) HandleGuest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	if displayName == "" {
		displayName = "Guest"
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ident, reused := h.resumeGuest(ctx, w, r)
	if !reused {
		// Fresh guest records are throttled per IP; resuming is always free.
		if h.GuestRate != nil {
			if ok, reason := h.GuestRate.Check(r); !ok {
				h.Log.Warn("guest creation rate limited", zap.String("ip", ratelimit.ClientIP(r)))
				http.Error(w, reason, http.StatusTooManyRequests)
				return
			}
		}
		created, err := h.Identities.CreateGuest(ctx, displayName)
		if err != nil {
			h.Log.Error("guest identity create failed", zap.Error(err))
			http.Error(w, "could not start a guest session", http.StatusInternalServerError)
			return
		}
		ident = created
	}

	if err := h.Guests.Set(w, auth.GuestClaim{ID: ident.ID, DisplayName: ident.DisplayName}); err != nil {
		h.Log.Error("guest cookie write failed", zap.Error(err))
		http.Error(w, "could not start a guest session", http.StatusInternalServerError)
		return
	}
	if err := auth.SignIn(w, r, &ident, nil); err != nil {
		h.Log.Error("guest session write failed", zap.Error(err))
		http.Error(w, "could not start a guest session", http.StatusInternalServerError)
		return
	}

	h.Log.Info("guest session started",
		zap.String("identity_id", ident.ID),
		zap.Bool("resumed", reused))
	h.Audit.GuestStarted(ctx, ident.ID, reused)

	dest := urlutil.SafeReturn(strings.TrimSpace(r.FormValue("return")), "", "/")
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// resumeGuest returns the live guest identity named by the guest cookie, if
// there is one. A cookie pointing at a merged-away or vanished guest is
// treated as absent.
func (h *Handler) resumeGuest(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	claim, ok := h.Guests.Get(w, r)
	if !ok {
		return models.Identity{}, false
	}
	existing, err := h.Identities.GetByID(ctx, claim.ID)
	if err != nil || !existing.IsGuest() {
		return models.Identity{}, false
	}
	return *existing, true
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login/recovery                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRecoveryStart marks the flow as a password recovery before handing
// off to the provider. The intent is keyed by the state nonce the provider
// echoes back, so it only reroutes this flow's callback to the set-password
// screen, even when the provider drops the "type" parameter.
func (h *Handler) HandleRecoveryStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	h.Flags.MarkRecoveryIntent(state)
	dest := h.Provider.AuthCodeURL(state, h.BaseURL+"/auth/callback")
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
