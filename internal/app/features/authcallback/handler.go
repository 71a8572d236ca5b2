// internal/app/features/authcallback/handler.go
package authcallback

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/service/accountmerge"
	identitystore "github.com/opencourt/tournhub/internal/app/store/identities"
	"github.com/opencourt/tournhub/internal/app/system/auditlog"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/authflow"
	"github.com/opencourt/tournhub/internal/app/system/authparams"
	"github.com/opencourt/tournhub/internal/app/system/flagstore"
	"github.com/opencourt/tournhub/internal/app/system/idp"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// Handler terminates the identity provider's redirect. It resolves whatever
// parameters survived the round-trip, drives the dispatcher to a terminal
// state, and turns that state into a response: a redirect on success, an
// error page otherwise.
type Handler struct {
	Provider   idp.Client
	Flags      *flagstore.Flags
	Identities *identitystore.Store
	Merger     *accountmerge.Coordinator
	Guests     *auth.GuestCookies
	Log        *zap.Logger

	// Audit records completed sign-ins. Optional; a nil logger is a no-op.
	Audit *auditlog.Logger
}

func NewHandler(
	provider idp.Client,
	flags *flagstore.Flags,
	identities *identitystore.Store,
	merger *accountmerge.Coordinator,
	guests *auth.GuestCookies,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Provider:   provider,
		Flags:      flags,
		Identities: identities,
		Merger:     merger,
		Guests:     guests,
		Log:        logger,
	}
}

type errorPageData struct {
	Title   string
	Message string
}

// ServeCallback handles GET /auth/callback.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	params := authparams.Resolve(r.URL)

	// An existing cookie session carries the token pair the dispatcher uses
	// to prefer "already authenticated" over re-running an exchange.
	var access, refresh string
	if u, ok := auth.CurrentUser(r); ok {
		access, refresh = u.AccessToken, u.RefreshToken
	}

	d := authflow.New(h.Provider, h.Flags, h.Log)
	d.OnSession = func(ctx context.Context, sess *models.ProviderSession) error {
		return h.installSession(ctx, w, r, sess)
	}

	out := d.Dispatch(r.Context(), params, access, refresh)

	switch out.State {
	case authflow.StateRedirecting:
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", out.RedirectTo)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, out.RedirectTo, http.StatusSeeOther)
	default:
		templates.Render(w, r, "auth_error", errorPageData{
			Title:   "Sign-in problem",
			Message: out.Message,
		})
	}
}

// installSession is the dispatcher's success hook: mirror the provider
// identity locally, write the cookie session, then merge a pending guest if
// one is still riding along in the guest cookie.
func (h *Handler) installSession(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *models.ProviderSession) error {
	ident, err := h.Identities.UpsertFromSession(ctx, sess)
	if err != nil {
		return err
	}
	if err := auth.SignIn(w, r, ident, sess); err != nil {
		return err
	}
	h.Audit.SignIn(ctx, ident.ID, "provider")

	claim, ok := h.Guests.Get(w, r)
	if !ok || claim.ID == ident.ID {
		return nil
	}

	res := h.Merger.Merge(ctx, claim.ID, ident.ID)
	if res.Success {
		h.Guests.Clear(w)
		h.Log.Info("guest merged on sign-in",
			zap.String("guest_id", claim.ID),
			zap.String("identity_id", ident.ID),
			zap.Int("tournaments", res.TournamentsMerged))
		return nil
	}

	// Leave the guest cookie in place so the next sign-in retries the merge;
	// the merge is idempotent, so a partial attempt resumes where it stopped.
	h.Log.Warn("guest merge incomplete, will retry on next sign-in",
		zap.String("guest_id", claim.ID),
		zap.String("identity_id", ident.ID),
		zap.Error(res.Err))
	return nil
}
