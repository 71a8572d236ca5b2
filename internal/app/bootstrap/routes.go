// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	authcallbackfeature "github.com/opencourt/tournhub/internal/app/features/authcallback"
	errorsfeature "github.com/opencourt/tournhub/internal/app/features/errors"
	healthfeature "github.com/opencourt/tournhub/internal/app/features/health"
	homefeature "github.com/opencourt/tournhub/internal/app/features/home"
	invitesfeature "github.com/opencourt/tournhub/internal/app/features/invites"
	loginfeature "github.com/opencourt/tournhub/internal/app/features/login"
	logoutfeature "github.com/opencourt/tournhub/internal/app/features/logout"
	membersfeature "github.com/opencourt/tournhub/internal/app/features/members"
	mergefeature "github.com/opencourt/tournhub/internal/app/features/merge"
	setpasswordfeature "github.com/opencourt/tournhub/internal/app/features/setpassword"
	tournamentsfeature "github.com/opencourt/tournhub/internal/app/features/tournaments"
	userinfofeature "github.com/opencourt/tournhub/internal/app/features/userinfo"
	accountmergesvc "github.com/opencourt/tournhub/internal/app/service/accountmerge"
	membershipsvc "github.com/opencourt/tournhub/internal/app/service/membership"
	auditstore "github.com/opencourt/tournhub/internal/app/store/audit"
	identitystore "github.com/opencourt/tournhub/internal/app/store/identities"
	invitationstore "github.com/opencourt/tournhub/internal/app/store/invitations"
	membershipstore "github.com/opencourt/tournhub/internal/app/store/memberships"
	tournamentstore "github.com/opencourt/tournhub/internal/app/store/tournaments"
	"github.com/opencourt/tournhub/internal/app/system/auditlog"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/flagstore"
	"github.com/opencourt/tournhub/internal/app/system/guestlimit"
	"github.com/opencourt/tournhub/internal/app/system/idp"
	"github.com/opencourt/tournhub/internal/app/system/ratelimit"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// TournHub initializes the cookie stores and template engine, wires the
// stores and services, and mounts feature routers: the public pages, the
// auth flow surface, and the signed-in tournament API.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}
	guests := auth.NewGuestCookies(appCfg.SessionKey, secure, logger)

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	// Identity provider client.
	provider := idp.NewHTTPClient(appCfg.ProviderURL, appCfg.ProviderAPIKey, logger)

	// Stores.
	identities := identitystore.New(deps.MongoDatabase)
	tournaments := tournamentstore.New(deps.MongoDatabase)
	memberships := membershipstore.New(deps.MongoDatabase)
	invitations := invitationstore.New(deps.MongoDatabase)
	auditEvents := auditstore.New(deps.MongoDatabase)

	// Audit trail for auth and membership-management events.
	auditor := auditlog.New(auditEvents, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	// Services and process-local state.
	merger := accountmergesvc.New(identities, tournaments, memberships, logger)
	merger.Audit = auditor
	members := membershipsvc.New(memberships, invitations, tournaments, logger)
	members.Audit = auditor
	flags := flagstore.NewFlags(flagstore.New())
	limits := guestlimit.New(appCfg.GuestLimitEnabled)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Public pages
	homeHandler := homefeature.NewHandler(logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(provider, identities, flags, guests, ratelimit.NewGuestLimiter(), appCfg.BaseURL, logger)
	loginHandler.Audit = auditor
	r.Mount("/login", loginfeature.Routes(loginHandler))

	callbackHandler := authcallbackfeature.NewHandler(provider, flags, identities, merger, guests, logger)
	callbackHandler.Audit = auditor
	r.Mount("/auth/callback", authcallbackfeature.Routes(callbackHandler))

	logoutHandler := logoutfeature.NewHandler(provider, logger)
	logoutHandler.Audit = auditor
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	setPasswordHandler := setpasswordfeature.NewHandler(provider, logger)
	setPasswordHandler.Audit = auditor
	r.Mount("/set-password", setpasswordfeature.Routes(setPasswordHandler))

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	// Session introspection
	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	// Tournament API: everything below requires a session (guest or permanent).
	tournHandler := tournamentsfeature.NewHandler(tournaments, memberships, invitations, identities, limits, logger)
	membersHandler := membersfeature.NewHandler(members, logger)
	invitesHandler := invitesfeature.NewHandler(members, logger)
	mergeHandler := mergefeature.NewHandler(merger, guests, logger)

	r.Group(func(api chi.Router) {
		api.Use(auth.RequireSignedIn)

		tr := tournamentsfeature.Routes(tournHandler)
		tr.Mount("/{tournamentID}/members", membersfeature.Routes(membersHandler))
		tr.Mount("/{tournamentID}/invites", invitesfeature.ManageRoutes(invitesHandler))
		api.Mount("/api/tournaments", tr)

		api.Mount("/api/invites", invitesfeature.RedeemRoutes(invitesHandler))
		api.Mount("/api/account/merge", mergefeature.Routes(mergeHandler))
	})

	return r, nil
}
