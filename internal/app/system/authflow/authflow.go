// internal/app/system/authflow/authflow.go

// Package authflow drives an authentication callback into a durable session.
//
// The dispatcher is a small state machine:
//
//	idle → resolving → {alreadyAuthenticated, exchangingCode,
//	                    settingSession, noData} → {redirecting, errored, timedOut}
//
// The branches are evaluated strictly in order and short-circuit on the
// first match. The whole dispatch is idempotent and safely retriable on the
// aborted-request class of transient errors, regardless of why the duplicate
// invocation happened (remount, double-click, browser retry).
package authflow

import (
	"context"
	"time"

	"github.com/opencourt/tournhub/internal/app/system/authparams"
	"github.com/opencourt/tournhub/internal/app/system/flagstore"
	"github.com/opencourt/tournhub/internal/app/system/idp"
	"github.com/opencourt/tournhub/internal/app/system/metrics"
	"github.com/opencourt/tournhub/internal/app/system/sanitize"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
	"github.com/opencourt/tournhub/internal/domain/models"
	"go.uber.org/zap"
)

// State names a dispatcher state. Only the terminal states appear in an
// Outcome.
type State string

const (
	StateIdle                 State = "idle"
	StateResolving            State = "resolving"
	StateAlreadyAuthenticated State = "alreadyAuthenticated"
	StateExchangingCode       State = "exchangingCode"
	StateSettingSession       State = "settingSession"
	StateNoData               State = "noData"

	StateRedirecting State = "redirecting"
	StateErrored     State = "errored"
	StateTimedOut    State = "timedOut"
)

// Redirect targets the dispatcher can end on.
const (
	RedirectHome        = "/"
	RedirectLogin       = "/login"
	RedirectSetPassword = "/set-password"
)

// User-visible messages per error class. Provider text only ever reaches
// the page through sanitize.ProviderError.
const (
	msgExpired  = "This sign-in link has expired. Please request a new one."
	msgConsumed = "This sign-in link was already used. If you clicked it twice, you may already be signed in."
	msgTimedOut = "Sign-in is taking longer than expected. Please try again."
)

// Outcome is the terminal result of one dispatch.
type Outcome struct {
	State      State
	RedirectTo string // set when State is StateRedirecting
	Message    string // sanitized, set when State is StateErrored or StateTimedOut

	// Path names the branch that produced the terminal state; used for
	// metrics and logging only.
	Path string
}

// Dispatcher reconciles a callback into a session. One Dispatcher is shared
// across requests; all per-request state lives on the stack.
type Dispatcher struct {
	Provider idp.Client
	Flags    *flagstore.Flags
	Log      *zap.Logger

	// OnSession runs once when a dispatch reaches an authenticated
	// resolution, before the redirect is returned. The callback feature
	// wires identity persistence and cookie-session creation here.
	OnSession func(ctx context.Context, sess *models.ProviderSession) error

	// MaxRetries is how many times a dispatch aborted by the runtime is
	// re-run before giving up. RetryDelay is the fixed pause between runs.
	MaxRetries int
	RetryDelay time.Duration
}

// New returns a Dispatcher with the standard retry policy.
func New(provider idp.Client, flags *flagstore.Flags, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Provider:   provider,
		Flags:      flags,
		Log:        logger,
		MaxRetries: 2,
		RetryDelay: 150 * time.Millisecond,
	}
}

// Dispatch runs the state machine for one callback. access/refresh are the
// cookie-held token pair, empty when the browser carried none. The dispatch
// is bounded by timeouts.Dispatch(); hitting that bound yields the timedOut
// outcome regardless of the per-call limits inside.
func (d *Dispatcher) Dispatch(ctx context.Context, params authparams.Params, access, refresh string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Dispatch())
	defer cancel()

	resultCh := make(chan Outcome, 1)
	go func() {
		// Buffered: if the deadline wins the race, this result is dropped.
		resultCh <- d.runWithRetry(ctx, params, access, refresh)
	}()

	select {
	case out := <-resultCh:
		d.record(out)
		return out
	case <-ctx.Done():
		out := Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "canceled"}
		if ctx.Err() == context.DeadlineExceeded {
			out = Outcome{State: StateTimedOut, Message: msgTimedOut, Path: "dispatch"}
		}
		d.record(out)
		return out
	}
}

// runWithRetry re-runs the dispatch on aborted-request errors, up to
// MaxRetries times. An abort must never surface to the user: when retries
// are exhausted the user is sent home, where an authenticated session (if
// one was created) resolves normally.
func (d *Dispatcher) runWithRetry(ctx context.Context, params authparams.Params, access, refresh string) Outcome {
	var out Outcome
	for attempt := 0; ; attempt++ {
		var retriable bool
		out, retriable = d.run(ctx, params, access, refresh)
		if !retriable {
			return out
		}
		if attempt >= d.MaxRetries || ctx.Err() != nil {
			d.Log.Warn("auth dispatch aborted repeatedly, redirecting home",
				zap.Int("attempts", attempt+1))
			return Outcome{State: StateRedirecting, RedirectTo: RedirectHome, Path: "aborted"}
		}
		metrics.AuthFlowRetries.Inc()
		d.Log.Debug("auth dispatch aborted, retrying",
			zap.Int("attempt", attempt+1))
		select {
		case <-time.After(d.RetryDelay):
		case <-ctx.Done():
		}
	}
}

// run performs one pass over the branch order. The second return value
// reports whether the failure is the retriable aborted class.
func (d *Dispatcher) run(ctx context.Context, params authparams.Params, access, refresh string) (Outcome, bool) {
	// 1. A provider-reported error short-circuits everything; no exchange
	// is attempted.
	if params.ErrorDescription != "" {
		return Outcome{
			State:   StateErrored,
			Message: sanitize.ProviderError(params.ErrorDescription),
			Path:    "provider_error",
		}, false
	}

	// 2. An existing session wins over any parameters still in the URL.
	sess, err := d.getSession(ctx, access, refresh)
	if err != nil {
		if idp.IsAborted(err) {
			return Outcome{}, true
		}
		d.Log.Error("session lookup failed", zap.Error(err))
		return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "already_authenticated"}, false
	}
	if sess != nil {
		return d.finishAuthenticated(ctx, params, sess, "already_authenticated")
	}

	// 3. PKCE code exchange.
	if params.Code != "" {
		return d.exchangeCode(ctx, params)
	}

	// 4. Email-link token redemption.
	if params.TokenHash != "" {
		return d.verifyOtp(ctx, params)
	}

	// 5. Implicit-flow token install.
	if params.HasTokenPair() {
		return d.installTokens(ctx, params)
	}

	// 6. Nothing usable arrived.
	return Outcome{State: StateRedirecting, RedirectTo: RedirectLogin, Path: "no_data"}, false
}

// exchangeCode redeems the one-time code. A second exchange of the same code
// (double invocation) resolves to the session the first one created instead
// of surfacing an error.
func (d *Dispatcher) exchangeCode(ctx context.Context, params authparams.Params) (Outcome, bool) {
	sess, err := d.Provider.ExchangeCode(ctx, params.Code)
	if err != nil {
		switch {
		case idp.IsAborted(err):
			return Outcome{}, true
		case idp.IsExpired(err):
			return Outcome{State: StateErrored, Message: msgExpired, Path: "code_exchange"}, false
		case idp.IsAlreadyConsumed(err):
			// The code was redeemed by a concurrent invocation. If that
			// invocation produced a session, resolve as authenticated.
			if again, gErr := d.getSession(ctx, "", ""); gErr == nil && again != nil {
				return d.finishAuthenticated(ctx, params, again, "code_exchange")
			}
			return Outcome{State: StateErrored, Message: msgConsumed, Path: "code_exchange"}, false
		default:
			d.Log.Error("code exchange failed", zap.Error(err))
			return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "code_exchange"}, false
		}
	}

	// The provider client has been observed to report success without
	// actually minting a session; verify before trusting it.
	verified, err := d.verifySession(ctx, sess)
	if err != nil {
		if idp.IsAborted(err) {
			return Outcome{}, true
		}
		d.Log.Error("post-exchange verify failed", zap.Error(err))
		return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "code_exchange"}, false
	}
	if verified == nil {
		d.Log.Error("code exchange reported success but no session exists")
		return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "code_exchange"}, false
	}
	return d.finishAuthenticated(ctx, params, verified, "code_exchange")
}

// verifyOtp redeems a hashed email-link token. Same one-time semantics as
// the code exchange: a duplicate redemption resolves to the session the
// first one created when possible.
func (d *Dispatcher) verifyOtp(ctx context.Context, params authparams.Params) (Outcome, bool) {
	otpType := params.Type
	if otpType == "" {
		otpType = idp.OtpMagicLink
	}
	sess, err := d.Provider.VerifyOtp(ctx, params.TokenHash, otpType)
	if err != nil {
		switch {
		case idp.IsAborted(err):
			return Outcome{}, true
		case idp.IsExpired(err):
			return Outcome{State: StateErrored, Message: msgExpired, Path: "otp_verify"}, false
		case idp.IsAlreadyConsumed(err):
			if again, gErr := d.getSession(ctx, "", ""); gErr == nil && again != nil {
				return d.finishAuthenticated(ctx, params, again, "otp_verify")
			}
			return Outcome{State: StateErrored, Message: msgConsumed, Path: "otp_verify"}, false
		default:
			d.Log.Error("otp verify failed", zap.Error(err))
			return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "otp_verify"}, false
		}
	}

	verified, err := d.verifySession(ctx, sess)
	if err != nil || verified == nil {
		if err != nil && idp.IsAborted(err) {
			return Outcome{}, true
		}
		d.Log.Error("post-verify session check failed", zap.Error(err))
		return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "otp_verify"}, false
	}
	return d.finishAuthenticated(ctx, params, verified, "otp_verify")
}

// installTokens installs an implicit-flow token pair, bounded by the
// session-install and session-verify timeouts. This provider call has been
// observed to hang indefinitely on transient network/lock conditions, so a
// deadline here is an error, never a silent retry.
func (d *Dispatcher) installTokens(ctx context.Context, params authparams.Params) (Outcome, bool) {
	installCtx, cancel := context.WithTimeout(ctx, timeouts.SessionInstall())
	sess, err := d.Provider.SetSession(installCtx, params.AccessToken, params.RefreshToken)
	cancel()
	if err != nil {
		if installCtx.Err() == context.DeadlineExceeded {
			d.Log.Warn("session install timed out")
			return Outcome{State: StateErrored, Message: msgTimedOut, Path: "token_install"}, false
		}
		if idp.IsAborted(err) {
			return Outcome{}, true
		}
		d.Log.Error("session install failed", zap.Error(err))
		return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "token_install"}, false
	}

	verified, err := d.verifySession(ctx, sess)
	if err != nil || verified == nil {
		if err != nil && idp.IsAborted(err) {
			return Outcome{}, true
		}
		d.Log.Error("post-install verify failed", zap.Error(err))
		return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: "token_install"}, false
	}
	return d.finishAuthenticated(ctx, params, verified, "token_install")
}

// finishAuthenticated applies the success side effects and picks the
// redirect target from the recovery intent.
func (d *Dispatcher) finishAuthenticated(ctx context.Context, params authparams.Params, sess *models.ProviderSession, path string) (Outcome, bool) {
	// Terminal-state guard: never apply side effects for a dispatch the
	// deadline already canceled.
	if ctx.Err() != nil {
		return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: path}, false
	}

	if d.OnSession != nil {
		if err := d.OnSession(ctx, sess); err != nil {
			if idp.IsAborted(err) {
				return Outcome{}, true
			}
			d.Log.Error("session persistence failed", zap.Error(err))
			return Outcome{State: StateErrored, Message: sanitize.GenericAuthError, Path: path}, false
		}
	}

	target := RedirectHome
	if params.Type == idp.OtpRecovery || d.Flags.RecoveryIntent(params.State) {
		target = RedirectSetPassword
	}
	return Outcome{State: StateRedirecting, RedirectTo: target, Path: path}, false
}

func (d *Dispatcher) getSession(ctx context.Context, access, refresh string) (*models.ProviderSession, error) {
	vctx, cancel := context.WithTimeout(ctx, timeouts.SessionVerify())
	defer cancel()
	return d.Provider.GetSession(vctx, access, refresh)
}

// verifySession re-reads the session the provider claims to have created.
func (d *Dispatcher) verifySession(ctx context.Context, sess *models.ProviderSession) (*models.ProviderSession, error) {
	if sess == nil {
		return nil, nil
	}
	vctx, cancel := context.WithTimeout(ctx, timeouts.SessionVerify())
	defer cancel()
	verified, err := d.Provider.GetSession(vctx, sess.AccessToken, sess.RefreshToken)
	if err != nil {
		return nil, err
	}
	if verified == nil {
		return nil, nil
	}
	// Keep the richer token metadata from the exchange; GetSession only
	// confirms liveness.
	if verified.ExpiresAt.IsZero() {
		verified.ExpiresAt = sess.ExpiresAt
	}
	return verified, nil
}

func (d *Dispatcher) record(out Outcome) {
	state := "errored"
	switch out.State {
	case StateRedirecting:
		state = "redirecting"
	case StateTimedOut:
		state = "timed_out"
	}
	metrics.AuthFlowOutcomes.WithLabelValues(state, out.Path).Inc()
	d.Log.Info("auth dispatch finished",
		zap.String("state", string(out.State)),
		zap.String("path", out.Path),
		zap.String("redirect", out.RedirectTo))
}
