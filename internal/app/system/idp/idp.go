// internal/app/system/idp/idp.go

// Package idp wraps the external identity provider. The provider owns all
// credentials and session lifecycle; the application only completes redirect
// flows against it and mirrors the resulting identity.
package idp

import (
	"context"
	"errors"
	"strings"

	"github.com/opencourt/tournhub/internal/domain/models"
)

// OtpType names the provider's one-time-token flows carried in the callback
// "type" parameter.
const (
	OtpSignup    = "signup"
	OtpRecovery  = "recovery"
	OtpMagicLink = "magiclink"
	OtpInvite    = "invite"
)

// Client is the surface of the identity provider the application consumes.
// All methods are context-first and return provider-native errors; callers
// classify them with the Is* helpers rather than matching messages inline.
type Client interface {
	// GetSession returns the live session for the given session carrier
	// (cookie-held token pair), or (nil, nil) when there is none.
	GetSession(ctx context.Context, access, refresh string) (*models.ProviderSession, error)

	// ExchangeCode redeems a one-time PKCE code for a session. A second
	// exchange with the same code fails with an already-consumed error and
	// must not disturb the session created by the first.
	ExchangeCode(ctx context.Context, code string) (*models.ProviderSession, error)

	// SetSession installs an implicit-flow token pair and returns the
	// provider's view of the resulting session.
	SetSession(ctx context.Context, access, refresh string) (*models.ProviderSession, error)

	// VerifyOtp redeems a hashed one-time token (email link flows).
	VerifyOtp(ctx context.Context, tokenHash, otpType string) (*models.ProviderSession, error)

	// SignUp registers a new permanent identity. An email collision fails
	// with an email-taken error.
	SignUp(ctx context.Context, email, password string) (*models.ProviderSession, error)

	// UpdatePassword sets a new password for the session's identity. Used by
	// the recovery flow.
	UpdatePassword(ctx context.Context, access, newPassword string) error

	// SignOut revokes the session server-side.
	SignOut(ctx context.Context, access string) error
}

// Sentinel errors for the failure classes the application reacts to.
// HTTP responses from the provider are mapped onto these; the Is* helpers
// additionally pattern-match raw provider messages so a provider that skips
// error codes still classifies correctly.
var (
	// ErrAborted marks a request cut short by the runtime (canceled context,
	// closed connection). Transient: retried, never shown to users.
	ErrAborted = errors.New("idp: request aborted")

	// ErrExpiredLink marks a code or token past its validity window.
	ErrExpiredLink = errors.New("idp: link expired")

	// ErrCodeUsed marks a one-time code or token redeemed a second time.
	ErrCodeUsed = errors.New("idp: code already used")

	// ErrEmailTaken marks a signup against an email an existing permanent
	// identity owns.
	ErrEmailTaken = errors.New("idp: email already registered")

	// ErrNoSession marks an operation that requires a live session when the
	// provider reports none.
	ErrNoSession = errors.New("idp: no session")
)

// IsAborted reports whether err is the transient aborted-request class.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "abort") || strings.Contains(msg, "connection reset")
}

// IsExpired reports whether err means the link or code is past validity.
func IsExpired(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrExpiredLink) || strings.Contains(strings.ToLower(err.Error()), "expired")
}

// IsAlreadyConsumed reports whether err means a one-time code or token was
// redeemed more than once. Distinct from expiry so the user is not told to
// request a fresh link when the real issue is a double-click.
func IsAlreadyConsumed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCodeUsed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "used") || strings.Contains(msg, "invalid grant") || strings.Contains(msg, "invalid code")
}

// IsEmailTaken reports whether err means the email belongs to an existing
// permanent identity.
func IsEmailTaken(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmailTaken) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already registered") || strings.Contains(msg, "already exists")
}
