// internal/app/system/idp/fake.go
package idp

import (
	"context"
	"sync"

	"github.com/opencourt/tournhub/internal/domain/models"
)

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*Fake)(nil)
)

// Fake is a scriptable provider client for tests. Each call site can queue
// per-method results; one-time code semantics are modeled so double-exchange
// tests behave like the real provider.
type Fake struct {
	mu sync.Mutex

	// Session returned by GetSession. Nil means "no session".
	Session *models.ProviderSession
	// SessionErrs is drained one per GetSession call before Session applies.
	SessionErrs []error

	// Codes maps valid one-time codes to the session they mint. A redeemed
	// code moves to usedCodes and fails with ErrCodeUsed afterwards.
	Codes map[string]*models.ProviderSession
	// ExchangeErrs is drained one per ExchangeCode call before Codes applies.
	ExchangeErrs []error

	// SetSessionResult/SetSessionErr script SetSession. SetSessionHang, when
	// set, blocks until the context is done (models the observed indefinite
	// hang).
	SetSessionResult *models.ProviderSession
	SetSessionErr    error
	SetSessionHang   bool

	// SignUpErr scripts SignUp failures (e.g. ErrEmailTaken).
	SignUpErr error

	usedCodes   map[string]bool
	calls       map[string]int
	signedOut   bool
	newPassword string
}

// NewFake returns an empty fake with no session and no valid codes.
func NewFake() *Fake {
	return &Fake{
		Codes:     map[string]*models.ProviderSession{},
		usedCodes: map[string]bool{},
		calls:     map[string]int{},
	}
}

// Calls returns how many times the named method ran.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// SignedOut reports whether SignOut ran.
func (f *Fake) SignedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedOut
}

// NewPassword returns the password UpdatePassword last set.
func (f *Fake) NewPassword() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newPassword
}

func (f *Fake) GetSession(ctx context.Context, access, refresh string) (*models.ProviderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetSession"]++
	if len(f.SessionErrs) > 0 {
		err := f.SessionErrs[0]
		f.SessionErrs = f.SessionErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.Session, nil
}

func (f *Fake) ExchangeCode(ctx context.Context, code string) (*models.ProviderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ExchangeCode"]++
	if len(f.ExchangeErrs) > 0 {
		err := f.ExchangeErrs[0]
		f.ExchangeErrs = f.ExchangeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.usedCodes[code] {
		return nil, ErrCodeUsed
	}
	sess, ok := f.Codes[code]
	if !ok {
		return nil, ErrExpiredLink
	}
	f.usedCodes[code] = true
	f.Session = sess
	return sess, nil
}

func (f *Fake) SetSession(ctx context.Context, access, refresh string) (*models.ProviderSession, error) {
	f.mu.Lock()
	hang := f.SetSessionHang
	f.calls["SetSession"]++
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetSessionErr != nil {
		return nil, f.SetSessionErr
	}
	if f.SetSessionResult != nil {
		f.Session = f.SetSessionResult
		return f.SetSessionResult, nil
	}
	sess := &models.ProviderSession{AccessToken: access, RefreshToken: refresh, IdentityID: "fake-user"}
	f.Session = sess
	return sess, nil
}

func (f *Fake) VerifyOtp(ctx context.Context, tokenHash, otpType string) (*models.ProviderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["VerifyOtp"]++
	if f.usedCodes[tokenHash] {
		return nil, ErrCodeUsed
	}
	sess, ok := f.Codes[tokenHash]
	if !ok {
		return nil, ErrExpiredLink
	}
	f.usedCodes[tokenHash] = true
	f.Session = sess
	return sess, nil
}

func (f *Fake) SignUp(ctx context.Context, email, password string) (*models.ProviderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SignUp"]++
	if f.SignUpErr != nil {
		return nil, f.SignUpErr
	}
	sess := &models.ProviderSession{IdentityID: "fake-" + email, Email: email, AccessToken: "fake-access"}
	f.Session = sess
	return sess, nil
}

func (f *Fake) UpdatePassword(ctx context.Context, access, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdatePassword"]++
	f.newPassword = newPassword
	return nil
}

func (f *Fake) SignOut(ctx context.Context, access string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SignOut"]++
	f.signedOut = true
	f.Session = nil
	return nil
}
