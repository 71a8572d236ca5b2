package logout_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/features/logout"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/app/system/idp"
	"github.com/opencourt/tournhub/internal/domain/models"
)

const testKey = "0123456789abcdef0123456789abcdef"

func initStore(t *testing.T) {
	t.Helper()
	if err := auth.InitSessionStore(testKey, "", false, zap.NewNop()); err != nil {
		t.Fatalf("InitSessionStore: %v", err)
	}
	t.Cleanup(func() { auth.Store = nil })
}

func signedInRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	seed := httptest.NewRecorder()
	ident := &models.Identity{ID: "sub-1", DisplayName: "Casey", GlobalRole: models.GlobalRoleUser}
	sess := &models.ProviderSession{AccessToken: "access-1", RefreshToken: "refresh-1"}
	if err := auth.SignIn(seed, httptest.NewRequest(http.MethodGet, "/", nil), ident, sess); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, target, nil)
	for _, c := range seed.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestServeLogout_RevokesProviderAndClearsSession(t *testing.T) {
	initStore(t)
	fake := idp.NewFake()
	h := logout.NewHandler(fake, zap.NewNop())

	r := signedInRequest(t, "/logout")
	w := httptest.NewRecorder()
	auth.LoadSessionUser(http.HandlerFunc(h.ServeLogout)).ServeHTTP(w, r)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location: got %q, want /", loc)
	}
	if !fake.SignedOut() {
		t.Error("provider session was not revoked")
	}

	// The response must expire the session cookie.
	expired := false
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionName && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("session cookie was not expired")
	}
}

func TestServeLogout_AnonymousVisitorStillRedirects(t *testing.T) {
	initStore(t)
	fake := idp.NewFake()
	h := logout.NewHandler(fake, zap.NewNop())

	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	w := httptest.NewRecorder()
	auth.LoadSessionUser(http.HandlerFunc(h.ServeLogout)).ServeHTTP(w, r)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}
	if fake.Calls("SignOut") != 0 {
		t.Error("provider sign-out ran without a session")
	}
}

func TestServeLogout_HTMX(t *testing.T) {
	initStore(t)
	h := logout.NewHandler(idp.NewFake(), zap.NewNop())

	r := signedInRequest(t, "/logout")
	r.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	auth.LoadSessionUser(http.HandlerFunc(h.ServeLogout)).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if w.Header().Get("HX-Redirect") != "/" {
		t.Errorf("HX-Redirect: got %q, want /", w.Header().Get("HX-Redirect"))
	}
}
