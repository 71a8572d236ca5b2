package setpassword_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/features/setpassword"
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

func submitRequest(t *testing.T, signedIn bool, password, confirm string) *http.Request {
	t.Helper()
	form := url.Values{"new_password": {password}, "confirm_password": {confirm}}
	r := httptest.NewRequest(http.MethodPost, "/set-password", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if signedIn {
		seed := httptest.NewRecorder()
		ident := &models.Identity{ID: "sub-1", GlobalRole: models.GlobalRoleUser}
		sess := &models.ProviderSession{AccessToken: "access-1"}
		if err := auth.SignIn(seed, httptest.NewRequest(http.MethodGet, "/", nil), ident, sess); err != nil {
			t.Fatalf("SignIn: %v", err)
		}
		for _, c := range seed.Result().Cookies() {
			r.AddCookie(c)
		}
	}
	return r
}

func TestHandleSubmit_UpdatesPassword(t *testing.T) {
	initStore(t)
	fake := idp.NewFake()
	h := setpassword.NewHandler(fake, zap.NewNop())

	r := submitRequest(t, true, "correct-horse", "correct-horse")
	w := httptest.NewRecorder()
	auth.LoadSessionUser(http.HandlerFunc(h.HandleSubmit)).ServeHTTP(w, r)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location: got %q, want /", loc)
	}
	if fake.NewPassword() != "correct-horse" {
		t.Errorf("provider received %q", fake.NewPassword())
	}
}

func TestHandleSubmit_RequiresSession(t *testing.T) {
	initStore(t)
	fake := idp.NewFake()
	h := setpassword.NewHandler(fake, zap.NewNop())

	r := submitRequest(t, false, "correct-horse", "correct-horse")
	w := httptest.NewRecorder()
	auth.LoadSessionUser(http.HandlerFunc(h.HandleSubmit)).ServeHTTP(w, r)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location: got %q, want /login", loc)
	}
	if fake.Calls("UpdatePassword") != 0 {
		t.Error("password update ran without a session")
	}
}

func TestHandleSubmit_RejectsBadInput(t *testing.T) {
	initStore(t)

	cases := []struct {
		name     string
		password string
		confirm  string
	}{
		{"too short", "short", "short"},
		{"mismatch", "correct-horse", "battery-staple"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := idp.NewFake()
			h := setpassword.NewHandler(fake, zap.NewNop())

			r := submitRequest(t, true, tc.password, tc.confirm)
			w := httptest.NewRecorder()

			// Error rendering goes through the template registry; the
			// assertion is that the provider never sees the bad input.
			func() {
				defer func() { _ = recover() }()
				auth.LoadSessionUser(http.HandlerFunc(h.HandleSubmit)).ServeHTTP(w, r)
			}()

			if fake.Calls("UpdatePassword") != 0 {
				t.Error("provider received invalid input")
			}
		})
	}
}
