package merge_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/features/merge"
	"github.com/opencourt/tournhub/internal/app/service/accountmerge"
	identitystore "github.com/opencourt/tournhub/internal/app/store/identities"
	membershipstore "github.com/opencourt/tournhub/internal/app/store/memberships"
	tournamentstore "github.com/opencourt/tournhub/internal/app/store/tournaments"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/domain/models"
	"github.com/opencourt/tournhub/internal/testutil"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestHandler(t *testing.T) (*merge.Handler, *auth.GuestCookies, *testutil.Fixtures, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	if err := auth.InitSessionStore(testKey, "", false, zap.NewNop()); err != nil {
		t.Fatalf("InitSessionStore: %v", err)
	}
	t.Cleanup(func() { auth.Store = nil })

	guests := auth.NewGuestCookies(testKey, false, zap.NewNop())
	merger := accountmerge.New(
		identitystore.New(db),
		tournamentstore.New(db),
		membershipstore.New(db),
		zap.NewNop(),
	)
	h := merge.NewHandler(merger, guests, zap.NewNop())
	return h, guests, testutil.NewFixtures(t, db), db
}

func mergeRequest(t *testing.T, ident *models.Identity, guests *auth.GuestCookies, guestID string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/account/merge", nil)

	if ident != nil {
		seed := httptest.NewRecorder()
		if err := auth.SignIn(seed, httptest.NewRequest(http.MethodGet, "/", nil), ident, nil); err != nil {
			t.Fatalf("SignIn: %v", err)
		}
		for _, c := range seed.Result().Cookies() {
			r.AddCookie(c)
		}
	}
	if guestID != "" {
		seed := httptest.NewRecorder()
		if err := guests.Set(seed, auth.GuestClaim{ID: guestID, DisplayName: "Drop-in"}); err != nil {
			t.Fatalf("guest cookie: %v", err)
		}
		for _, c := range seed.Result().Cookies() {
			r.AddCookie(c)
		}
	}
	return r
}

func serve(h *merge.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	auth.LoadSessionUser(http.HandlerFunc(h.ServeMerge)).ServeHTTP(w, r)
	return w
}

func TestServeMerge_MovesGuestTournaments(t *testing.T) {
	h, guests, fx, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	guest := fx.CreateGuest(ctx, "Drop-in")
	target := fx.CreateIdentity(ctx, "Casey", "casey@test.com")
	fx.CreateTournament(ctx, guest.ID, "Pickup Night")

	w := serve(h, mergeRequest(t, &target, guests, guest.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Merged            bool `json:"merged"`
		TournamentsMerged int  `json:"tournaments_merged"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Merged || resp.TournamentsMerged != 1 {
		t.Errorf("response: %+v", resp)
	}

	owned, err := tournamentstore.New(db).ListByOwner(ctx, target.ID, "")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(owned) != 1 {
		t.Errorf("tournaments after merge: got %d, want 1", len(owned))
	}

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.GuestCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("guest cookie was not cleared")
	}
}

func TestServeMerge_RequiresSignIn(t *testing.T) {
	h, guests, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	guest := fx.CreateGuest(ctx, "Drop-in")
	w := serve(h, mergeRequest(t, nil, guests, guest.ID))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", w.Code)
	}
}

func TestServeMerge_GuestSessionRefused(t *testing.T) {
	h, guests, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	guest := fx.CreateGuest(ctx, "Drop-in")
	w := serve(h, mergeRequest(t, &guest, guests, guest.ID))
	if w.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", w.Code)
	}
}

func TestServeMerge_NoPendingGuest(t *testing.T) {
	h, guests, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	target := fx.CreateIdentity(ctx, "Casey", "casey@test.com")
	w := serve(h, mergeRequest(t, &target, guests, ""))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
}

func TestServeMerge_RetryIsIdempotent(t *testing.T) {
	h, guests, fx, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	guest := fx.CreateGuest(ctx, "Drop-in")
	target := fx.CreateIdentity(ctx, "Casey", "casey@test.com")
	fx.CreateTournament(ctx, guest.ID, "Pickup Night")

	if w := serve(h, mergeRequest(t, &target, guests, guest.ID)); w.Code != http.StatusOK {
		t.Fatalf("first merge: got %d", w.Code)
	}
	// The browser replays the request with the stale cookie still attached.
	if w := serve(h, mergeRequest(t, &target, guests, guest.ID)); w.Code != http.StatusOK {
		t.Fatalf("retry merge: got %d", w.Code)
	}
}
