package invites_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/features/invites"
	membershipsvc "github.com/opencourt/tournhub/internal/app/service/membership"
	invitationstore "github.com/opencourt/tournhub/internal/app/store/invitations"
	membershipstore "github.com/opencourt/tournhub/internal/app/store/memberships"
	tournamentstore "github.com/opencourt/tournhub/internal/app/store/tournaments"
	"github.com/opencourt/tournhub/internal/app/system/auth"
	"github.com/opencourt/tournhub/internal/domain/models"
	"github.com/opencourt/tournhub/internal/testutil"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T) (http.Handler, *testutil.Fixtures, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	if err := auth.InitSessionStore(testKey, "", false, zap.NewNop()); err != nil {
		t.Fatalf("InitSessionStore: %v", err)
	}
	t.Cleanup(func() { auth.Store = nil })

	svc := membershipsvc.New(
		membershipstore.New(db),
		invitationstore.New(db),
		tournamentstore.New(db),
		zap.NewNop(),
	)
	h := invites.NewHandler(svc, zap.NewNop())

	root := chi.NewRouter()
	root.Mount("/api/tournaments/{tournamentID}/invites", invites.ManageRoutes(h))
	root.Mount("/api/invites", invites.RedeemRoutes(h))
	return auth.LoadSessionUser(root), testutil.NewFixtures(t, db), db
}

func asUser(t *testing.T, ident models.Identity, r *http.Request) *http.Request {
	t.Helper()
	seed := httptest.NewRecorder()
	if err := auth.SignIn(seed, httptest.NewRequest(http.MethodGet, "/", nil), &ident, nil); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	for _, c := range seed.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func formPost(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestServeCreate_OwnerMintsInvitation(t *testing.T) {
	router, fx, _ := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "City League")

	target := "/api/tournaments/" + tourn.ID.Hex() + "/invites"
	form := url.Values{"role": {"viewer"}, "max_uses": {"5"}, "expires_in": {"72h"}}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, owner, formPost(target, form)))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Invitation models.Invitation `json:"invitation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Invitation.Token == "" || resp.Invitation.MaxUses != 5 {
		t.Errorf("invitation: %+v", resp.Invitation)
	}
	if resp.Invitation.ExpiresAt == nil {
		t.Error("expiry was not set")
	}
}

func TestServeCreate_OwnerRoleRefused(t *testing.T) {
	router, fx, _ := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "City League")

	target := "/api/tournaments/" + tourn.ID.Hex() + "/invites"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, owner, formPost(target, url.Values{"role": {"owner"}})))
	if w.Code != http.StatusBadRequest && w.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 400 or 403", w.Code)
	}
}

func TestServeCreate_ViewerForbidden(t *testing.T) {
	router, fx, _ := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	viewer := fx.CreateIdentity(ctx, "Viewer", "viewer@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "City League")
	fx.CreateMembership(ctx, tourn.ID, viewer.ID, models.RoleViewer)

	target := "/api/tournaments/" + tourn.ID.Hex() + "/invites"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, viewer, formPost(target, url.Values{"role": {"viewer"}})))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", w.Code)
	}
}

func TestServeRedeem_JoinsTournament(t *testing.T) {
	router, fx, db := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	joiner := fx.CreateIdentity(ctx, "Joiner", "joiner@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "City League")
	inv := fx.CreateInvitation(ctx, tourn.ID, models.RoleCollaborator, 1, nil, owner.ID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, joiner, formPost("/api/invites/"+inv.Token+"/redeem", url.Values{})))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body %s", w.Code, w.Body.String())
	}

	m, err := membershipstore.New(db).Get(ctx, tourn.ID, joiner.ID)
	if err != nil {
		t.Fatalf("membership missing: %v", err)
	}
	if m.Role != models.RoleCollaborator {
		t.Errorf("role: got %s, want collaborator", m.Role)
	}

	// The single use is spent.
	w = httptest.NewRecorder()
	other := fx.CreateIdentity(ctx, "Other", "other@test.com")
	router.ServeHTTP(w, asUser(t, other, formPost("/api/invites/"+inv.Token+"/redeem", url.Values{})))
	if w.Code != http.StatusGone {
		t.Fatalf("exhausted redeem: got %d, want 410", w.Code)
	}
}

func TestServeRedeem_DuplicateMemberConflict(t *testing.T) {
	router, fx, db := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	member := fx.CreateIdentity(ctx, "Member", "member@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "City League")
	fx.CreateMembership(ctx, tourn.ID, member.ID, models.RoleViewer)
	inv := fx.CreateInvitation(ctx, tourn.ID, models.RoleViewer, 3, nil, owner.ID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, member, formPost("/api/invites/"+inv.Token+"/redeem", url.Values{})))
	if w.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", w.Code)
	}

	// The refused redemption did not burn a use.
	stored, err := invitationstore.New(db).GetByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if stored.UsesCount != 0 {
		t.Errorf("uses_count: got %d, want 0", stored.UsesCount)
	}
}

func TestServeRedeem_Expired(t *testing.T) {
	router, fx, _ := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	joiner := fx.CreateIdentity(ctx, "Joiner", "joiner@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "City League")
	past := time.Now().Add(-time.Hour)
	inv := fx.CreateInvitation(ctx, tourn.ID, models.RoleViewer, 0, &past, owner.ID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, joiner, formPost("/api/invites/"+inv.Token+"/redeem", url.Values{})))
	if w.Code != http.StatusGone {
		t.Fatalf("status: got %d, want 410", w.Code)
	}
}

func TestServeRedeem_UnknownToken(t *testing.T) {
	router, fx, _ := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	joiner := fx.CreateIdentity(ctx, "Joiner", "joiner@test.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, joiner, formPost("/api/invites/no-such-token/redeem", url.Values{})))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
}

func TestServeRevoke(t *testing.T) {
	router, fx, _ := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	joiner := fx.CreateIdentity(ctx, "Joiner", "joiner@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "City League")
	inv := fx.CreateInvitation(ctx, tourn.ID, models.RoleViewer, 0, nil, owner.ID)

	target := "/api/tournaments/" + tourn.ID.Hex() + "/invites/" + inv.Token
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, owner, httptest.NewRequest(http.MethodDelete, target, nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("revoke: got %d, want 200, body %s", w.Code, w.Body.String())
	}

	// A revoked token no longer admits anyone.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, joiner, formPost("/api/invites/"+inv.Token+"/redeem", url.Values{})))
	if w.Code != http.StatusNotFound {
		t.Fatalf("redeem after revoke: got %d, want 404", w.Code)
	}
}

func TestServeList_CoAdminOnly(t *testing.T) {
	router, fx, _ := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	viewer := fx.CreateIdentity(ctx, "Viewer", "viewer@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "City League")
	fx.CreateMembership(ctx, tourn.ID, viewer.ID, models.RoleViewer)
	fx.CreateInvitation(ctx, tourn.ID, models.RoleViewer, 0, nil, owner.ID)

	target := "/api/tournaments/" + tourn.ID.Hex() + "/invites"

	w := httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, owner, httptest.NewRequest(http.MethodGet, target, nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("owner list: got %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, asUser(t, viewer, httptest.NewRequest(http.MethodGet, target, nil)))
	if w.Code != http.StatusForbidden {
		t.Fatalf("viewer list: got %d, want 403", w.Code)
	}
}
