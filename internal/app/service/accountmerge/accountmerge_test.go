package accountmerge_test

import (
	"testing"

	"github.com/opencourt/tournhub/internal/app/service/accountmerge"
	identitystore "github.com/opencourt/tournhub/internal/app/store/identities"
	membershipstore "github.com/opencourt/tournhub/internal/app/store/memberships"
	tournamentstore "github.com/opencourt/tournhub/internal/app/store/tournaments"
	"github.com/opencourt/tournhub/internal/app/system/indexes"
	"github.com/opencourt/tournhub/internal/domain/models"
	"github.com/opencourt/tournhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newCoordinator(t *testing.T, db *mongo.Database) *accountmerge.Coordinator {
	t.Helper()
	return accountmerge.New(
		identitystore.New(db),
		tournamentstore.New(db),
		membershipstore.New(db),
		zap.NewNop(),
	)
}

func TestMerge_MovesEverythingAndDeletesGuest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	fx := testutil.NewFixtures(t, db)
	guest := fx.CreateGuest(ctx, "Drop-in")
	target := fx.CreateIdentity(ctx, "Casey", "casey@test.com")

	owned := fx.CreateTournament(ctx, guest.ID, "Pickup Night")
	other := fx.CreateIdentity(ctx, "Other", "other@test.com")
	joined := fx.CreateTournament(ctx, other.ID, "City League")
	fx.CreateMembership(ctx, joined.ID, guest.ID, models.RoleCollaborator)

	res := newCoordinator(t, db).Merge(ctx, guest.ID, target.ID)
	if !res.Success {
		t.Fatalf("Merge failed: %+v", res)
	}
	if res.TournamentsMerged != 1 {
		t.Errorf("TournamentsMerged: got %d, want 1", res.TournamentsMerged)
	}

	ts := tournamentstore.New(db)
	stored, err := ts.GetByID(ctx, owned.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.OwnerID != target.ID {
		t.Errorf("owner: got %s, want %s", stored.OwnerID, target.ID)
	}

	ms := membershipstore.New(db)
	m, err := ms.Get(ctx, joined.ID, target.ID)
	if err != nil {
		t.Fatalf("membership after merge: %v", err)
	}
	if m.Role != models.RoleCollaborator {
		t.Errorf("role: got %s, want collaborator", m.Role)
	}
	if n, _ := ms.CountByUser(ctx, guest.ID); n != 0 {
		t.Errorf("guest still holds %d memberships", n)
	}

	if _, err := identitystore.New(db).GetByID(ctx, guest.ID); err != mongo.ErrNoDocuments {
		t.Errorf("guest identity survived merge: %v", err)
	}
}

func TestMerge_CollisionKeepsHigherRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	fx := testutil.NewFixtures(t, db)
	guest := fx.CreateGuest(ctx, "Drop-in")
	target := fx.CreateIdentity(ctx, "Casey", "casey@test.com")
	other := fx.CreateIdentity(ctx, "Other", "other@test.com")

	tourn := fx.CreateTournament(ctx, other.ID, "City League")
	fx.CreateMembership(ctx, tourn.ID, guest.ID, models.RoleCoAdmin)
	fx.CreateMembership(ctx, tourn.ID, target.ID, models.RoleViewer)

	res := newCoordinator(t, db).Merge(ctx, guest.ID, target.ID)
	if !res.Success {
		t.Fatalf("Merge failed: %+v", res)
	}

	m, err := membershipstore.New(db).Get(ctx, tourn.ID, target.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.Role != models.RoleCoAdmin {
		t.Errorf("role after collision merge: got %s, want coadmin", m.Role)
	}
}

func TestMerge_RetryAfterCompletionIsNoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	guest := fx.CreateGuest(ctx, "Drop-in")
	target := fx.CreateIdentity(ctx, "Casey", "casey@test.com")
	fx.CreateTournament(ctx, guest.ID, "Pickup Night")

	coord := newCoordinator(t, db)
	if res := coord.Merge(ctx, guest.ID, target.ID); !res.Success {
		t.Fatalf("first merge: %+v", res)
	}

	// The browser retried the finished merge.
	res := coord.Merge(ctx, guest.ID, target.ID)
	if !res.Success || res.Err != nil {
		t.Fatalf("retry merge: %+v", res)
	}

	owned, err := tournamentstore.New(db).ListByOwner(ctx, target.ID, "")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(owned) != 1 {
		t.Errorf("tournaments after retry: got %d, want 1", len(owned))
	}
}

// A merge that died after reparenting some tournaments but before moving the
// memberships: the retry finishes the move and reports only the tournaments
// it reparented itself, so no tournament is ever counted twice.
func TestMerge_ResumesAfterPartialReparent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	fx := testutil.NewFixtures(t, db)
	guest := fx.CreateGuest(ctx, "Drop-in")
	target := fx.CreateIdentity(ctx, "Casey", "casey@test.com")

	first := fx.CreateTournament(ctx, guest.ID, "Pickup Night")
	second := fx.CreateTournament(ctx, guest.ID, "Morning Run")
	other := fx.CreateIdentity(ctx, "Other", "other@test.com")
	joined := fx.CreateTournament(ctx, other.ID, "City League")
	fx.CreateMembership(ctx, joined.ID, guest.ID, models.RoleCollaborator)

	// The first attempt reparented one tournament and then died; the guest's
	// memberships and identity are still in place.
	if _, err := db.Collection("tournaments").UpdateByID(ctx, first.ID,
		bson.M{"$set": bson.M{"owner_id": target.ID}}); err != nil {
		t.Fatalf("simulate partial reparent: %v", err)
	}

	res := newCoordinator(t, db).Merge(ctx, guest.ID, target.ID)
	if !res.Success {
		t.Fatalf("retry merge failed: %+v", res)
	}
	if res.TournamentsMerged != 1 {
		t.Errorf("TournamentsMerged: got %d, want 1 (the tournament moved earlier must not be re-counted)", res.TournamentsMerged)
	}

	ts := tournamentstore.New(db)
	for _, id := range []primitive.ObjectID{first.ID, second.ID} {
		stored, err := ts.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.OwnerID != target.ID {
			t.Errorf("owner of %s: got %s, want %s", id.Hex(), stored.OwnerID, target.ID)
		}
	}

	ms := membershipstore.New(db)
	if n, _ := ms.CountByUser(ctx, guest.ID); n != 0 {
		t.Errorf("guest still holds %d memberships", n)
	}
	if n, _ := ms.CountByUser(ctx, target.ID); n != 3 {
		t.Errorf("target memberships after retry: got %d, want 3", n)
	}

	if _, err := identitystore.New(db).GetByID(ctx, guest.ID); err != mongo.ErrNoDocuments {
		t.Errorf("guest identity survived retry: %v", err)
	}
}

func TestMerge_RefusesPermanentSource(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	a := fx.CreateIdentity(ctx, "A", "a@test.com")
	b := fx.CreateIdentity(ctx, "B", "b@test.com")

	res := newCoordinator(t, db).Merge(ctx, a.ID, b.ID)
	if res.Err != accountmerge.ErrSourceNotGuest {
		t.Fatalf("got %v, want ErrSourceNotGuest", res.Err)
	}
}

func TestMerge_SameIdentity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	res := newCoordinator(t, db).Merge(ctx, "same", "same")
	if res.Err != accountmerge.ErrSameIdentity {
		t.Fatalf("got %v, want ErrSameIdentity", res.Err)
	}
}
