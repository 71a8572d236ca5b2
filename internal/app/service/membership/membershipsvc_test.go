package membershipsvc_test

import (
	"sync"
	"testing"

	membershipsvc "github.com/opencourt/tournhub/internal/app/service/membership"
	invitationstore "github.com/opencourt/tournhub/internal/app/store/invitations"
	membershipstore "github.com/opencourt/tournhub/internal/app/store/memberships"
	tournamentstore "github.com/opencourt/tournhub/internal/app/store/tournaments"
	"github.com/opencourt/tournhub/internal/app/system/indexes"
	"github.com/opencourt/tournhub/internal/domain/models"
	"github.com/opencourt/tournhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newService(t *testing.T, db *mongo.Database) *membershipsvc.Service {
	t.Helper()
	return membershipsvc.New(
		membershipstore.New(db),
		invitationstore.New(db),
		tournamentstore.New(db),
		zap.NewNop(),
	)
}

func TestCreateInvitation_PolicyEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	fx := testutil.NewFixtures(t, db)
	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	coadmin := fx.CreateIdentity(ctx, "CoAdmin", "coadmin@test.com")
	viewer := fx.CreateIdentity(ctx, "Viewer", "viewer@test.com")
	outsider := fx.CreateIdentity(ctx, "Outsider", "outsider@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "Spring Open")
	fx.CreateMembership(ctx, tourn.ID, coadmin.ID, models.RoleCoAdmin)
	fx.CreateMembership(ctx, tourn.ID, viewer.ID, models.RoleViewer)

	svc := newService(t, db)

	tests := []struct {
		name    string
		actorID string
		role    models.Role
		wantErr error
	}{
		{"owner invites coadmin", owner.ID, models.RoleCoAdmin, nil},
		{"coadmin invites viewer", coadmin.ID, models.RoleViewer, nil},
		{"coadmin cannot invite coadmin", coadmin.ID, models.RoleCoAdmin, membershipsvc.ErrForbidden},
		{"viewer cannot invite", viewer.ID, models.RoleViewer, membershipsvc.ErrForbidden},
		{"non-member cannot invite", outsider.ID, models.RoleViewer, membershipsvc.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateInvitation(ctx, tourn.ID, tt.actorID, tt.role, nil, 1, nil)
			if err != tt.wantErr {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedeemInvitation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	fx := testutil.NewFixtures(t, db)
	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	joiner := fx.CreateIdentity(ctx, "Joiner", "joiner@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "Spring Open")
	inv := fx.CreateInvitation(ctx, tourn.ID, models.RoleCollaborator, 0, nil, owner.ID)

	svc := newService(t, db)
	m, err := svc.RedeemInvitation(ctx, inv.Token, joiner.ID)
	if err != nil {
		t.Fatalf("RedeemInvitation: %v", err)
	}
	if m.Role != models.RoleCollaborator {
		t.Errorf("role: got %s, want collaborator", m.Role)
	}

	// A second redemption by the same user does not burn a use.
	if _, err := svc.RedeemInvitation(ctx, inv.Token, joiner.ID); err != membershipsvc.ErrAlreadyMember {
		t.Fatalf("repeat redemption: got %v, want ErrAlreadyMember", err)
	}
	stored, err := invitationstore.New(db).GetByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if stored.UsesCount != 1 {
		t.Errorf("UsesCount: got %d, want 1", stored.UsesCount)
	}
}

// A single-use invitation hit by several users at once admits exactly one.
func TestRedeemInvitation_SingleUseRace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	fx := testutil.NewFixtures(t, db)
	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "Spring Open")
	inv := fx.CreateInvitation(ctx, tourn.ID, models.RoleViewer, 1, nil, owner.ID)

	users := make([]models.Identity, 4)
	for i := range users {
		users[i] = fx.CreateGuest(ctx, "Racer")
	}

	svc := newService(t, db)
	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = svc.RedeemInvitation(ctx, inv.Token, userID)
		}(i, u.ID)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		switch err {
		case nil:
			admitted++
		case invitationstore.ErrExhausted:
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if admitted != 1 {
		t.Errorf("admitted %d users on a single-use invitation, want 1", admitted)
	}
}

func TestChangeRole_ReChecksCurrentState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	actor := fx.CreateIdentity(ctx, "Actor", "actor@test.com")
	target := fx.CreateIdentity(ctx, "Target", "target@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "Spring Open")
	fx.CreateMembership(ctx, tourn.ID, actor.ID, models.RoleCoAdmin)
	fx.CreateMembership(ctx, tourn.ID, target.ID, models.RoleViewer)

	svc := newService(t, db)

	if err := svc.ChangeRole(ctx, tourn.ID, actor.ID, target.ID, models.RoleTrainer, []string{"team-a"}); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}

	// The actor was demoted out from under their stale page; the next
	// change must be judged against the stored viewer role, not the page.
	if err := membershipstore.New(db).SetRole(ctx, tourn.ID, actor.ID, models.RoleViewer, nil); err != nil {
		t.Fatalf("demote actor: %v", err)
	}
	if err := svc.ChangeRole(ctx, tourn.ID, actor.ID, target.ID, models.RoleViewer, nil); err != membershipsvc.ErrForbidden {
		t.Fatalf("stale actor change: got %v, want ErrForbidden", err)
	}
}

func TestRemoveMember_SelfLeave(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	viewer := fx.CreateIdentity(ctx, "Viewer", "viewer@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "Spring Open")
	fx.CreateMembership(ctx, tourn.ID, viewer.ID, models.RoleViewer)

	svc := newService(t, db)

	// A viewer can leave on their own.
	if err := svc.RemoveMember(ctx, tourn.ID, viewer.ID, viewer.ID); err != nil {
		t.Fatalf("self leave: %v", err)
	}

	// The owner can never leave; ownership moves by transfer only.
	if err := svc.RemoveMember(ctx, tourn.ID, owner.ID, owner.ID); err != membershipsvc.ErrForbidden {
		t.Fatalf("owner self leave: got %v, want ErrForbidden", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	coadmin := fx.CreateIdentity(ctx, "CoAdmin", "coadmin@test.com")
	viewer := fx.CreateIdentity(ctx, "Viewer", "viewer@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "Spring Open")
	fx.CreateMembership(ctx, tourn.ID, coadmin.ID, models.RoleCoAdmin)
	fx.CreateMembership(ctx, tourn.ID, viewer.ID, models.RoleViewer)

	svc := newService(t, db)

	// Only a coadmin successor is accepted.
	if err := svc.TransferOwnership(ctx, tourn.ID, owner.ID, viewer.ID); err != membershipsvc.ErrForbidden {
		t.Fatalf("transfer to viewer: got %v, want ErrForbidden", err)
	}
	// Only the owner can transfer.
	if err := svc.TransferOwnership(ctx, tourn.ID, coadmin.ID, coadmin.ID); err != membershipsvc.ErrForbidden {
		t.Fatalf("transfer by coadmin: got %v, want ErrForbidden", err)
	}

	if err := svc.TransferOwnership(ctx, tourn.ID, owner.ID, coadmin.ID); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}

	ms := membershipstore.New(db)
	newOwner, err := ms.Get(ctx, tourn.ID, coadmin.ID)
	if err != nil {
		t.Fatalf("Get new owner: %v", err)
	}
	if newOwner.Role != models.RoleOwner {
		t.Errorf("new owner role: got %s", newOwner.Role)
	}
	prev, err := ms.Get(ctx, tourn.ID, owner.ID)
	if err != nil {
		t.Fatalf("Get previous owner: %v", err)
	}
	if prev.Role != models.RoleCoAdmin {
		t.Errorf("previous owner role: got %s", prev.Role)
	}

	stored, err := tournamentstore.New(db).GetByID(ctx, tourn.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.OwnerID != coadmin.ID {
		t.Errorf("tournament owner pointer: got %s, want %s", stored.OwnerID, coadmin.ID)
	}
}

// A tournament left with two owners by a failed transfer is repaired when the
// transfer is retried.
func TestTransferOwnership_RepairsDualOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	owner := fx.CreateIdentity(ctx, "Owner", "owner@test.com")
	successor := fx.CreateIdentity(ctx, "Successor", "successor@test.com")
	tourn := fx.CreateTournament(ctx, owner.ID, "Spring Open")
	// Promotion happened, demotion did not.
	fx.CreateMembership(ctx, tourn.ID, successor.ID, models.RoleOwner)

	svc := newService(t, db)
	// The retry arrives from the original owner's still-rendered page.
	err := svc.TransferOwnership(ctx, tourn.ID, owner.ID, successor.ID)
	if err != nil {
		t.Fatalf("retry transfer: %v", err)
	}

	owners, lerr := membershipstore.New(db).ListByTournament(ctx, tourn.ID, models.RoleOwner)
	if lerr != nil {
		t.Fatalf("ListByTournament: %v", lerr)
	}
	if len(owners) != 1 || owners[0].UserID != successor.ID {
		t.Errorf("owners after repair: %+v", owners)
	}
}
