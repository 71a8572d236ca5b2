package testutil

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opencourt/tournhub/internal/domain/models"
)

// SetupTestDB connects to a local MongoDB and returns a database unique to
// this test, dropped on cleanup. Tests that need Mongo skip when it is not
// reachable, so the rest of the suite runs anywhere.
//
// Override the URI with TEST_MONGO_URI.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("mongo not available at %s: %v", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("mongo not reachable at %s: %v", uri, err)
	}

	name := fmt.Sprintf("tournhub_test_%s", primitive.NewObjectID().Hex())
	db := client.Database(name)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	return db
}

// TestContext returns a context with the standard test deadline.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateIdentity creates a permanent identity with the given email.
func (f *Fixtures) CreateIdentity(ctx context.Context, displayName, email string) models.Identity {
	f.t.Helper()

	now := time.Now().UTC()
	folded := models.FoldEmail(email)
	ident := models.Identity{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Email:       &email,
		EmailCI:     &folded,
		GlobalRole:  models.GlobalRoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("identities").InsertOne(ctx, ident); err != nil {
		f.t.Fatalf("CreateIdentity: %v", err)
	}
	return ident
}

// CreateGuest creates an anonymous guest identity.
func (f *Fixtures) CreateGuest(ctx context.Context, displayName string) models.Identity {
	f.t.Helper()

	now := time.Now().UTC()
	ident := models.Identity{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		GlobalRole:  models.GlobalRoleGuest,
		IsAnonymous: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("identities").InsertOne(ctx, ident); err != nil {
		f.t.Fatalf("CreateGuest: %v", err)
	}
	return ident
}

// CreateTournament creates an active tournament owned by ownerID, together
// with the owner membership.
func (f *Fixtures) CreateTournament(ctx context.Context, ownerID, name string) models.Tournament {
	f.t.Helper()

	now := time.Now().UTC()
	tourn := models.Tournament{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		OwnerID:   ownerID,
		Status:    models.TournamentActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("tournaments").InsertOne(ctx, tourn); err != nil {
		f.t.Fatalf("CreateTournament: %v", err)
	}
	f.CreateMembership(ctx, tourn.ID, ownerID, models.RoleOwner)
	return tourn
}

// CreateMembership creates a membership binding userID to the tournament.
func (f *Fixtures) CreateMembership(ctx context.Context, tournamentID primitive.ObjectID, userID string, role models.Role) models.TournamentMembership {
	f.t.Helper()

	m := models.TournamentMembership{
		ID:           primitive.NewObjectID(),
		TournamentID: tournamentID,
		UserID:       userID,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := f.db.Collection("tournament_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("CreateMembership: %v", err)
	}
	return m
}

// CreateInvitation creates an invitation for the tournament with the given
// use budget. maxUses of 0 means unlimited; expiresAt nil means no expiry.
func (f *Fixtures) CreateInvitation(ctx context.Context, tournamentID primitive.ObjectID, role models.Role, maxUses int, expiresAt *time.Time, createdBy string) models.Invitation {
	f.t.Helper()

	inv := models.Invitation{
		ID:           primitive.NewObjectID(),
		Token:        uuid.NewString(),
		TournamentID: tournamentID,
		Role:         role,
		MaxUses:      maxUses,
		ExpiresAt:    expiresAt,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := f.db.Collection("invitations").InsertOne(ctx, inv); err != nil {
		f.t.Fatalf("CreateInvitation: %v", err)
	}
	return inv
}
