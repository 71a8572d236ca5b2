// internal/app/store/invitations/invitationstore.go
package invitationstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opencourt/tournhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invitations")}
}

var (
	// ErrNotFound is returned when no invitation carries the token.
	ErrNotFound = errors.New("invitation not found")

	// ErrExpired is returned when the invitation's expiry has passed.
	ErrExpired = errors.New("invitation has expired")

	// ErrExhausted is returned when the invitation's use budget is spent.
	ErrExhausted = errors.New("invitation has no uses left")

	errBadRole = errors.New("invitation role cannot be owner")
)

// Create mints a new invitation with a fresh random token. Ownership is
// never grantable by invitation.
func (s *Store) Create(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	if !models.IsValidRole(inv.Role) || inv.Role == models.RoleOwner {
		return models.Invitation{}, errBadRole
	}
	// Team scoping only applies to trainers.
	if inv.Role != models.RoleTrainer {
		inv.TeamIDs = nil
	}

	inv.ID = primitive.NewObjectID()
	inv.Token = uuid.NewString()
	inv.UsesCount = 0
	inv.CreatedAt = time.Now().UTC()

	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		return models.Invitation{}, err
	}
	return inv, nil
}

// GetByToken loads an invitation without consuming a use.
func (s *Store) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&inv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Redeem consumes one use of the invitation if and only if it is still live:
// not expired and not exhausted. The check and the increment are one
// findAndModify, so two concurrent redemptions of a single-use invitation
// cannot both succeed. Returns the invitation as it was after the increment.
func (s *Store) Redeem(ctx context.Context, token string, now time.Time) (*models.Invitation, error) {
	filter := bson.M{
		"token": token,
		"$and": []bson.M{
			{"$or": []bson.M{
				{"expires_at": bson.M{"$exists": false}},
				{"expires_at": nil},
				{"expires_at": bson.M{"$gt": now}},
			}},
			{"$expr": bson.M{"$or": []bson.M{
				{"$eq": []interface{}{"$max_uses", 0}},
				{"$lt": []string{"$uses_count", "$max_uses"}},
			}}},
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var inv models.Invitation
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"uses_count": 1}}, opts).Decode(&inv)
	if err == nil {
		return &inv, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	// The guarded update missed; re-read to say why.
	existing, gerr := s.GetByToken(ctx, token)
	if gerr != nil {
		return nil, gerr
	}
	if existing.Expired(now) {
		return nil, ErrExpired
	}
	if existing.Exhausted() {
		return nil, ErrExhausted
	}
	// The invitation became live between the two reads (e.g. a racing
	// revoke-and-recreate). Treat as not found rather than retry forever.
	return nil, ErrNotFound
}

// Unredeem returns one use to the invitation. Called when the membership
// insert that follows a redeem fails, so an aborted join does not burn a use.
func (s *Store) Unredeem(ctx context.Context, token string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "uses_count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"uses_count": -1}})
	return err
}

// ListByTournament returns every invitation minted for a tournament.
func (s *Store) ListByTournament(ctx context.Context, tournamentID primitive.ObjectID) ([]models.Invitation, error) {
	cur, err := s.c.Find(ctx, bson.M{"tournament_id": tournamentID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invs []models.Invitation
	if err := cur.All(ctx, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// Revoke deletes an invitation by token. Already-redeemed memberships are
// unaffected; tokens are never recycled.
func (s *Store) Revoke(ctx context.Context, token string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"token": token})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByTournament removes all invitations for a tournament. Used when a
// tournament is soft-deleted so dangling tokens cannot grant access later.
func (s *Store) DeleteByTournament(ctx context.Context, tournamentID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"tournament_id": tournamentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
