// internal/app/store/tournaments/tournamentstore.go
package tournamentstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/opencourt/tournhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tournaments")}
}

var errEmptyName = errors.New("tournament name is required")

// Create inserts a new active tournament owned by ownerID.
func (s *Store) Create(ctx context.Context, ownerID, name string) (models.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Tournament{}, errEmptyName
	}

	now := time.Now().UTC()
	t := models.Tournament{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		OwnerID:   ownerID,
		Status:    models.TournamentActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Tournament{}, err
	}
	return t, nil
}

// GetByID loads a tournament. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CountActiveByOwner counts live tournaments owned by ownerID. Soft-deleted
// tournaments do not count against the guest quota.
func (s *Store) CountActiveByOwner(ctx context.Context, ownerID string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"owner_id": ownerID,
		"status":   models.TournamentActive,
	})
}

// ListByOwner returns all tournaments owned by ownerID, optionally filtered
// by status. If status is empty, returns all.
func (s *Store) ListByOwner(ctx context.Context, ownerID, status string) ([]models.Tournament, error) {
	filter := bson.M{"owner_id": ownerID}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tournaments []models.Tournament
	if err := cur.All(ctx, &tournaments); err != nil {
		return nil, err
	}
	return tournaments, nil
}

// SetOwner rewrites one tournament's owner. Used by ownership transfer; the
// membership role swap happens in the service layer around this call.
func (s *Store) SetOwner(ctx context.Context, id primitive.ObjectID, ownerID string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"owner_id":   ownerID,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ReparentOwner moves every tournament owned by fromID to toID and returns
// how many documents changed. Idempotent: a retry after a partial failure
// only touches the tournaments still pointing at fromID.
func (s *Store) ReparentOwner(ctx context.Context, fromID, toID string) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"owner_id": fromID},
		bson.M{"$set": bson.M{
			"owner_id":   toID,
			"updated_at": time.Now().UTC(),
		}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// SetStatus soft-deletes or restores a tournament.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	if status != models.TournamentActive && status != models.TournamentDeleted {
		return errors.New(`status must be "active" or "deleted"`)
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
