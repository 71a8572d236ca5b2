// internal/app/store/identities/identitystore.go
package identitystore

// Terminology: Identity Identifiers
//   - IdentityID / identityID / identity_id: The provider subject ID (a UUID
//     string), stored as the Mongo _id so app records and provider records
//     never need a mapping table.

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opencourt/tournhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("identities")}
}

var (
	// ErrDuplicateEmail is returned when a write would give two identities the
	// same folded email.
	ErrDuplicateEmail = errors.New("an identity with this email already exists")

	// ErrNotGuest is returned when a guest-only operation targets a permanent
	// identity.
	ErrNotGuest = errors.New("identity is not a guest")
)

// GetByID loads an identity by provider subject ID.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	var ident models.Identity
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

// GetByEmail looks up an identity by case-insensitive email.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var ident models.Identity
	if err := s.c.FindOne(ctx, bson.M{"email_ci": models.FoldEmail(email)}).Decode(&ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

// UpsertFromSession mirrors a provider session into the identities
// collection. Called on every authenticated callback, so it must be
// idempotent: a repeat of the same session is a no-op apart from updated_at.
func (s *Store) UpsertFromSession(ctx context.Context, sess *models.ProviderSession) (*models.Identity, error) {
	now := time.Now().UTC()

	set := bson.M{
		"is_anonymous": false,
		"updated_at":   now,
	}
	if sess.Email != "" {
		set["email"] = sess.Email
		set["email_ci"] = models.FoldEmail(sess.Email)
	}
	if sess.DisplayName != "" {
		set["display_name"] = sess.DisplayName
	}
	if sess.AvatarURL != "" {
		set["avatar_url"] = sess.AvatarURL
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"global_role": models.GlobalRoleUser,
			"created_at":  now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var ident models.Identity
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": sess.IdentityID}, update, opts).Decode(&ident)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &ident, nil
}

// CreateGuest inserts a new anonymous identity with a locally minted ID.
func (s *Store) CreateGuest(ctx context.Context, displayName string) (models.Identity, error) {
	now := time.Now().UTC()
	ident := models.Identity{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		GlobalRole:  models.GlobalRoleGuest,
		IsAnonymous: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ident.DisplayName == "" {
		ident.DisplayName = "Guest"
	}
	if _, err := s.c.InsertOne(ctx, ident); err != nil {
		return models.Identity{}, err
	}
	return ident, nil
}

// DeleteGuest removes a guest identity. The filter requires is_anonymous so a
// stale merge retry can never delete a permanent account; a miss on a
// permanent identity reports ErrNotGuest.
func (s *Store) DeleteGuest(ctx context.Context, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "is_anonymous": true})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		err := s.c.FindOne(ctx, bson.M{"_id": id}).Err()
		if err == nil {
			return ErrNotGuest
		}
		if err == mongo.ErrNoDocuments {
			// Already deleted; merge retries land here.
			return nil
		}
		return err
	}
	return nil
}

// SetGlobalRole updates an identity's application-wide role.
func (s *Store) SetGlobalRole(ctx context.Context, id string, role models.GlobalRole) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"global_role": role,
		"updated_at":  time.Now().UTC(),
	}})
	return err
}

// UpdateProfile updates the fields an identity can edit about itself.
func (s *Store) UpdateProfile(ctx context.Context, id, displayName, avatarURL string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"display_name": displayName,
		"avatar_url":   avatarURL,
		"updated_at":   time.Now().UTC(),
	}})
	return err
}
