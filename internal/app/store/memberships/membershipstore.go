// internal/app/store/memberships/membershipstore.go
package membershipstore

// Terminology: Identity Identifiers
//   - UserID / userID / user_id: The provider subject ID (a UUID string)
//     that identifies an identity record; memberships reference it directly.

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/opencourt/tournhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tournament_memberships")}
}

var (
	errBadRole = errors.New(`role must be "owner"|"coadmin"|"trainer"|"collaborator"|"viewer"`)

	// ErrDuplicateMembership is returned when the user already holds a
	// membership in the tournament.
	ErrDuplicateMembership = errors.New("user is already a member of this tournament")

	// ErrOwnerImmutable is returned when a plain role update or removal
	// targets the owner membership. Owner changes only happen through
	// ownership transfer.
	ErrOwnerImmutable = errors.New("owner membership cannot be changed directly")
)

// Add creates a membership after validating the role. The unique index on
// (tournament_id, user_id) makes a concurrent double-add lose cleanly.
func (s *Store) Add(ctx context.Context, tournamentID primitive.ObjectID, userID string, role models.Role, teamIDs []string) (models.TournamentMembership, error) {
	if !models.IsValidRole(role) {
		return models.TournamentMembership{}, errBadRole
	}
	// Team scoping only applies to trainers.
	if role != models.RoleTrainer {
		teamIDs = nil
	}

	m := models.TournamentMembership{
		ID:           primitive.NewObjectID(),
		TournamentID: tournamentID,
		UserID:       userID,
		Role:         role,
		TeamIDs:      teamIDs,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.TournamentMembership{}, ErrDuplicateMembership
		}
		return models.TournamentMembership{}, err
	}
	return m, nil
}

// Get loads the membership for (tournamentID, userID).
// Returns mongo.ErrNoDocuments if the user is not a member.
func (s *Store) Get(ctx context.Context, tournamentID primitive.ObjectID, userID string) (*models.TournamentMembership, error) {
	var m models.TournamentMembership
	err := s.c.FindOne(ctx, bson.M{"tournament_id": tournamentID, "user_id": userID}).Decode(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetOwner loads the owner membership of a tournament.
func (s *Store) GetOwner(ctx context.Context, tournamentID primitive.ObjectID) (*models.TournamentMembership, error) {
	var m models.TournamentMembership
	err := s.c.FindOne(ctx, bson.M{"tournament_id": tournamentID, "role": models.RoleOwner}).Decode(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByTournament returns all memberships of a tournament, optionally
// filtered by role. If role is empty, returns all.
func (s *Store) ListByTournament(ctx context.Context, tournamentID primitive.ObjectID, role models.Role) ([]models.TournamentMembership, error) {
	filter := bson.M{"tournament_id": tournamentID}
	if role != "" {
		filter["role"] = role
	}
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.TournamentMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListByUser returns every membership the user holds across tournaments.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.TournamentMembership, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.TournamentMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// SetRole updates a non-owner membership's role and team scope. The filter
// excludes the owner membership so a racing transfer cannot be clobbered.
func (s *Store) SetRole(ctx context.Context, tournamentID primitive.ObjectID, userID string, role models.Role, teamIDs []string) error {
	if !models.IsValidRole(role) {
		return errBadRole
	}

	set := bson.M{"role": role}
	if role == models.RoleTrainer {
		set["team_ids"] = teamIDs
	}
	update := bson.M{"$set": set}
	if role != models.RoleTrainer {
		// Team scoping only applies to trainers.
		update["$unset"] = bson.M{"team_ids": ""}
	}

	res, err := s.c.UpdateOne(ctx, bson.M{
		"tournament_id": tournamentID,
		"user_id":       userID,
		"role":          bson.M{"$ne": models.RoleOwner},
	}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if err := s.c.FindOne(ctx, bson.M{"tournament_id": tournamentID, "user_id": userID}).Err(); err != nil {
			return err
		}
		return ErrOwnerImmutable
	}
	return nil
}

// SwapRoles atomically-enough flips the two memberships of an ownership
// transfer: the current owner becomes coadmin, the successor becomes owner.
// The successor is promoted first so a failure between the writes leaves a
// recoverable state (two owners) rather than none; ResolveDualOwner repairs
// it.
func (s *Store) SwapRoles(ctx context.Context, tournamentID primitive.ObjectID, ownerID, successorID string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{
		"tournament_id": tournamentID,
		"user_id":       successorID,
		"role":          models.RoleCoAdmin,
	}, bson.M{"$set": bson.M{"role": models.RoleOwner}, "$unset": bson.M{"team_ids": ""}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	_, err = s.c.UpdateOne(ctx, bson.M{
		"tournament_id": tournamentID,
		"user_id":       ownerID,
		"role":          models.RoleOwner,
	}, bson.M{"$set": bson.M{"role": models.RoleCoAdmin}})
	return err
}

// ResolveDualOwner demotes every owner membership of the tournament except
// keepUserID's to coadmin. Used to repair a transfer that failed between its
// two writes. Returns how many memberships were demoted.
func (s *Store) ResolveDualOwner(ctx context.Context, tournamentID primitive.ObjectID, keepUserID string) (int64, error) {
	res, err := s.c.UpdateMany(ctx, bson.M{
		"tournament_id": tournamentID,
		"role":          models.RoleOwner,
		"user_id":       bson.M{"$ne": keepUserID},
	}, bson.M{"$set": bson.M{"role": models.RoleCoAdmin}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Remove deletes a non-owner membership. Removing the owner is refused; that
// path goes through ownership transfer.
func (s *Store) Remove(ctx context.Context, tournamentID primitive.ObjectID, userID string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{
		"tournament_id": tournamentID,
		"user_id":       userID,
		"role":          bson.M{"$ne": models.RoleOwner},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		err := s.c.FindOne(ctx, bson.M{"tournament_id": tournamentID, "user_id": userID}).Err()
		if err == nil {
			return ErrOwnerImmutable
		}
		return err
	}
	return nil
}

// ReassignUserID moves one membership document to a new user ID. Used by
// account merge; the duplicate case (target already a member of the same
// tournament) surfaces as ErrDuplicateMembership for the service to resolve.
func (s *Store) ReassignUserID(ctx context.Context, membershipID primitive.ObjectID, toUserID string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": membershipID},
		bson.M{"$set": bson.M{"user_id": toUserID}})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateMembership
		}
		return err
	}
	return nil
}

// DeleteByID removes a membership document outright. Only the merge path
// uses it, to drop a source membership that collides with one the target
// already holds.
func (s *Store) DeleteByID(ctx context.Context, membershipID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": membershipID})
	return err
}

// CountByUser returns how many memberships the user holds.
func (s *Store) CountByUser(ctx context.Context, userID string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID})
}
