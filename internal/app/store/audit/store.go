// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventSignIn          = "sign_in"
	EventGuestStarted    = "guest_session_started"
	EventSignOut         = "sign_out"
	EventPasswordChanged = "password_changed"
	EventAccountMerged   = "account_merged"
	EventMergeFailed     = "account_merge_failed"
)

// Admin event types (tournament membership management)
const (
	EventRoleChanged          = "member_role_changed"
	EventMemberRemoved        = "member_removed"
	EventOwnershipTransferred = "ownership_transferred"
	EventTransferIncomplete   = "ownership_transfer_incomplete"
	EventTransferRepaired     = "ownership_transfer_repaired"
	EventInvitationCreated    = "invitation_created"
	EventInvitationRevoked    = "invitation_revoked"
	EventInvitationRedeemed   = "invitation_redeemed"
)

// Event represents an audit event. Identity IDs are provider subject IDs
// (strings); tournament IDs are Mongo ObjectIDs.
type Event struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	Timestamp    time.Time           `bson:"timestamp"`
	TournamentID *primitive.ObjectID `bson:"tournament_id,omitempty"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who
	UserID  string `bson:"user_id,omitempty"`  // affected identity
	ActorID string `bson:"actor_id,omitempty"` // who performed the action

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log stores an audit event. A zero timestamp is filled in.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Recent returns the most recent events, newest first.
func (s *Store) Recent(ctx context.Context, limit int64) ([]Event, error) {
	return s.find(ctx, bson.M{}, limit)
}

// ByTournament returns the most recent events for one tournament.
func (s *Store) ByTournament(ctx context.Context, tournamentID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.find(ctx, bson.M{"tournament_id": tournamentID}, limit)
}

// ByUser returns the most recent events affecting one identity.
func (s *Store) ByUser(ctx context.Context, userID string, limit int64) ([]Event, error) {
	return s.find(ctx, bson.M{"user_id": userID}, limit)
}

func (s *Store) find(ctx context.Context, filter bson.M, limit int64) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
