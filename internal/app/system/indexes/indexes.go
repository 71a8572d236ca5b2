// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureIdentities(ctx, db); err != nil {
		problems = append(problems, "identities: "+err.Error())
	}
	if err := ensureTournaments(ctx, db); err != nil {
		problems = append(problems, "tournaments: "+err.Error())
	}
	if err := ensureTournamentMemberships(ctx, db); err != nil {
		problems = append(problems, "tournament_memberships: "+err.Error())
	}
	if err := ensureInvitations(ctx, db); err != nil {
		problems = append(problems, "invitations: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, indexModels []mongo.IndexModel) error {
	var errs []string

	existing := map[string]existingIndex{} // key signature -> index
	cur, err := coll.Indexes().List(ctx)
	if err == nil {
		for cur.Next(ctx) {
			var idx existingIndex
			if err := cur.Decode(&idx); err != nil {
				zap.L().Warn("failed to decode existing index",
					zap.String("collection", coll.Name()),
					zap.Error(err))
				continue
			}
			existing[keySig(idx.Key)] = idx
		}
		cur.Close(ctx)
	}

	for _, m := range indexModels {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}
			// Options changed (e.g. upgrading to unique): drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureIdentities(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("identities")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Folded email must be unique across permanent identities. Sparse so
		// guests (no email) never collide with each other.
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_identities_email_ci"),
		},
	})
}

func ensureTournaments(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("tournaments")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Guest quota counting and owner dashboards.
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_tournaments_owner_status"),
		},
	})
}

func ensureTournamentMemberships(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("tournament_memberships")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One membership per identity per tournament. The merge path relies
		// on this to detect collisions between source and target accounts.
		{
			Keys: bson.D{
				{Key: "tournament_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_memberships_tournament_user"),
		},

		// "My tournaments" lists and the merge scan.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_memberships_user"),
		},

		// Owner lookup during permission checks and transfer repair.
		{
			Keys: bson.D{
				{Key: "tournament_id", Value: 1},
				{Key: "role", Value: 1},
			},
			Options: options.Index().SetName("idx_memberships_tournament_role"),
		},
	})
}

func ensureInvitations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("invitations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Redemption is a token lookup; tokens are globally unique.
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_invitations_token"),
		},

		// Management screens list invitations per tournament.
		{
			Keys:    bson.D{{Key: "tournament_id", Value: 1}},
			Options: options.Index().SetName("idx_invitations_tournament"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Recent-events view.
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},

		// Per-tournament audit trail.
		{
			Keys: bson.D{
				{Key: "tournament_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_tournament_timestamp"),
		},

		// Per-identity audit trail.
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_user_timestamp"),
		},
	})
}
