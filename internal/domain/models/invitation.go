// internal/domain/models/invitation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation is a scoped join token for one tournament. Each redemption
// increments UsesCount; the invitation is invalid once UsesCount reaches
// MaxUses (when bounded) or ExpiresAt has passed (when set). Tokens are
// never recycled after invalidation.
type Invitation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token        string             `bson:"token" json:"token"`
	TournamentID primitive.ObjectID `bson:"tournament_id" json:"tournament_id"`
	Role         Role               `bson:"role" json:"role"`
	TeamIDs      []string           `bson:"team_ids,omitempty" json:"team_ids,omitempty"`

	// MaxUses of 0 means unlimited.
	MaxUses   int        `bson:"max_uses" json:"max_uses"`
	UsesCount int        `bson:"uses_count" json:"uses_count"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`

	CreatedBy string    `bson:"created_by" json:"created_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Exhausted reports whether the invitation's use budget is spent.
func (inv Invitation) Exhausted() bool {
	return inv.MaxUses > 0 && inv.UsesCount >= inv.MaxUses
}

// Expired reports whether the invitation is past its expiry, if one is set.
func (inv Invitation) Expired(now time.Time) bool {
	return inv.ExpiresAt != nil && now.After(*inv.ExpiresAt)
}
