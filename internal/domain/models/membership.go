// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a member's role within a single tournament, totally ordered by
// privilege: owner > coadmin > {trainer, collaborator} > viewer.
// Trainer and collaborator share a rank; they differ in scope, not privilege.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleCoAdmin      Role = "coadmin"
	RoleTrainer      Role = "trainer"
	RoleCollaborator Role = "collaborator"
	RoleViewer       Role = "viewer"
)

// AllRoles lists every tournament role. Used for validation and for policy
// sweep tests.
var AllRoles = []Role{RoleOwner, RoleCoAdmin, RoleTrainer, RoleCollaborator, RoleViewer}

// IsValidRole reports whether value names a tournament role.
func IsValidRole(value Role) bool {
	for _, r := range AllRoles {
		if r == value {
			return true
		}
	}
	return false
}

// TournamentMembership binds an identity to a role within one tournament.
// Exactly one owner membership exists per tournament at all times; the
// transfer and merge operations uphold that invariant, simple deletion never
// touches an owner.
type TournamentMembership struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TournamentID primitive.ObjectID `bson:"tournament_id" json:"tournament_id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	Role         Role               `bson:"role" json:"role"`

	// TeamIDs scopes a trainer's write access to specific teams.
	// Populated only when Role is trainer.
	TeamIDs []string `bson:"team_ids,omitempty" json:"team_ids,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
