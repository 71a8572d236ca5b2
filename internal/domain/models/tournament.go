// internal/domain/models/tournament.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tournament statuses. Tournaments are soft-deleted so guest quota counting
// can distinguish active resources from discarded ones.
const (
	TournamentActive  = "active"
	TournamentDeleted = "deleted"
)

// Tournament is the resource the access-control core gates. Scheduling,
// teams, and match content live elsewhere; the identity core only needs
// ownership and liveness.
type Tournament struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	Name    string             `bson:"name" json:"name"`
	NameCI  string             `bson:"name_ci" json:"-"`
	OwnerID string             `bson:"owner_id" json:"owner_id"`
	Status  string             `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
