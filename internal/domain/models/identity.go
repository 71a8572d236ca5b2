// internal/domain/models/identity.go
package models

// Terminology: Identity Identifiers
//   - IdentityID / identityID / identity_id: The subject ID issued by the
//     identity provider (a UUID string). It is stored as _id so app records
//     and provider records never need a mapping table.

import (
	"strings"
	"time"
)

// GlobalRole is an identity's application-wide role, independent of any
// tournament membership.
type GlobalRole string

const (
	GlobalRoleUser  GlobalRole = "user"
	GlobalRoleAdmin GlobalRole = "admin"
	GlobalRoleGuest GlobalRole = "guest"
)

// Identity is an application user record mirroring the identity provider's
// subject. Anonymous (guest) identities are created locally on first visit
// and deleted only after a successful account merge.
type Identity struct {
	ID          string     `bson:"_id" json:"id"`
	DisplayName string     `bson:"display_name" json:"display_name"`
	Email       *string    `bson:"email,omitempty" json:"email,omitempty"`
	EmailCI     *string    `bson:"email_ci,omitempty" json:"-"`
	AvatarURL   string     `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	GlobalRole  GlobalRole `bson:"global_role" json:"global_role"`
	IsAnonymous bool       `bson:"is_anonymous" json:"is_anonymous"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsGuest reports whether the identity is subject to guest resource limits.
func (i Identity) IsGuest() bool {
	return i.IsAnonymous || i.GlobalRole == GlobalRoleGuest
}

// FoldEmail normalizes an email for case-insensitive lookup and collision
// detection. The same folding must be used on write and on query.
func FoldEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProviderSession is the token pair the identity provider hands back after a
// successful authentication. The application only carries it between the
// provider client and the cookie session; the provider owns its lifecycle.
type ProviderSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	IdentityID   string
	Email        string
	DisplayName  string
	AvatarURL    string
}

// Expired reports whether the session is past its validity. A session with
// no expiry recorded is treated as live; the provider rejects it server-side
// if it is not.
func (s ProviderSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
