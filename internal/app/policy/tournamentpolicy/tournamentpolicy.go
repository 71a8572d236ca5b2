// internal/app/policy/tournamentpolicy/tournamentpolicy.go

// Package tournamentpolicy provides the authorization rules for tournament
// membership management.
//
// Authorization rules:
//   - Owners can change anyone's role and may grant any role, including
//     co-admin.
//   - Co-admins can manage trainers, collaborators, and viewers, but never
//     the owner or other co-admins, and can only grant roles below their own.
//   - Trainers, collaborators, and viewers cannot manage members.
//   - Ownership can only be transferred by the owner, and only to a member
//     who already holds co-admin.
//
// The hierarchy is an explicit total order (integer rank per role) so every
// predicate reduces to rank comparisons plus the single owner-grants-anything
// exception.
package tournamentpolicy

import (
	"github.com/opencourt/tournhub/internal/domain/models"
)

// Rank positions a role in the privilege order:
// owner > coadmin > {trainer, collaborator} > viewer.
// Trainer and collaborator share a rank on purpose; neither outranks the
// other. Unknown roles rank below every real role.
func Rank(r models.Role) int {
	switch r {
	case models.RoleOwner:
		return 4
	case models.RoleCoAdmin:
		return 3
	case models.RoleTrainer, models.RoleCollaborator:
		return 2
	case models.RoleViewer:
		return 1
	default:
		return 0
	}
}

// CanChangeRole reports whether an actor may modify the target member at
// all (role change or removal). The actor must strictly outrank the target
// and hold at least co-admin privilege.
func CanChangeRole(actor, target models.Role) bool {
	if Rank(actor) < Rank(models.RoleCoAdmin) {
		return false
	}
	return Rank(actor) > Rank(target)
}

// CanSetRoleTo reports whether an actor may change the target member's role
// to newRole. CanChangeRole must hold, and the actor must outrank the role
// being granted — an actor can never hand out a role equal to or above their
// own. The owner is the exception and may grant any valid role, including
// co-admin.
func CanSetRoleTo(actor, target, newRole models.Role) bool {
	if !CanChangeRole(actor, target) {
		return false
	}
	if !models.IsValidRole(newRole) || newRole == models.RoleOwner {
		// Owner is granted only through ownership transfer.
		return false
	}
	if actor == models.RoleOwner {
		return true
	}
	return Rank(actor) > Rank(newRole)
}

// CanTransferOwnership reports whether the actor may hand the tournament to
// the designated successor. Only the owner can transfer, and only to a
// member already vetted as co-admin.
func CanTransferOwnership(actor, successor models.Role) bool {
	return actor == models.RoleOwner && successor == models.RoleCoAdmin
}

// CanRemoveMember reports whether the actor may remove the target member.
// Same bar as a role change; owners are never removable (ownership moves via
// transfer, never deletion).
func CanRemoveMember(actor, target models.Role) bool {
	if target == models.RoleOwner {
		return false
	}
	return CanChangeRole(actor, target)
}

// CanInvite reports whether the actor may issue invitations for a role.
// Only owners and co-admins invite, and the invited role obeys the same
// granting rule as CanSetRoleTo.
func CanInvite(actor, invitedRole models.Role) bool {
	if Rank(actor) < Rank(models.RoleCoAdmin) {
		return false
	}
	if !models.IsValidRole(invitedRole) || invitedRole == models.RoleOwner {
		return false
	}
	if actor == models.RoleOwner {
		return true
	}
	return Rank(actor) > Rank(invitedRole)
}
