// internal/app/service/membership/membershipsvc.go

// Package membershipsvc orchestrates membership management: invitations,
// role changes, removals, and ownership transfer. Every mutation re-checks
// authorization against the current stored roles, never against whatever the
// caller's page last rendered.
package membershipsvc

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/policy/tournamentpolicy"
	invitationstore "github.com/opencourt/tournhub/internal/app/store/invitations"
	membershipstore "github.com/opencourt/tournhub/internal/app/store/memberships"
	tournamentstore "github.com/opencourt/tournhub/internal/app/store/tournaments"
	"github.com/opencourt/tournhub/internal/app/system/auditlog"
	"github.com/opencourt/tournhub/internal/app/system/metrics"
	"github.com/opencourt/tournhub/internal/domain/models"
)

var (
	// ErrForbidden is returned when the actor's current role does not permit
	// the operation.
	ErrForbidden = errors.New("not allowed for your role in this tournament")

	// ErrNotMember is returned when an operation targets a user with no
	// membership in the tournament.
	ErrNotMember = errors.New("user is not a member of this tournament")

	// ErrAlreadyMember is returned when a redemption targets a tournament the
	// user already belongs to. The invitation use is not consumed.
	ErrAlreadyMember = errors.New("you are already a member of this tournament")

	// ErrTransferIncomplete is returned when an ownership transfer failed
	// partway and the automatic repair could not complete either. The
	// tournament may briefly show two owners until a retry repairs it.
	ErrTransferIncomplete = errors.New("ownership transfer did not complete")
)

type Service struct {
	memberships *membershipstore.Store
	invitations *invitationstore.Store
	tournaments *tournamentstore.Store
	log         *zap.Logger

	// Audit receives membership management events. Optional; a nil logger
	// is a no-op.
	Audit *auditlog.Logger
}

func New(memberships *membershipstore.Store, invitations *invitationstore.Store, tournaments *tournamentstore.Store, log *zap.Logger) *Service {
	return &Service{
		memberships: memberships,
		invitations: invitations,
		tournaments: tournaments,
		log:         log,
	}
}

// actorRole loads the actor's current role in the tournament. A non-member
// actor has no role and fails every policy check downstream.
func (s *Service) actorRole(ctx context.Context, tournamentID primitive.ObjectID, actorID string) (models.Role, error) {
	m, err := s.memberships.Get(ctx, tournamentID, actorID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", ErrForbidden
		}
		return "", err
	}
	return m.Role, nil
}

// CreateInvitation mints an invitation for the tournament after verifying the
// actor may invite at the requested role.
func (s *Service) CreateInvitation(ctx context.Context, tournamentID primitive.ObjectID, actorID string, role models.Role, teamIDs []string, maxUses int, expiresAt *time.Time) (models.Invitation, error) {
	actor, err := s.actorRole(ctx, tournamentID, actorID)
	if err != nil {
		return models.Invitation{}, err
	}
	if !tournamentpolicy.CanInvite(actor, role) {
		return models.Invitation{}, ErrForbidden
	}

	inv, err := s.invitations.Create(ctx, models.Invitation{
		TournamentID: tournamentID,
		Role:         role,
		TeamIDs:      teamIDs,
		MaxUses:      maxUses,
		ExpiresAt:    expiresAt,
		CreatedBy:    actorID,
	})
	if err != nil {
		return models.Invitation{}, err
	}

	s.log.Info("invitation created",
		zap.String("tournament_id", tournamentID.Hex()),
		zap.String("created_by", actorID),
		zap.String("role", string(inv.Role)),
		zap.Int("max_uses", inv.MaxUses))
	s.Audit.InvitationCreated(ctx, tournamentID, actorID, string(inv.Role), inv.MaxUses)
	return inv, nil
}

// RedeemInvitation consumes one use of the token and adds userID to the
// tournament at the invitation's role. The consume is atomic in the store, so
// concurrent redemptions of a single-use token admit exactly one user. If the
// membership insert fails after the consume, the use is returned.
func (s *Service) RedeemInvitation(ctx context.Context, token, userID string) (models.TournamentMembership, error) {
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		metrics.InviteRedemptions.WithLabelValues("not_found").Inc()
		return models.TournamentMembership{}, err
	}

	// Reject the duplicate before burning a use.
	if _, err := s.memberships.Get(ctx, inv.TournamentID, userID); err == nil {
		metrics.InviteRedemptions.WithLabelValues("duplicate").Inc()
		return models.TournamentMembership{}, ErrAlreadyMember
	} else if err != mongo.ErrNoDocuments {
		return models.TournamentMembership{}, err
	}

	consumed, err := s.invitations.Redeem(ctx, token, time.Now().UTC())
	if err != nil {
		switch err {
		case invitationstore.ErrExpired:
			metrics.InviteRedemptions.WithLabelValues("expired").Inc()
		case invitationstore.ErrExhausted:
			metrics.InviteRedemptions.WithLabelValues("exhausted").Inc()
		default:
			metrics.InviteRedemptions.WithLabelValues("not_found").Inc()
		}
		return models.TournamentMembership{}, err
	}

	m, err := s.memberships.Add(ctx, consumed.TournamentID, userID, consumed.Role, consumed.TeamIDs)
	if err != nil {
		if uerr := s.invitations.Unredeem(ctx, token); uerr != nil {
			s.log.Error("failed to return invitation use",
				zap.String("token", token), zap.Error(uerr))
		}
		if err == membershipstore.ErrDuplicateMembership {
			// Lost a race with another redemption by the same user.
			metrics.InviteRedemptions.WithLabelValues("duplicate").Inc()
			return models.TournamentMembership{}, ErrAlreadyMember
		}
		return models.TournamentMembership{}, err
	}

	metrics.InviteRedemptions.WithLabelValues("ok").Inc()
	s.log.Info("invitation redeemed",
		zap.String("tournament_id", consumed.TournamentID.Hex()),
		zap.String("user_id", userID),
		zap.String("role", string(consumed.Role)))
	s.Audit.InvitationRedeemed(ctx, consumed.TournamentID, userID, string(consumed.Role))
	return m, nil
}

// RevokeInvitation deletes an invitation after verifying the actor could have
// minted it.
func (s *Service) RevokeInvitation(ctx context.Context, tournamentID primitive.ObjectID, actorID, token string) error {
	actor, err := s.actorRole(ctx, tournamentID, actorID)
	if err != nil {
		return err
	}
	if tournamentpolicy.Rank(actor) < tournamentpolicy.Rank(models.RoleCoAdmin) {
		return ErrForbidden
	}

	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if inv.TournamentID != tournamentID {
		return invitationstore.ErrNotFound
	}
	if err := s.invitations.Revoke(ctx, token); err != nil {
		return err
	}
	s.Audit.InvitationRevoked(ctx, tournamentID, actorID)
	return nil
}

// ChangeRole sets the target member's role after re-checking both sides of
// the policy against current stored roles.
func (s *Service) ChangeRole(ctx context.Context, tournamentID primitive.ObjectID, actorID, targetID string, newRole models.Role, teamIDs []string) error {
	actor, err := s.actorRole(ctx, tournamentID, actorID)
	if err != nil {
		return err
	}

	target, err := s.memberships.Get(ctx, tournamentID, targetID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotMember
		}
		return err
	}

	if !tournamentpolicy.CanSetRoleTo(actor, target.Role, newRole) {
		return ErrForbidden
	}
	if err := s.memberships.SetRole(ctx, tournamentID, targetID, newRole, teamIDs); err != nil {
		return err
	}

	s.log.Info("member role changed",
		zap.String("tournament_id", tournamentID.Hex()),
		zap.String("actor", actorID),
		zap.String("target", targetID),
		zap.String("from", string(target.Role)),
		zap.String("to", string(newRole)))
	s.Audit.RoleChanged(ctx, tournamentID, actorID, targetID, string(target.Role), string(newRole))
	return nil
}

// RemoveMember deletes the target's membership. Owners are never removable.
func (s *Service) RemoveMember(ctx context.Context, tournamentID primitive.ObjectID, actorID, targetID string) error {
	actor, err := s.actorRole(ctx, tournamentID, actorID)
	if err != nil {
		return err
	}

	target, err := s.memberships.Get(ctx, tournamentID, targetID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotMember
		}
		return err
	}

	// A member may always remove themselves, except the owner.
	self := actorID == targetID && target.Role != models.RoleOwner
	if !self && !tournamentpolicy.CanRemoveMember(actor, target.Role) {
		return ErrForbidden
	}
	if err := s.memberships.Remove(ctx, tournamentID, targetID); err != nil {
		return err
	}

	s.log.Info("member removed",
		zap.String("tournament_id", tournamentID.Hex()),
		zap.String("actor", actorID),
		zap.String("target", targetID))
	s.Audit.MemberRemoved(ctx, tournamentID, actorID, targetID)
	return nil
}

// TransferOwnership hands the tournament from the current owner to a
// co-admin successor. The operation spans three writes (promote successor,
// demote owner, rewrite tournament owner_id); a failure partway is repaired
// on the spot by re-reading and demoting any extra owner, and is always
// repairable by retrying.
func (s *Service) TransferOwnership(ctx context.Context, tournamentID primitive.ObjectID, actorID, successorID string) error {
	actor, err := s.actorRole(ctx, tournamentID, actorID)
	if err != nil {
		metrics.OwnershipTransfers.WithLabelValues("forbidden").Inc()
		return err
	}

	successor, err := s.memberships.Get(ctx, tournamentID, successorID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			metrics.OwnershipTransfers.WithLabelValues("forbidden").Inc()
			return ErrNotMember
		}
		return err
	}

	// A successor who already holds owner means a previous attempt promoted
	// them and then died. Resume: demote every other owner and rewrite the
	// pointer instead of refusing the retry.
	if successor.Role == models.RoleOwner && actorID != successorID {
		if tournamentpolicy.Rank(actor) >= tournamentpolicy.Rank(models.RoleCoAdmin) {
			if s.repairTransfer(ctx, tournamentID, successorID) {
				s.finishTransfer(ctx, tournamentID, actorID, successorID)
				metrics.OwnershipTransfers.WithLabelValues("repaired").Inc()
				s.Audit.OwnershipTransferred(ctx, tournamentID, actorID, successorID, true)
				return nil
			}
			metrics.OwnershipTransfers.WithLabelValues("partial").Inc()
			s.Audit.TransferIncomplete(ctx, tournamentID, actorID, successorID, "dual-owner repair failed")
			return ErrTransferIncomplete
		}
		metrics.OwnershipTransfers.WithLabelValues("forbidden").Inc()
		return ErrForbidden
	}

	if !tournamentpolicy.CanTransferOwnership(actor, successor.Role) {
		metrics.OwnershipTransfers.WithLabelValues("forbidden").Inc()
		return ErrForbidden
	}

	if err := s.memberships.SwapRoles(ctx, tournamentID, actorID, successorID); err != nil {
		// The successor promotion is the first write; if it failed nothing
		// has changed yet.
		if repaired := s.repairTransfer(ctx, tournamentID, successorID); repaired {
			metrics.OwnershipTransfers.WithLabelValues("repaired").Inc()
			s.finishTransfer(ctx, tournamentID, actorID, successorID)
			s.Audit.OwnershipTransferred(ctx, tournamentID, actorID, successorID, true)
			return nil
		}
		metrics.OwnershipTransfers.WithLabelValues("partial").Inc()
		s.log.Error("ownership transfer failed",
			zap.String("tournament_id", tournamentID.Hex()),
			zap.Error(err))
		s.Audit.TransferIncomplete(ctx, tournamentID, actorID, successorID, err.Error())
		return ErrTransferIncomplete
	}

	s.finishTransfer(ctx, tournamentID, actorID, successorID)
	metrics.OwnershipTransfers.WithLabelValues("ok").Inc()
	s.Audit.OwnershipTransferred(ctx, tournamentID, actorID, successorID, false)
	return nil
}

// finishTransfer rewrites the tournament's owner pointer and logs. The
// membership swap already happened; a failure here leaves the pointer stale
// but the next transfer attempt (or repair) rewrites it.
func (s *Service) finishTransfer(ctx context.Context, tournamentID primitive.ObjectID, fromID, toID string) {
	if err := s.tournaments.SetOwner(ctx, tournamentID, toID); err != nil {
		s.log.Error("owner pointer update failed after role swap",
			zap.String("tournament_id", tournamentID.Hex()),
			zap.String("new_owner", toID),
			zap.Error(err))
		return
	}
	s.log.Info("ownership transferred",
		zap.String("tournament_id", tournamentID.Hex()),
		zap.String("from", fromID),
		zap.String("to", toID))
}

// repairTransfer reconciles a transfer that may have failed between writes.
// If the successor did get promoted, every other owner membership is demoted
// and the transfer counts as complete.
func (s *Service) repairTransfer(ctx context.Context, tournamentID primitive.ObjectID, successorID string) bool {
	m, err := s.memberships.Get(ctx, tournamentID, successorID)
	if err != nil || m.Role != models.RoleOwner {
		return false
	}
	if _, err := s.memberships.ResolveDualOwner(ctx, tournamentID, successorID); err != nil {
		s.log.Error("dual-owner repair failed",
			zap.String("tournament_id", tournamentID.Hex()),
			zap.Error(err))
		return false
	}
	return true
}

// ListMembers returns the tournament roster.
func (s *Service) ListMembers(ctx context.Context, tournamentID primitive.ObjectID, actorID string) ([]models.TournamentMembership, error) {
	if _, err := s.actorRole(ctx, tournamentID, actorID); err != nil {
		return nil, err
	}
	return s.memberships.ListByTournament(ctx, tournamentID, "")
}

// ListInvitations returns the tournament's invitations. Restricted to
// co-admin and above since tokens grant access.
func (s *Service) ListInvitations(ctx context.Context, tournamentID primitive.ObjectID, actorID string) ([]models.Invitation, error) {
	actor, err := s.actorRole(ctx, tournamentID, actorID)
	if err != nil {
		return nil, err
	}
	if tournamentpolicy.Rank(actor) < tournamentpolicy.Rank(models.RoleCoAdmin) {
		return nil, ErrForbidden
	}
	return s.invitations.ListByTournament(ctx, tournamentID)
}
