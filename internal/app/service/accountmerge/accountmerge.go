// internal/app/service/accountmerge/accountmerge.go

// Package accountmerge folds a guest identity into a permanent one after the
// guest signs up or signs in. Every step is idempotent, so a merge that fails
// partway is completed by retrying; the guest identity is deleted only after
// everything it owned has moved.
package accountmerge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/policy/tournamentpolicy"
	identitystore "github.com/opencourt/tournhub/internal/app/store/identities"
	membershipstore "github.com/opencourt/tournhub/internal/app/store/memberships"
	tournamentstore "github.com/opencourt/tournhub/internal/app/store/tournaments"
	"github.com/opencourt/tournhub/internal/app/system/auditlog"
	"github.com/opencourt/tournhub/internal/app/system/metrics"
	"github.com/opencourt/tournhub/internal/domain/models"
)

var (
	// ErrSameIdentity is returned when source and target are the same ID.
	ErrSameIdentity = errors.New("cannot merge an identity into itself")

	// ErrSourceNotGuest is returned when the merge source is a permanent
	// identity. Only guests are ever folded away.
	ErrSourceNotGuest = errors.New("merge source must be a guest identity")
)

type Coordinator struct {
	identities  *identitystore.Store
	tournaments *tournamentstore.Store
	memberships *membershipstore.Store
	log         *zap.Logger

	// Audit records merge outcomes. Optional; a nil logger is a no-op.
	Audit *auditlog.Logger
}

func New(identities *identitystore.Store, tournaments *tournamentstore.Store, memberships *membershipstore.Store, log *zap.Logger) *Coordinator {
	return &Coordinator{
		identities:  identities,
		tournaments: tournaments,
		memberships: memberships,
		log:         log,
	}
}

// Merge moves everything guestID owns to targetID and deletes the guest.
// Order matters: tournaments first, then memberships, then the guest record.
// Each step only touches documents still pointing at the guest, so a retry
// after a partial failure picks up where the last attempt stopped.
func (c *Coordinator) Merge(ctx context.Context, guestID, targetID string) models.MergeResult {
	res := c.merge(ctx, guestID, targetID)
	switch {
	case res.Success:
		metrics.AccountMerges.WithLabelValues("ok").Inc()
		c.Audit.AccountMerged(ctx, guestID, targetID, res.TournamentsMerged)
	case res.TournamentsMerged > 0:
		metrics.AccountMerges.WithLabelValues("partial").Inc()
		c.Audit.MergeFailed(ctx, guestID, targetID, res.Err.Error())
	default:
		metrics.AccountMerges.WithLabelValues("failed").Inc()
		c.Audit.MergeFailed(ctx, guestID, targetID, res.Err.Error())
	}
	return res
}

func (c *Coordinator) merge(ctx context.Context, guestID, targetID string) models.MergeResult {
	if guestID == targetID {
		return models.MergeResult{Err: ErrSameIdentity}
	}

	guest, err := c.identities.GetByID(ctx, guestID)
	if err != nil {
		// A vanished guest means a previous merge already finished.
		return models.MergeResult{Success: true}
	}
	if !guest.IsGuest() {
		return models.MergeResult{Err: ErrSourceNotGuest}
	}

	moved, err := c.tournaments.ReparentOwner(ctx, guestID, targetID)
	if err != nil {
		c.log.Error("merge: tournament reparent failed",
			zap.String("guest", guestID),
			zap.String("target", targetID),
			zap.Error(err))
		return models.MergeResult{Err: err}
	}

	if err := c.moveMemberships(ctx, guestID, targetID); err != nil {
		c.log.Error("merge: membership move failed",
			zap.String("guest", guestID),
			zap.String("target", targetID),
			zap.Error(err))
		return models.MergeResult{TournamentsMerged: int(moved), Err: err}
	}

	// The guest record goes last, only after everything it owned has moved.
	if err := c.identities.DeleteGuest(ctx, guestID); err != nil {
		c.log.Error("merge: guest delete failed",
			zap.String("guest", guestID),
			zap.Error(err))
		return models.MergeResult{TournamentsMerged: int(moved), Err: err}
	}

	c.log.Info("guest account merged",
		zap.String("guest", guestID),
		zap.String("target", targetID),
		zap.Int64("tournaments_moved", moved))
	return models.MergeResult{Success: true, TournamentsMerged: int(moved)}
}

// moveMemberships rewrites each guest membership to the target. When the
// target is already a member of the same tournament, the guest's membership
// is dropped and the higher of the two roles is kept.
func (c *Coordinator) moveMemberships(ctx context.Context, guestID, targetID string) error {
	list, err := c.memberships.ListByUser(ctx, guestID)
	if err != nil {
		return err
	}

	for _, m := range list {
		err := c.memberships.ReassignUserID(ctx, m.ID, targetID)
		if err == nil {
			continue
		}
		if err != membershipstore.ErrDuplicateMembership {
			return err
		}

		existing, gerr := c.memberships.Get(ctx, m.TournamentID, targetID)
		if gerr != nil {
			return gerr
		}
		if tournamentpolicy.Rank(m.Role) > tournamentpolicy.Rank(existing.Role) {
			if serr := c.memberships.SetRole(ctx, m.TournamentID, targetID, m.Role, m.TeamIDs); serr != nil {
				return serr
			}
		}
		if derr := c.memberships.DeleteByID(ctx, m.ID); derr != nil {
			return derr
		}
	}
	return nil
}
