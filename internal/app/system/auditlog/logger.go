// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/store/audit"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (sign-in, sign-out,
	// password change, merge).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for membership management events (role change,
	// removal, transfer, invitations).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
// A nil *Logger is a valid no-op, so callers never need to guard.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.TournamentID != nil {
		fields = append(fields, zap.String("tournament_id", event.TournamentID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication events ---

// SignIn logs a completed provider sign-in.
func (l *Logger) SignIn(ctx context.Context, userID, method string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSignIn,
		UserID:    userID,
		Success:   true,
		Details:   map[string]string{"method": method},
	})
}

// GuestStarted logs the start of an anonymous guest session.
func (l *Logger) GuestStarted(ctx context.Context, guestID string, resumed bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventGuestStarted,
		UserID:    guestID,
		Success:   true,
		Details:   map[string]string{"resumed": strconv.FormatBool(resumed)},
	})
}

// SignOut logs a sign-out.
func (l *Logger) SignOut(ctx context.Context, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSignOut,
		UserID:    userID,
		Success:   true,
	})
}

// PasswordChanged logs a completed password update.
func (l *Logger) PasswordChanged(ctx context.Context, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPasswordChanged,
		UserID:    userID,
		Success:   true,
	})
}

// AccountMerged logs a completed guest-to-permanent merge.
func (l *Logger) AccountMerged(ctx context.Context, guestID, targetID string, tournamentsMoved int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventAccountMerged,
		UserID:    targetID,
		ActorID:   guestID,
		Success:   true,
		Details:   map[string]string{"tournaments_moved": strconv.Itoa(tournamentsMoved)},
	})
}

// MergeFailed logs a merge that did not complete. Partial merges are
// retriable; the reason records how far it got.
func (l *Logger) MergeFailed(ctx context.Context, guestID, targetID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventMergeFailed,
		UserID:        targetID,
		ActorID:       guestID,
		Success:       false,
		FailureReason: reason,
	})
}

// --- Membership management events ---

// RoleChanged logs a member role change.
func (l *Logger) RoleChanged(ctx context.Context, tournamentID primitive.ObjectID, actorID, targetID, from, to string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryAdmin,
		EventType:    audit.EventRoleChanged,
		TournamentID: &tournamentID,
		ActorID:      actorID,
		UserID:       targetID,
		Success:      true,
		Details:      map[string]string{"from": from, "to": to},
	})
}

// MemberRemoved logs a membership removal.
func (l *Logger) MemberRemoved(ctx context.Context, tournamentID primitive.ObjectID, actorID, targetID string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryAdmin,
		EventType:    audit.EventMemberRemoved,
		TournamentID: &tournamentID,
		ActorID:      actorID,
		UserID:       targetID,
		Success:      true,
	})
}

// OwnershipTransferred logs a completed ownership transfer.
func (l *Logger) OwnershipTransferred(ctx context.Context, tournamentID primitive.ObjectID, fromID, toID string, repaired bool) {
	eventType := audit.EventOwnershipTransferred
	if repaired {
		eventType = audit.EventTransferRepaired
	}
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryAdmin,
		EventType:    eventType,
		TournamentID: &tournamentID,
		ActorID:      fromID,
		UserID:       toID,
		Success:      true,
	})
}

// TransferIncomplete logs a transfer that failed partway and could not be
// repaired in place. The tournament may briefly show two owners.
func (l *Logger) TransferIncomplete(ctx context.Context, tournamentID primitive.ObjectID, actorID, successorID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAdmin,
		EventType:     audit.EventTransferIncomplete,
		TournamentID:  &tournamentID,
		ActorID:       actorID,
		UserID:        successorID,
		Success:       false,
		FailureReason: reason,
	})
}

// InvitationCreated logs a minted invitation.
func (l *Logger) InvitationCreated(ctx context.Context, tournamentID primitive.ObjectID, actorID, role string, maxUses int) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryAdmin,
		EventType:    audit.EventInvitationCreated,
		TournamentID: &tournamentID,
		ActorID:      actorID,
		Success:      true,
		Details:      map[string]string{"role": role, "max_uses": strconv.Itoa(maxUses)},
	})
}

// InvitationRevoked logs a revoked invitation.
func (l *Logger) InvitationRevoked(ctx context.Context, tournamentID primitive.ObjectID, actorID string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryAdmin,
		EventType:    audit.EventInvitationRevoked,
		TournamentID: &tournamentID,
		ActorID:      actorID,
		Success:      true,
	})
}

// InvitationRedeemed logs a successful redemption.
func (l *Logger) InvitationRedeemed(ctx context.Context, tournamentID primitive.ObjectID, userID, role string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryAdmin,
		EventType:    audit.EventInvitationRedeemed,
		TournamentID: &tournamentID,
		UserID:       userID,
		Success:      true,
		Details:      map[string]string{"role": role},
	})
}
