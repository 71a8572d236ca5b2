package auditlog_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/store/audit"
	"github.com/opencourt/tournhub/internal/app/system/auditlog"
	"github.com/opencourt/tournhub/internal/testutil"
)

func TestNilLoggerIsNoOp(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var l *auditlog.Logger
	// Must not panic.
	l.SignIn(ctx, "sub-1", "provider")
	l.SignOut(ctx, "sub-1")
	l.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventSignIn})
}

func TestConfigGating(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := audit.New(db)

	t.Run("off drops events", func(t *testing.T) {
		l := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "off", Admin: "off"})
		l.SignIn(ctx, "sub-1", "provider")

		events, err := store.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("got %d events, want 0", len(events))
		}
	})

	t.Run("log only skips the database", func(t *testing.T) {
		l := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "log", Admin: "log"})
		l.SignIn(ctx, "sub-1", "provider")

		events, err := store.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("got %d events, want 0", len(events))
		}
	})

	t.Run("all writes to the database", func(t *testing.T) {
		l := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "all", Admin: "all"})
		l.SignIn(ctx, "sub-1", "provider")

		events, err := store.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		if events[0].EventType != audit.EventSignIn || events[0].UserID != "sub-1" {
			t.Errorf("event: %+v", events[0])
		}
	})
}
