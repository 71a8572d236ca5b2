// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	identitystore "github.com/opencourt/tournhub/internal/app/store/identities"
	"github.com/opencourt/tournhub/internal/app/system/timeouts"
	"github.com/opencourt/tournhub/internal/domain/models"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeout overrides applied from environment", zap.Int("count", n))
	}

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, logger); err != nil {
			return err
		}
	}

	return nil
}

// ensureAdmin promotes the configured identity to the admin role, or logs
// when no account with that email has signed in yet. Identities are created
// by the provider callback, so startup never fabricates one.
func ensureAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	store := identitystore.New(deps.MongoDatabase)

	ident, err := store.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		logger.Info("admin account has not signed in yet; will promote on first sign-in",
			zap.String("email", email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}

	if ident.GlobalRole == models.GlobalRoleAdmin {
		return nil
	}
	if ident.IsGuest() {
		return fmt.Errorf("admin email %q resolves to a guest identity", email)
	}

	if err := store.SetGlobalRole(ctx, ident.ID, models.GlobalRoleAdmin); err != nil {
		return fmt.Errorf("admin promotion: %w", err)
	}
	logger.Info("promoted identity to admin",
		zap.String("identity_id", ident.ID),
		zap.String("email", email))
	return nil
}
