package migrate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/posterloft/posterloft-backend/pkg/config"
	"github.com/posterloft/posterloft-backend/pkg/db"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

// MaybeRunDev brings the orders schema up to date at boot, but only in dev
// with POSTERLOFT_AUTO_MIGRATE set. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if err := ValidateDir(DefaultDir); err != nil {
		return fmt.Errorf("validating migrations: %w", err)
	}

	runner, err := NewRunner(client.SQL(), DefaultDir)
	if err != nil {
		return err
	}
	before, err := runner.Version(ctx)
	if err != nil {
		return err
	}
	if err := runner.Run(ctx, CommandUp); err != nil {
		return err
	}
	after, err := runner.Version(ctx)
	if err != nil {
		return err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"dir":          DefaultDir,
		"from_version": strconv.FormatInt(before, 10),
		"to_version":   strconv.FormatInt(after, 10),
	}), "orders schema migrated")
	return nil
}
