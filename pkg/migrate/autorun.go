package migrate

import (
	"context"
	"fmt"

	"github.com/chopmart/chopmart-backend/pkg/config"
	"github.com/chopmart/chopmart-backend/pkg/db"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in dev when
// CHOPMART_AUTO_MIGRATE is on.
// SQLite mode is skipped because the files target Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate || cfg.FeatureFlags.UseSQLite {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	fsys := Embedded()
	count, err := ValidateFS(fsys)
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "migrations": count})
	logg.Info(ctx, "migrate.autorun_started")
	if err := Run(ctx, logg, sqlDB, fsys, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.autorun_completed")
	return nil
}
