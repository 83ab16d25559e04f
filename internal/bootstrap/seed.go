package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sitelift/siteauth/internal/config"
	"github.com/sitelift/siteauth/internal/domain"
	"github.com/sitelift/siteauth/internal/repository"
)

// EnsureSeedSite creates a default site row for dev/e2e at startup when
// SEED_SITE_ID is configured. The upsert is idempotent across restarts.
func EnsureSeedSite(lc fx.Lifecycle, cfg config.Config, sites repository.SiteRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureSeedSite(ctx, cfg, sites, logger)
		},
	})
}

func ensureSeedSite(ctx context.Context, cfg config.Config, sites repository.SiteRepository, logger *zap.Logger) error {
	if cfg.SeedSiteID == "" {
		return nil
	}

	seed := domain.Site{
		ID:         cfg.SeedSiteID,
		BusinessID: cfg.SeedBusinessID,
		Host:       cfg.SeedSiteHost,
		Name:       cfg.SeedSiteID,
		Status:     "ACTIVE",
	}
	if err := sites.Upsert(ctx, seed); err != nil {
		return fmt.Errorf("seed site: %w", err)
	}

	if logger != nil {
		logger.Info("seed site ensured",
			zap.String("site_id", cfg.SeedSiteID),
			zap.String("host", cfg.SeedSiteHost),
		)
	}
	return nil
}
