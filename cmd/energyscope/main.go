package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/internal/access"
	"github.com/smallbiznis/energyscope/internal/audit"
	"github.com/smallbiznis/energyscope/internal/catalog"
	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/internal/config"
	"github.com/smallbiznis/energyscope/internal/hierarchy"
	"github.com/smallbiznis/energyscope/internal/identity"
	"github.com/smallbiznis/energyscope/internal/indicatorvalue"
	"github.com/smallbiznis/energyscope/internal/migration"
	"github.com/smallbiznis/energyscope/internal/observability"
	"github.com/smallbiznis/energyscope/internal/observability/metrics"
	"github.com/smallbiznis/energyscope/internal/period"
	"github.com/smallbiznis/energyscope/internal/scheduler"
	"github.com/smallbiznis/energyscope/internal/seed"
	"github.com/smallbiznis/energyscope/pkg/db"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(RegisterStore),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		hierarchy.Module,
		catalog.Module,
		period.Module,
		access.Module,
		audit.Module,
		identity.Module,
		indicatorvalue.Module,

		// Setup runs before the scheduler so its first pass sees the seeded organization.
		seed.Module,
		fx.Invoke(ApplySetup),
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeID)
}

// RegisterStore builds the store retry policy from the collection config
// read at start.
func RegisterStore(holder *config.CollectionConfigHolder, m *metrics.Metrics) repository.Config {
	return repository.Config{
		Policy: holder.Get().Retry.Policy(),
		Observer: func(table, operation string, _ uint, _ error) {
			m.RecordStoreRetry(context.Background(), table, operation)
		},
	}
}

// ApplySetup applies SETUP_FILE on start when configured.
func ApplySetup(lc fx.Lifecycle, cfg config.Config, runner *seed.Runner, log *zap.Logger) {
	if cfg.SetupFile == "" {
		return
	}
	log = log.Named("setup")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			report, err := runner.ApplyFile(ctx, cfg.SetupFile)
			if err != nil {
				return err
			}
			for _, row := range report.Failed() {
				log.Warn("setup row not applied",
					zap.String("kind", row.Kind),
					zap.String("name", row.Name),
					zap.Error(row.Err),
				)
			}
			log.Info("setup file applied",
				zap.String("file", cfg.SetupFile),
				zap.String("org_id", report.OrgID.String()),
				zap.Int("rows", len(report.Rows)),
				zap.Int("failed", len(report.Failed())),
			)
			return nil
		},
	})
}
