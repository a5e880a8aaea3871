package migration

import (
	"github.com/smallbiznis/energyscope/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		return Migrate(conn, cfg, log.Named("migration"))
	}),
)
