package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accessdomain "github.com/smallbiznis/energyscope/internal/access/domain"
	auditdomain "github.com/smallbiznis/energyscope/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/energyscope/internal/catalog/domain"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	valuedomain "github.com/smallbiznis/energyscope/internal/indicatorvalue/domain"
	perioddomain "github.com/smallbiznis/energyscope/internal/period/domain"
	"github.com/smallbiznis/energyscope/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&hierarchydomain.Organization{},
		&hierarchydomain.Subdivision{},
		&hierarchydomain.Subsidiary{},
		&hierarchydomain.Site{},
		&catalogdomain.Issue{},
		&catalogdomain.Criterion{},
		&catalogdomain.Indicator{},
		&catalogdomain.Process{},
		&catalogdomain.ProcessIndicator{},
		&catalogdomain.ProcessCriterion{},
		&catalogdomain.OrganizationSelection{},
		&perioddomain.CollectionPeriod{},
		&accessdomain.UserAssignment{},
		&accessdomain.UserProcess{},
		&valuedomain.IndicatorValue{},
		&auditdomain.AuditLog{},
	}
}

// Migrate applies the embedded SQL schema on postgres and falls back to
// gorm AutoMigrate for the other dialects.
func Migrate(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
	if strings.EqualFold(strings.TrimSpace(cfg.Type), "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("driver", "postgres"))
		return nil
	}

	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("schema migrated", zap.String("driver", cfg.Type))
	return nil
}

// RunMigrations applies every pending embedded migration.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
