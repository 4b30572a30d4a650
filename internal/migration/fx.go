package migration

import (
	"github.com/smallbiznis/fieldrunner/internal/config"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	webhookdomain "github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date on startup. Postgres runs the embedded
// SQL migrations; the other dialects are for local use and get AutoMigrate.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if !cfg.DBAutoMigrate {
		log.Info("schema migrations disabled")
		return nil
	}

	if conn.Dialector.Name() != "postgres" {
		log.Info("auto migrating schema", zap.String("dialect", conn.Dialector.Name()))
		return conn.AutoMigrate(Models()...)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	if version, dirty, err := Version(sqlDB); err == nil {
		log.Info("schema migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

// Models lists every table the service owns.
func Models() []any {
	return append(directorydomain.Models(), &webhookdomain.Event{})
}
