package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/proxsync/proxsync/pkg/config"
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/log"
)

type DB struct {
	*gorm.DB
}

// gormWriter routes gorm's own logging through zerolog
type gormWriter struct {
	logger zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Debug().Msgf(format, args...)
}

func NewConnection(cfg *config.Config) (*DB, error) {
	logMode := logger.Warn
	if cfg.Sync.Debug {
		logMode = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.New(gormWriter{logger: log.WithComponent("gorm")}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logMode,
			IgnoreRecordNotFoundError: true,
		}),
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxConnections)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	return &DB{db}, nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	logger := log.WithComponent("database")

	switch cfg.Database.Driver {
	case "sqlite":
		logger.Info().Str("path", cfg.Database.Path).Msg("Opening sqlite record store")
		return sqlite.Open(cfg.Database.Path), nil
	case "postgres", "":
		dsn := buildDSN(cfg.Database.Host, cfg.Database.Port, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database, cfg.Database.SSLMode)

		debugDSN := dsn
		if cfg.Database.Password != "" {
			debugDSN = strings.Replace(dsn, fmt.Sprintf("password=%s", cfg.Database.Password), "password=***", 1)
		}
		logger.Info().Str("dsn", debugDSN).Msg("Opening postgres record store")
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// AllModels lists every table of the record store in migration order
func AllModels() []interface{} {
	return []interface{}{
		&models.Cluster{},
		&models.Connection{},
		&models.Tag{},
		&models.Site{},
		&models.Manufacturer{},
		&models.DeviceType{},
		&models.DeviceRole{},
		&models.Device{},
		&models.Interface{},
		&models.VLAN{},
		&models.VirtualMachine{},
		&models.VMInterface{},
		&models.MACAddress{},
		&models.IPAddress{},
		&models.Cable{},
		&models.CableTermination{},
		&models.CustomField{},
	}
}

func (db *DB) AutoMigrate() error {
	logger := log.WithComponent("database")
	logger.Info().Msg("Running database auto-migration...")

	if err := db.DB.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	logger.Info().Msg("Database auto-migration completed successfully")
	return nil
}

// BootstrapDefaultData ensures the shared reference data every sync relies on
func (db *DB) BootstrapDefaultData(ctx context.Context) error {
	logger := log.WithComponent("database")

	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repositories.NewCustomFieldRepository(tx).EnsureVMIDField(ctx); err != nil {
			return fmt.Errorf("failed to ensure vmid custom field: %w", err)
		}
		if _, err := repositories.NewDeviceRepository(tx).EnsureBaseline(ctx); err != nil {
			return fmt.Errorf("failed to ensure device baseline: %w", err)
		}
		logger.Info().Msg("Default data bootstrap completed successfully")
		return nil
	})
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// buildDSN constructs a PostgreSQL DSN (Data Source Name) using GORM recommended format
// DSN format: host=localhost user=gorm password=gorm dbname=gorm port=5432 sslmode=disable
func buildDSN(host string, port int, username, password, database, sslmode string) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		host, username, password, database, port, sslmode)
}
