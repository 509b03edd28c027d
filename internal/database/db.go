package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/config"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

var DB *gorm.DB

// Init opens the database named by the configured URL and runs auto-migration.
// sqlite:// and postgres:// URLs are supported.
func Init(cfg *config.Config) (*gorm.DB, error) {
	databaseURL := cfg.DatabaseURL

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.HasPrefix(databaseURL, "postgresql://"), strings.HasPrefix(databaseURL, "postgres://"):
		dialector = postgres.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database URL format: %s", databaseURL)
	}

	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.Debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := AutoMigrate(DB); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	log.Info("database initialized", "url", databaseURL)
	return DB, nil
}

// AutoMigrate runs GORM auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.MigrationTask{},
		&models.TaskNode{},
		&models.MigrationJob{},
		&models.Finding{},
		&models.ContentPackage{},
		&models.ContentFlow{},
		&models.ContentValueMapping{},
		&models.ContentValMapSchema{},
		&models.ContentKeystoreEntry{},
		&models.ContentCredential{},
		&models.ContentOAuthCredential{},
		&models.ContentNumberRange{},
		&models.ContentAccessPolicy{},
		&models.ContentPolicyReference{},
		&models.ContentCustomTag{},
		&models.ContentTagConfiguration{},
		&models.ContentJMSBroker{},
		&models.ContentVariable{},
		&models.ContentDataStore{},
		&models.ContentDataStoreEntry{},
		&models.ContentCertUserMapping{},
		&models.ContentCertMappingRole{},
	)
}

// Close closes the database connection.
func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}
