package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/msedata/msesync/config"
	"github.com/msedata/msesync/models"
)

// Connect opens the postgres database described by cfg, tunes the
// connection pool and migrates the schema.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Read-heavy workload: every query is a single indexed lookup, so a
	// modest pool with long-lived connections is enough.
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the issuer_data and issuer_dates tables. The
// external scraper writes the same tables; the schema here must stay
// compatible with what it produces.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.IssuerData{}, &models.IssuerDate{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
