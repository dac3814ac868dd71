package database

import (
	"fmt"

	"attendance/internal/logger"
	"attendance/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM and migrates the schema
func NewConnection(dsn string, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// Unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		// The (user_id, day) unique index is what guards double check-in, so a failed migration is fatal
		return nil, err
	}
	log.Info("database schema migrated")

	return db, nil
}

// Migrate creates or updates the tables and indexes of every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.AttendanceRecord{},
		&model.AuditLog{},
		&model.PhotoUpload{},
	); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	return nil
}
