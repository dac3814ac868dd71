// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"attendance/internal/database"
	"attendance/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ICT is the fixed +07:00 zone tests bucket days in.
var ICT = time.FixedZone("ICT", 7*60*60)

// NewDB opens a migrated SQLite database in a temp dir. It is closed when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "attendance.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes writers; concurrent tests still race at the application level
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts an active user with role and returns it.
func CreateUser(t *testing.T, db *gorm.DB, subjectID string, role model.Role) *model.User {
	t.Helper()

	user := &model.User{
		SubjectID: subjectID,
		Email:     subjectID + "@example.com",
		Name:      "User " + subjectID,
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)
	return user
}

// At returns the instant hh:mm on 2026-03-02 (plus addDays) in ICT.
func At(addDays, hh, mm int) time.Time {
	return time.Date(2026, time.March, 2+addDays, hh, mm, 0, 0, ICT)
}
