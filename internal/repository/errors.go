package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrDuplicate is returned when a write collides with a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNoRowsAffected is returned by conditional updates whose condition no longer holds.
	ErrNoRowsAffected = errors.New("no rows affected")
	// ErrForeignPhoto is returned when a tracked upload is claimed by someone other than its owner.
	ErrForeignPhoto = errors.New("photo belongs to another user")
)

const pgUniqueViolation = "23505"

// isUniqueViolation recognizes unique-constraint failures across the drivers we run on.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// sqlite without error translation
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFoundAsNil turns gorm.ErrRecordNotFound into a nil result.
func notFoundAsNil[T any](v *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
