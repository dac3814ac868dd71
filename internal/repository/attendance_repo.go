package repository

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/calendar"
	"attendance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttendanceRepository is the ledger store: one row per (user, day).
type AttendanceRepository interface {
	FindForDay(ctx context.Context, userID uuid.UUID, day calendar.Day) (*model.AttendanceRecord, error)
	// CreateCheckIn returns ErrDuplicate when the user already has a row for day.
	CreateCheckIn(ctx context.Context, userID uuid.UUID, day calendar.Day, at time.Time, photoURL *string) (*model.AttendanceRecord, error)
	// SetCheckOut closes the cycle only if it is still open, ErrNoRowsAffected otherwise.
	SetCheckOut(ctx context.Context, recordID uuid.UUID, at time.Time, photoURL *string) (*model.AttendanceRecord, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
	ListForDay(ctx context.Context, day calendar.Day, page, limit int) ([]model.AttendanceRecord, int64, error)
	CountForDay(ctx context.Context, day calendar.Day) (DayCounts, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.AttendanceRecord, int64, error)
}

// DayCounts aggregates one day of the ledger.
type DayCounts struct {
	CheckedIn     int64
	CheckedOut    int64
	WorkedSeconds float64 // summed over closed cycles
}

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

// dayWindow restricts a query to rows whose day key falls in [start, end).
func dayWindow(day calendar.Day) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("day >= ? AND day < ?", day.Start(), day.End())
	}
}

func (r *attendanceRepository) FindForDay(ctx context.Context, userID uuid.UUID, day calendar.Day) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := GetDB(ctx, r.db).
		Scopes(dayWindow(day)).
		Where("user_id = ?", userID).
		First(&rec).Error
	return notFoundAsNil(&rec, err)
}

func (r *attendanceRepository) CreateCheckIn(ctx context.Context, userID uuid.UUID, day calendar.Day, at time.Time, photoURL *string) (*model.AttendanceRecord, error) {
	rec := &model.AttendanceRecord{
		UserID:       userID,
		Day:          day.Start(),
		CheckInTime:  at,
		CheckInPhoto: photoURL,
	}
	if err := GetDB(ctx, r.db).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create check-in: %w", err)
	}
	return rec, nil
}

func (r *attendanceRepository) SetCheckOut(ctx context.Context, recordID uuid.UUID, at time.Time, photoURL *string) (*model.AttendanceRecord, error) {
	db := GetDB(ctx, r.db)
	res := db.Model(&model.AttendanceRecord{}).
		Where("id = ? AND check_out_time IS NULL", recordID).
		Updates(map[string]any{
			"check_out_time":  at,
			"check_out_photo": photoURL,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("set check-out: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoRowsAffected
	}

	var rec model.AttendanceRecord
	if err := db.First(&rec, "id = ?", recordID).Error; err != nil {
		return nil, fmt.Errorf("reload record: %w", err)
	}
	return &rec, nil
}

func (r *attendanceRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := GetDB(ctx, r.db).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.AttendanceRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete attendance records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *attendanceRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.AttendanceRecord{}).Count(&n).Error
	return n, err
}

func (r *attendanceRepository) ListForDay(ctx context.Context, day calendar.Day, page, limit int) ([]model.AttendanceRecord, int64, error) {
	var records []model.AttendanceRecord
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AttendanceRecord{}).Scopes(dayWindow(day)).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("User").Scopes(dayWindow(day)).
		Order("check_in_time asc").Offset(offset).Limit(limit).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *attendanceRepository) CountForDay(ctx context.Context, day calendar.Day) (DayCounts, error) {
	var records []model.AttendanceRecord
	if err := GetDB(ctx, r.db).
		Select("check_in_time", "check_out_time").
		Scopes(dayWindow(day)).
		Find(&records).Error; err != nil {
		return DayCounts{}, err
	}

	// Worked time is summed in Go, date arithmetic differs between postgres and sqlite
	var c DayCounts
	for i := range records {
		c.CheckedIn++
		if records[i].CheckOutTime != nil {
			c.CheckedOut++
			c.WorkedSeconds += records[i].WorkedDuration().Seconds()
		}
	}
	return c, nil
}

func (r *attendanceRepository) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.AttendanceRecord, int64, error) {
	var records []model.AttendanceRecord
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AttendanceRecord{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Where("user_id = ?", userID).
		Order("day desc").Offset(offset).Limit(limit).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
