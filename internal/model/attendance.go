package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttendanceState is the per-(user, day) position in the attendance cycle
type AttendanceState string

const (
	StateNotCheckedIn AttendanceState = "NOT_CHECKED_IN"
	StateCheckedIn    AttendanceState = "CHECKED_IN"
	StateCheckedOut   AttendanceState = "CHECKED_OUT"
)

// AttendanceRecord is one ledger row: a user's check-in and optional check-out on one calendar day.
// (user_id, day) is unique at the storage level.
type AttendanceRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_user_day,priority:1" json:"userId"`
	User          *User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"user,omitempty"`
	Day           time.Time  `gorm:"not null;uniqueIndex:idx_attendance_user_day,priority:2;index" json:"date"` // local midnight
	CheckInTime   time.Time  `gorm:"not null" json:"checkInTime"`
	CheckInPhoto  *string    `gorm:"type:text" json:"checkInPhoto"`
	CheckOutTime  *time.Time `json:"checkOutTime"`
	CheckOutPhoto *string    `gorm:"type:text" json:"checkOutPhoto"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (a *AttendanceRecord) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// State derives the cycle state from the row. A nil record means not checked in.
func (a *AttendanceRecord) State() AttendanceState {
	switch {
	case a == nil:
		return StateNotCheckedIn
	case a.CheckOutTime != nil:
		return StateCheckedOut
	default:
		return StateCheckedIn
	}
}

// WorkedDuration is the span between check-in and check-out, zero while the cycle is open.
func (a *AttendanceRecord) WorkedDuration() time.Duration {
	if a == nil || a.CheckOutTime == nil {
		return 0
	}
	return a.CheckOutTime.Sub(a.CheckInTime)
}
