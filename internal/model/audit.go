package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audited actions.
const (
	ActionCheckIn         = "CHECK_IN"
	ActionCheckOut        = "CHECK_OUT"
	ActionClearAttendance = "CLEAR_ATTENDANCE"
	ActionUpdateUserRole  = "UPDATE_USER_ROLE"
	ActionDeactivateUser  = "DEACTIVATE_USER"
	ActionSyncUser        = "SYNC_USER"
)

// AuditActions lists every action an AuditLog may carry.
var AuditActions = []string{
	ActionCheckIn, ActionCheckOut, ActionClearAttendance,
	ActionUpdateUserRole, ActionDeactivateUser, ActionSyncUser,
}

// AuditLog records one attendance or directory change. Entries are written in the same
// transaction as the change and never updated.
type AuditLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	// UserID is the acting user; nil when the identity provider made the change.
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(64);index" json:"entityId"`
	EntityName string     `gorm:"type:varchar(255)" json:"entityName,omitempty"`
	Details    string     `gorm:"type:jsonb;not null" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Details == "" {
		a.Details = "{}"
	}
	return nil
}
