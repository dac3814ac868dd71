package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the directory role of a user
type Role string

const (
	RoleUser     Role = "USER"     // signed in but not verified, cannot record attendance
	RoleEmployee Role = "EMPLOYEE" // records attendance
	RoleAdmin    Role = "ADMIN"    // records attendance and manages users/records
)

// Roles lists every known role in display order
var Roles = []Role{RoleAdmin, RoleEmployee, RoleUser}

// User is the directory record keyed by the identity provider's subject id
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"subjectId"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"` // stored lower-cased
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	AvatarURL *string   `gorm:"type:text" json:"avatarUrl"`
	Role      Role      `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive  bool      `gorm:"not null;index" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Profile holds the attributes synced from the identity provider
type Profile struct {
	Email     string
	Name      string
	AvatarURL *string
}

// RoleFilter narrows CountByRole. Empty Roles counts every role.
type RoleFilter struct {
	Roles      []Role
	ActiveOnly bool
}
