package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhotoKind tells which half of the attendance cycle a photo documents
type PhotoKind string

const (
	PhotoCheckIn  PhotoKind = "checkin"
	PhotoCheckOut PhotoKind = "checkout"
)

type PhotoStatus string

const (
	PhotoPending PhotoStatus = "PENDING" // uploaded, not referenced by a ledger row yet
	PhotoClaimed PhotoStatus = "CLAIMED" // referenced by a check-in or check-out
)

// PhotoUpload tracks every object written to the photo store so that uploads whose
// attendance call never succeeded can be swept.
type PhotoUpload struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"ownerId"`
	Kind       PhotoKind   `gorm:"type:varchar(20);not null" json:"kind"`
	URL        string      `gorm:"type:text;not null;uniqueIndex" json:"url"`
	StorageKey string      `gorm:"type:text;not null" json:"-"`
	Status     PhotoStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt  time.Time   `gorm:"index" json:"createdAt"`
}

func (p *PhotoUpload) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
