package repository

import (
	"context"
	"fmt"

	"attendance/internal/model"

	"gorm.io/gorm"
)

// AuditFilter narrows List. Zero fields match everything.
type AuditFilter struct {
	Action   string
	EntityID string
	Page     int
	Limit    int
}

type AuditRepository interface {
	// Log joins the caller's transaction when ctx carries one, so an entry commits or rolls
	// back together with the change it records.
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	if err := GetDB(ctx, r.db).Create(entry).Error; err != nil {
		return fmt.Errorf("write audit entry %s: %w", entry.Action, err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	q := GetDB(ctx, r.db).Model(&model.AuditLog{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.EntityID != "" {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	// Count and Find each build on the filtered statement
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.AuditLog{}, 0, nil
	}

	var entries []model.AuditLog
	err := q.Preload("User").
		Order("created_at DESC").Order("id").
		Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
