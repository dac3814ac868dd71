package repository

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhotoRepository tracks uploaded objects until an attendance change references them.
type PhotoRepository interface {
	Create(ctx context.Context, photo *model.PhotoUpload) error
	// Claim marks the upload behind url as referenced by ownerID. Unknown urls are ignored:
	// callers may pass photos hosted elsewhere. A tracked upload of another user yields
	// ErrForeignPhoto.
	Claim(ctx context.Context, ownerID uuid.UUID, url string) error
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.PhotoUpload, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type photoRepository struct {
	db *gorm.DB
}

func NewPhotoRepository(db *gorm.DB) PhotoRepository {
	return &photoRepository{db: db}
}

func (r *photoRepository) Create(ctx context.Context, photo *model.PhotoUpload) error {
	if photo.Status == "" {
		photo.Status = model.PhotoPending
	}
	if err := GetDB(ctx, r.db).Create(photo).Error; err != nil {
		return fmt.Errorf("record photo upload: %w", err)
	}
	return nil
}

func (r *photoRepository) Claim(ctx context.Context, ownerID uuid.UUID, url string) error {
	db := GetDB(ctx, r.db)

	var photo model.PhotoUpload
	upload, err := notFoundAsNil(&photo, db.Where("url = ?", url).Take(&photo).Error)
	if err != nil {
		return fmt.Errorf("load photo upload: %w", err)
	}
	if upload == nil {
		return nil
	}
	if upload.OwnerID != ownerID {
		return ErrForeignPhoto
	}
	if upload.Status != model.PhotoPending {
		return nil
	}
	return db.Model(upload).Update("status", model.PhotoClaimed).Error
}

func (r *photoRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.PhotoUpload, error) {
	var photos []model.PhotoUpload
	// created_at is written by gorm in local time
	err := GetDB(ctx, r.db).
		Where("status = ? AND created_at < ?", model.PhotoPending, cutoff.Local()).
		Order("created_at asc").
		Limit(limit).
		Find(&photos).Error
	return photos, err
}

func (r *photoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.PhotoUpload{}, "id = ?", id).Error
}
