package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"attendance/internal/apperr"
	"attendance/internal/logger"
	"attendance/internal/metrics"
	"attendance/internal/model"
	"attendance/internal/photostore"
	"attendance/internal/repository"

	"github.com/gabriel-vasile/mimetype"
)

const sweepBatch = 100

type UploadResult struct {
	URL  string          `json:"url"`
	Kind model.PhotoKind `json:"kind"`
}

// PhotoService stores verification photos and cleans up the ones never attached to attendance.
type PhotoService interface {
	Upload(ctx context.Context, subjectID string, kind model.PhotoKind, r io.Reader) (*UploadResult, error)
	// SweepOrphans deletes pending uploads older than the orphan TTL and returns how many went.
	SweepOrphans(ctx context.Context) (int, error)
}

type PhotoConfig struct {
	MaxBytes  int64
	OrphanTTL time.Duration
}

type photoService struct {
	users   repository.UserRepository
	photos  repository.PhotoRepository
	store   photostore.Store
	cfg     PhotoConfig
	now     func() time.Time
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewPhotoService(users repository.UserRepository, photos repository.PhotoRepository, store photostore.Store,
	cfg PhotoConfig, log logger.Logger, m *metrics.Metrics) PhotoService {
	if log == nil {
		log = logger.Nop()
	}
	return &photoService{users: users, photos: photos, store: store, cfg: cfg, now: time.Now, log: log, metrics: m}
}

func (s *photoService) Upload(ctx context.Context, subjectID string, kind model.PhotoKind, r io.Reader) (*UploadResult, error) {
	if kind != model.PhotoCheckIn && kind != model.PhotoCheckOut {
		return nil, apperr.New(apperr.KindInvalidInput, "kind must be %q or %q", model.PhotoCheckIn, model.PhotoCheckOut)
	}

	// Only users who can record attendance need a photo
	user, err := loadAttendee(ctx, s.users, subjectID)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidInput, "failed to read photo")
	}
	if len(data) == 0 {
		return nil, apperr.InvalidInput("photo is empty")
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, apperr.New(apperr.KindInvalidInput, "photo exceeds the %d MB limit", s.cfg.MaxBytes>>20)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperr.New(apperr.KindInvalidInput, "only image files are allowed, got %s", mt.String())
	}

	now := s.now()
	stored, err := s.store.Upload(ctx, bytes.NewReader(data), photostore.Object{
		Name: fmt.Sprintf("%s_%s_%d", kind, user.Email, now.UnixMilli()),
		Ext:  mt.Extension(),
		Tags: []string{"attendance", string(kind), user.Email},
	})
	if err != nil {
		s.log.Error("photo upload failed", "subject", subjectID, "kind", kind, "at", now, "error", err)
		return nil, apperr.Upstream(err, "failed to upload photo, please try again")
	}

	if err := s.photos.Create(ctx, &model.PhotoUpload{
		OwnerID:    user.ID,
		Kind:       kind,
		URL:        stored.URL,
		StorageKey: stored.Key,
	}); err != nil {
		// Unrecorded objects would never be swept, take it back now
		if delErr := s.store.Delete(ctx, stored.Key); delErr != nil {
			s.log.Warn("failed to delete unrecorded photo", "key", stored.Key, "error", delErr)
		}
		s.log.Error("photo record failed", "subject", subjectID, "at", now, "error", err)
		return nil, apperr.Upstream(err, "failed to upload photo, please try again")
	}

	return &UploadResult{URL: stored.URL, Kind: kind}, nil
}

func (s *photoService) SweepOrphans(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.OrphanTTL)
	swept := 0

	for {
		batch, err := s.photos.ListPendingBefore(ctx, cutoff, sweepBatch)
		if err != nil {
			return swept, fmt.Errorf("list orphaned photos: %w", err)
		}

		removed := 0
		for _, p := range batch {
			if err := s.store.Delete(ctx, p.StorageKey); err != nil {
				// Keep the row so the next run retries
				s.log.Warn("failed to delete orphaned photo", "key", p.StorageKey, "error", err)
				continue
			}
			if err := s.photos.Delete(ctx, p.ID); err != nil {
				return swept, fmt.Errorf("delete photo record: %w", err)
			}
			removed++
		}
		swept += removed
		s.metrics.PhotosSwept(removed)

		if len(batch) < sweepBatch || removed == 0 {
			break
		}
	}

	if swept > 0 {
		s.log.Info("orphaned photos swept", "count", swept, "cutoff", cutoff)
	}
	return swept, nil
}
