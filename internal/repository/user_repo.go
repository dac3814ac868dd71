package repository

import (
	"context"
	"fmt"
	"strings"

	"attendance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository is the directory store, keyed by the identity provider subject id
type UserRepository interface {
	FindBySubjectID(ctx context.Context, subjectID string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// Upsert creates the user with role USER on first touch, otherwise refreshes the profile only.
	Upsert(ctx context.Context, subjectID string, profile model.Profile) (*model.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error)
	CountByRole(ctx context.Context, filter model.RoleFilter) (int64, error)
	List(ctx context.Context, page, limit int) ([]model.UserWithAttendance, int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindBySubjectID(ctx context.Context, subjectID string) (*model.User, error) {
	var user model.User
	err := GetDB(ctx, r.db).First(&user, "subject_id = ?", subjectID).Error
	return notFoundAsNil(&user, err)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error
	return notFoundAsNil(&user, err)
}

func (r *userRepository) Upsert(ctx context.Context, subjectID string, profile model.Profile) (*model.User, error) {
	db := GetDB(ctx, r.db)
	user := &model.User{
		SubjectID: subjectID,
		Email:     strings.ToLower(strings.TrimSpace(profile.Email)),
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
		Role:      model.RoleUser,
		IsActive:  true,
	}

	// Role and active flag belong to the directory, a profile refresh never touches them
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "avatar_url", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s belongs to another account: %w", user.Email, ErrDuplicate)
		}
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	// On conflict the generated id is not the stored one, reload by subject
	var stored model.User
	if err := db.First(&stored, "subject_id = ?", subjectID).Error; err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	return &stored, nil
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.User, error) {
	return r.update(ctx, id, map[string]any{"is_active": active})
}

func (r *userRepository) SetRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	return r.update(ctx, id, map[string]any{"role": role})
}

func (r *userRepository) update(ctx context.Context, id uuid.UUID, fields map[string]any) (*model.User, error) {
	db := GetDB(ctx, r.db)
	res := db.Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var user model.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) CountByRole(ctx context.Context, filter model.RoleFilter) (int64, error) {
	var n int64
	q := GetDB(ctx, r.db).Model(&model.User{})
	if len(filter.Roles) > 0 {
		q = q.Where("role IN ?", filter.Roles)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *userRepository) List(ctx context.Context, page, limit int) ([]model.UserWithAttendance, int64, error) {
	var users []model.User
	var total int64

	db := GetDB(ctx, r.db)
	// Count total records
	if err := db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	if len(users) == 0 {
		return []model.UserWithAttendance{}, total, nil
	}

	ids := make([]uuid.UUID, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}

	type countRow struct {
		UserID uuid.UUID
		Total  int64
	}
	var rows []countRow
	if err := db.Model(&model.AttendanceRecord{}).
		Select("user_id, COUNT(*) AS total").
		Where("user_id IN ?", ids).
		Group("user_id").
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Total
	}

	result := make([]model.UserWithAttendance, len(users))
	for i := range users {
		result[i] = model.UserWithAttendance{User: users[i], AttendanceCount: counts[users[i].ID]}
	}
	return result, total, nil
}
