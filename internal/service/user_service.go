package service

import (
	"context"
	"errors"
	"strings"

	"attendance/internal/apperr"
	"attendance/internal/identity"
	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/permission"
	"attendance/internal/repository"
	"attendance/internal/websocket"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// PermissionsResponse is the caller's capability set as derived from the directory
type PermissionsResponse struct {
	permission.Capabilities
	IsActive bool   `json:"isActive"`
	Reason   string `json:"reason"`
}

// UserService defines the business logic of the user directory
type UserService interface {
	// Sync upserts the caller from identity provider attributes. New users get role USER.
	Sync(ctx context.Context, id identity.Identity) (*model.User, error)
	Me(ctx context.Context, subjectID string) (*model.User, error)
	Permissions(ctx context.Context, subjectID string) (*PermissionsResponse, error)
	RequireAdmin(ctx context.Context, subjectID string) (*model.User, error)
	List(ctx context.Context, page, limit int) ([]model.UserWithAttendance, int64, error)
	SetRole(ctx context.Context, actingSubjectID string, targetID uuid.UUID, req UpdateRoleRequest) (*model.User, error)
	Deactivate(ctx context.Context, actingSubjectID string, targetID uuid.UUID) (*model.User, error)
	Stats(ctx context.Context) (*model.UserStats, error)
}

type userService struct {
	tm     repository.TransactionManager
	users  repository.UserRepository
	audit  repository.AuditRepository
	log    logger.Logger
	events EventPublisher
	stats  StatsInvalidator
}

// NewUserService returns a new instance of UserService
func NewUserService(tm repository.TransactionManager, users repository.UserRepository, audit repository.AuditRepository,
	log logger.Logger, events EventPublisher, stats StatsInvalidator) UserService {
	if events == nil {
		events = nopPublisher{}
	}
	if stats == nil {
		stats = nopInvalidator{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &userService{tm: tm, users: users, audit: audit, log: log, events: events, stats: stats}
}

func (s *userService) Sync(ctx context.Context, id identity.Identity) (*model.User, error) {
	if strings.TrimSpace(id.SubjectID) == "" || strings.TrimSpace(id.Email) == "" {
		return nil, apperr.InvalidInput("identity must carry a subject id and an email")
	}

	user, created, err := upsertIdentity(ctx, s.tm, s.users, s.audit, id)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("user synced for the first time", "subject", id.SubjectID, "email", user.Email)
		s.events.Publish(websocket.EventDirectorySynced, user)
	}
	return user, nil
}

// upsertIdentity is shared by the first-touch sync call and the identity provider webhook.
func upsertIdentity(ctx context.Context, tm repository.TransactionManager, users repository.UserRepository,
	audit repository.AuditRepository, id identity.Identity) (*model.User, bool, error) {
	var avatar *string
	if id.AvatarURL != "" {
		avatar = &id.AvatarURL
	}
	profile := model.Profile{Email: id.Email, Name: id.DisplayName, AvatarURL: avatar}
	if profile.Name == "" {
		profile.Name = id.Email
	}

	var user *model.User
	var created bool
	err := tm.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := users.FindBySubjectID(txCtx, id.SubjectID)
		if err != nil {
			return err
		}
		created = existing == nil

		user, err = users.Upsert(txCtx, id.SubjectID, profile)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		return audit.Log(txCtx, auditEntry(&user.ID, model.ActionSyncUser, user.ID.String(), user.Email, map[string]any{
			"subjectId": id.SubjectID,
			"role":      user.Role,
		}))
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, false, apperr.InvalidInput("email is already linked to another account")
	}
	if err != nil {
		return nil, false, apperr.Upstream(err, "failed to sync user")
	}
	return user, created, nil
}

func (s *userService) Me(ctx context.Context, subjectID string) (*model.User, error) {
	user, err := s.users.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load user")
	}
	if user == nil {
		return nil, apperr.NotFound("user not found, sync your profile first")
	}
	return user, nil
}

func (s *userService) Permissions(ctx context.Context, subjectID string) (*PermissionsResponse, error) {
	user, err := s.Me(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	res := &PermissionsResponse{
		Capabilities: permission.For(user.Role),
		IsActive:     user.IsActive,
		Reason:       permission.Check(user.Role).Reason,
	}
	if !user.IsActive {
		// A deactivated account keeps its role but loses every capability
		res.Capabilities = permission.Capabilities{Role: user.Role}
		res.Reason = "your account has been deactivated"
	}
	return res, nil
}

func (s *userService) RequireAdmin(ctx context.Context, subjectID string) (*model.User, error) {
	return requireActiveAdmin(ctx, s.users, subjectID)
}

func (s *userService) List(ctx context.Context, page, limit int) ([]model.UserWithAttendance, int64, error) {
	page, limit = normalizePage(page, limit)

	users, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, 0, apperr.Upstream(err, "failed to list users")
	}
	return users, total, nil
}

func (s *userService) SetRole(ctx context.Context, actingSubjectID string, targetID uuid.UUID, req UpdateRoleRequest) (*model.User, error) {
	admin, err := requireActiveAdmin(ctx, s.users, actingSubjectID)
	if err != nil {
		return nil, err
	}
	if admin.ID == targetID {
		return nil, apperr.Forbidden("you cannot change your own role")
	}

	// Only the exact enum spelling is accepted
	role := model.Role(req.Role)
	if !permission.ValidRole(role) {
		return nil, apperr.New(apperr.KindInvalidInput, "invalid role %q, must be one of %s, %s or %s",
			req.Role, model.RoleAdmin, model.RoleEmployee, model.RoleUser)
	}

	target, err := s.findTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	previous := target.Role

	var updated *model.User
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.users.SetRole(txCtx, targetID, role)
		if err != nil {
			return err
		}
		return s.audit.Log(txCtx, auditEntry(&admin.ID, model.ActionUpdateUserRole, target.ID.String(), target.Email, map[string]any{
			"from": previous,
			"to":   role,
		}))
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		s.log.Error("failed to update user role", "admin", admin.Email, "target", targetID, "error", err)
		return nil, apperr.Upstream(err, "failed to update user role")
	}

	s.stats.Invalidate()
	s.events.Publish(websocket.EventUserRoleChanged, map[string]any{"userId": updated.ID, "from": previous, "to": role})
	return updated, nil
}

func (s *userService) Deactivate(ctx context.Context, actingSubjectID string, targetID uuid.UUID) (*model.User, error) {
	admin, err := requireActiveAdmin(ctx, s.users, actingSubjectID)
	if err != nil {
		return nil, err
	}
	if admin.ID == targetID {
		return nil, apperr.Forbidden("you cannot deactivate your own account")
	}

	target, err := s.findTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	var updated *model.User
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		// Soft delete: attendance history stays untouched
		updated, err = s.users.SetActive(txCtx, targetID, false)
		if err != nil {
			return err
		}
		return s.audit.Log(txCtx, auditEntry(&admin.ID, model.ActionDeactivateUser, target.ID.String(), target.Email, map[string]any{
			"wasActive": target.IsActive,
		}))
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		s.log.Error("failed to deactivate user", "admin", admin.Email, "target", targetID, "error", err)
		return nil, apperr.Upstream(err, "failed to deactivate user")
	}

	s.stats.Invalidate()
	s.events.Publish(websocket.EventUserDeactivated, map[string]any{"userId": updated.ID})
	return updated, nil
}

func (s *userService) Stats(ctx context.Context) (*model.UserStats, error) {
	total, err := s.users.CountByRole(ctx, model.RoleFilter{ActiveOnly: true})
	if err != nil {
		return nil, apperr.Upstream(err, "failed to count users")
	}
	eligible, err := s.users.CountByRole(ctx, model.RoleFilter{Roles: permission.AttendanceRoles, ActiveOnly: true})
	if err != nil {
		return nil, apperr.Upstream(err, "failed to count users")
	}

	byRole := make(map[model.Role]int64, len(model.Roles))
	for _, role := range model.Roles {
		n, err := s.users.CountByRole(ctx, model.RoleFilter{Roles: []model.Role{role}, ActiveOnly: true})
		if err != nil {
			return nil, apperr.Upstream(err, "failed to count users")
		}
		byRole[role] = n
	}

	return &model.UserStats{TotalUsers: total, AttendanceEligible: eligible, ByRole: byRole}, nil
}

func (s *userService) findTarget(ctx context.Context, id uuid.UUID) (*model.User, error) {
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load user")
	}
	if target == nil {
		return nil, apperr.NotFound("user not found")
	}
	return target, nil
}
