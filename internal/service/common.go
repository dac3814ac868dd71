package service

import (
	"context"
	"encoding/json"

	"attendance/internal/apperr"
	"attendance/internal/model"
	"attendance/internal/permission"
	"attendance/internal/repository"
	"attendance/pkg/pagination"

	"github.com/google/uuid"
)

// EventPublisher pushes live updates to admin dashboards. Implemented by the websocket hub.
type EventPublisher interface {
	Publish(eventType string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

// StatsInvalidator drops cached aggregates after the ledger changes.
type StatsInvalidator interface {
	Invalidate()
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate() {}

// normalizePage applies the HTTP layer's clamping to callers that bypass it.
func normalizePage(page, limit int) (int, int) {
	p := pagination.New(page, limit)
	return p.Page, p.Limit
}

// loadActiveUser resolves a session subject to an active directory user.
func loadActiveUser(ctx context.Context, users repository.UserRepository, subjectID string) (*model.User, error) {
	user, err := users.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load user")
	}
	if user == nil {
		return nil, apperr.NotFound("user not found, sync your profile first")
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("your account has been deactivated")
	}
	return user, nil
}

// loadAttendee is loadActiveUser plus the attendance permission check.
func loadAttendee(ctx context.Context, users repository.UserRepository, subjectID string) (*model.User, error) {
	user, err := loadActiveUser(ctx, users, subjectID)
	if err != nil {
		return nil, err
	}
	if res := permission.Check(user.Role); !res.Allowed {
		return nil, apperr.New(apperr.KindForbidden, "%s", res.Reason).WithDetails(map[string]any{
			"role":         res.Role,
			"allowedRoles": res.AllowedRoles,
		})
	}
	return user, nil
}

// requireActiveAdmin re-reads the role from the directory; token claims are never trusted for it.
func requireActiveAdmin(ctx context.Context, users repository.UserRepository, subjectID string) (*model.User, error) {
	user, err := users.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load user")
	}
	if user == nil || !user.IsActive || !permission.IsAdminRole(user.Role) {
		return nil, apperr.New(apperr.KindForbidden, "only %s users can perform this action", model.RoleAdmin)
	}
	return user, nil
}

// auditEntry builds an audit row, details are stored as a JSON document.
func auditEntry(actor *uuid.UUID, action, entityID, entityName string, details map[string]any) *model.AuditLog {
	raw, _ := json.Marshal(details)
	return &model.AuditLog{
		UserID:     actor,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(raw),
	}
}
