package service

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"attendance/internal/apperr"
	"attendance/internal/model"
	"attendance/internal/repository"
)

// identityProviderActor names the actor of changes that arrived through webhooks.
const identityProviderActor = "identity provider"

// AuditEntry is an audit row as shown to administrators.
type AuditEntry struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId,omitempty"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityID   string          `json:"entityId"`
	EntityName string          `json:"entityName,omitempty"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type AuditQuery struct {
	Action   string
	EntityID string
	Page     int
	Limit    int
}

type AuditService interface {
	List(ctx context.Context, q AuditQuery) ([]AuditEntry, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// List returns the newest entries first.
func (s *auditService) List(ctx context.Context, q AuditQuery) ([]AuditEntry, int64, error) {
	if q.Action != "" && !slices.Contains(model.AuditActions, q.Action) {
		return nil, 0, apperr.New(apperr.KindInvalidInput, "unknown audit action %q", q.Action).
			WithDetails(map[string]any{"allowedActions": model.AuditActions})
	}
	page, limit := normalizePage(q.Page, q.Limit)

	logs, total, err := s.repo.List(ctx, repository.AuditFilter{
		Action:   q.Action,
		EntityID: q.EntityID,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, 0, apperr.Upstream(err, "failed to retrieve audit logs")
	}

	out := make([]AuditEntry, 0, len(logs))
	for _, l := range logs {
		e := AuditEntry{
			ID:         l.ID.String(),
			Actor:      identityProviderActor,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    json.RawMessage(l.Details),
			CreatedAt:  l.CreatedAt,
		}
		if l.UserID != nil {
			e.ActorID = l.UserID.String()
		}
		if l.User != nil {
			e.Actor = l.User.Email
		}
		if !json.Valid(e.Details) {
			e.Details = json.RawMessage("{}")
		}
		out = append(out, e)
	}
	return out, total, nil
}
