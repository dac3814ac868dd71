package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"attendance/internal/apperr"
	"attendance/internal/identity"
	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/repository"
	"attendance/internal/websocket"

	svix "github.com/svix/svix-webhooks/go"
)

// Identity provider event types we act on
const (
	WebhookUserCreated = "user.created"
	WebhookUserUpdated = "user.updated"
	WebhookUserDeleted = "user.deleted"
)

type WebhookResult struct {
	Type    string `json:"type"`
	Handled bool   `json:"handled"`
}

// WebhookService applies signed identity provider events to the directory
type WebhookService interface {
	Handle(ctx context.Context, payload []byte, headers http.Header) (*WebhookResult, error)
}

type webhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type webhookUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	ImageURL              string `json:"image_url"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (u webhookUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

type webhookService struct {
	wh     *svix.Webhook
	tm     repository.TransactionManager
	users  repository.UserRepository
	audit  repository.AuditRepository
	log    logger.Logger
	events EventPublisher
	stats  StatsInvalidator
}

// NewWebhookService verifies payloads with a whsec_ signing secret.
func NewWebhookService(secret string, tm repository.TransactionManager, users repository.UserRepository,
	audit repository.AuditRepository, log logger.Logger, events EventPublisher, stats StatsInvalidator) (WebhookService, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("init webhook verifier: %w", err)
	}
	if events == nil {
		events = nopPublisher{}
	}
	if stats == nil {
		stats = nopInvalidator{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &webhookService{wh: wh, tm: tm, users: users, audit: audit, log: log, events: events, stats: stats}, nil
}

func (s *webhookService) Handle(ctx context.Context, payload []byte, headers http.Header) (*WebhookResult, error) {
	if err := s.wh.Verify(payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", "error", err)
		return nil, apperr.InvalidInput("invalid webhook signature")
	}

	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, apperr.InvalidInput("malformed webhook payload")
	}
	var data webhookUser
	if err := json.Unmarshal(ev.Data, &data); err != nil || data.ID == "" {
		return nil, apperr.InvalidInput("webhook payload carries no user id")
	}

	switch ev.Type {
	case WebhookUserCreated, WebhookUserUpdated:
		email := data.primaryEmail()
		if email == "" {
			return nil, apperr.InvalidInput("webhook user has no email address")
		}
		user, created, err := upsertIdentity(ctx, s.tm, s.users, s.audit, identity.Identity{
			SubjectID:   data.ID,
			Email:       email,
			DisplayName: strings.TrimSpace(data.FirstName + " " + data.LastName),
			AvatarURL:   data.ImageURL,
		})
		if err != nil {
			return nil, err
		}
		if created {
			s.events.Publish(websocket.EventDirectorySynced, user)
		}
	case WebhookUserDeleted:
		if err := s.deactivate(ctx, data.ID); err != nil {
			return nil, err
		}
	default:
		s.log.Debug("ignoring webhook event", "type", ev.Type)
		return &WebhookResult{Type: ev.Type, Handled: false}, nil
	}

	s.log.Info("webhook event applied", "type", ev.Type, "subject", data.ID)
	return &WebhookResult{Type: ev.Type, Handled: true}, nil
}

// deactivate soft-deletes a user removed at the identity provider. Unknown subjects are a no-op.
func (s *webhookService) deactivate(ctx context.Context, subjectID string) error {
	user, err := s.users.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return apperr.Upstream(err, "failed to load user")
	}
	if user == nil || !user.IsActive {
		return nil
	}

	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.users.SetActive(txCtx, user.ID, false); err != nil {
			return err
		}
		return s.audit.Log(txCtx, auditEntry(nil, model.ActionDeactivateUser, user.ID.String(), user.Email, map[string]any{
			"source": "identity_provider",
		}))
	})
	if err != nil {
		return apperr.Upstream(err, "failed to deactivate user")
	}

	s.stats.Invalidate()
	s.events.Publish(websocket.EventUserDeactivated, map[string]any{"userId": user.ID})
	return nil
}
