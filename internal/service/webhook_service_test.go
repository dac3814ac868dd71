package service

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"attendance/internal/apperr"
	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/repository"
	"attendance/internal/testutil"
	"attendance/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"
)

const testWebhookSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

func signedHeaders(t *testing.T, payload []byte) http.Header {
	t.Helper()
	wh, err := svix.NewWebhook(testWebhookSecret)
	require.NoError(t, err)

	now := time.Now()
	sig, err := wh.Sign("msg_test", now, payload)
	require.NoError(t, err)

	h := http.Header{}
	h.Set("svix-id", "msg_test")
	h.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	h.Set("svix-signature", sig)
	return h
}

func (f *fixture) webhookService(t *testing.T) WebhookService {
	t.Helper()
	svc, err := NewWebhookService(testWebhookSecret, f.tm, f.users, f.audit, logger.Nop(), f.events, f.stats)
	require.NoError(t, err)
	return svc
}

const userCreatedPayload = `{
  "type": "user.created",
  "data": {
    "id": "user_2abc",
    "first_name": "Minh",
    "last_name": "Tran",
    "image_url": "https://img.test/minh.png",
    "primary_email_address_id": "idn_2",
    "email_addresses": [
      {"id": "idn_1", "email_address": "old@example.com"},
      {"id": "idn_2", "email_address": "Minh@Example.com"}
    ]
  }
}`

func TestWebhook_UserCreated(t *testing.T) {
	f := newFixture(t)
	svc := f.webhookService(t)
	ctx := context.Background()
	payload := []byte(userCreatedPayload)

	res, err := svc.Handle(ctx, payload, signedHeaders(t, payload))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, WebhookUserCreated, res.Type)

	user, err := f.users.FindBySubjectID(ctx, "user_2abc")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "minh@example.com", user.Email)
	assert.Equal(t, "Minh Tran", user.Name)
	assert.Equal(t, model.RoleUser, user.Role)
	require.NotNil(t, user.AvatarURL)
	assert.Equal(t, "https://img.test/minh.png", *user.AvatarURL)
	assert.Equal(t, []string{websocket.EventDirectorySynced}, f.events.Types())
}

func TestWebhook_UserDeleted(t *testing.T) {
	f := newFixture(t)
	svc := f.webhookService(t)
	ctx := context.Background()
	emp := testutil.CreateUser(t, f.db, "user_gone", model.RoleEmployee)

	payload := []byte(`{"type":"user.deleted","data":{"id":"user_gone","deleted":true}}`)
	res, err := svc.Handle(ctx, payload, signedHeaders(t, payload))
	require.NoError(t, err)
	assert.True(t, res.Handled)

	user, err := f.users.FindByID(ctx, emp.ID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Equal(t, 1, f.stats.Count())

	logs, _, err := f.audit.List(ctx, repository.AuditFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionDeactivateUser, logs[0].Action)
	assert.Nil(t, logs[0].UserID)

	// Unknown subjects are ignored
	payload = []byte(`{"type":"user.deleted","data":{"id":"user_never_seen"}}`)
	_, err = svc.Handle(ctx, payload, signedHeaders(t, payload))
	require.NoError(t, err)
}

func TestWebhook_Rejections(t *testing.T) {
	f := newFixture(t)
	svc := f.webhookService(t)
	ctx := context.Background()
	payload := []byte(userCreatedPayload)

	// Tampered body
	headers := signedHeaders(t, payload)
	_, err := svc.Handle(ctx, []byte(`{"type":"user.created","data":{"id":"evil"}}`), headers)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	// Missing signature
	_, err = svc.Handle(ctx, payload, http.Header{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	noEmail := []byte(`{"type":"user.updated","data":{"id":"user_x","email_addresses":[]}}`)
	_, err = svc.Handle(ctx, noEmail, signedHeaders(t, noEmail))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	n, err := f.users.CountByRole(ctx, model.RoleFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	svc := f.webhookService(t)
	payload := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)

	res, err := svc.Handle(context.Background(), payload, signedHeaders(t, payload))
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, "session.created", res.Type)
}

func TestNewWebhookService_BadSecret(t *testing.T) {
	f := newFixture(t)
	_, err := NewWebhookService("whsec_!!!not-base64", f.tm, f.users, f.audit, nil, nil, nil)
	assert.Error(t, err)
}
