package service

import (
	"context"
	"testing"

	"attendance/internal/apperr"
	"attendance/internal/identity"
	"attendance/internal/model"
	"attendance/internal/repository"
	"attendance/internal/testutil"
	"attendance/internal/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_CreatesUserWithDefaultRole(t *testing.T) {
	f := newFixture(t)
	svc := f.userService()
	ctx := context.Background()

	user, err := svc.Sync(ctx, identity.Identity{SubjectID: "sub-1", Email: " Alice@Example.COM ", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.Name)

	// Second sync updates the profile only
	_, err = f.users.SetRole(ctx, user.ID, model.RoleEmployee)
	require.NoError(t, err)
	again, err := svc.Sync(ctx, identity.Identity{SubjectID: "sub-1", Email: "alice@example.com", DisplayName: "Alice B"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, model.RoleEmployee, again.Role)
	assert.Equal(t, "Alice B", again.Name)

	logs, total, err := f.audit.List(ctx, repository.AuditFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "only the first sync is audited")
	assert.Equal(t, model.ActionSyncUser, logs[0].Action)
	assert.Equal(t, []string{websocket.EventDirectorySynced}, f.events.Types())
}

func TestSync_Validation(t *testing.T) {
	f := newFixture(t)
	svc := f.userService()
	ctx := context.Background()

	_, err := svc.Sync(ctx, identity.Identity{SubjectID: "", Email: "a@example.com"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.Sync(ctx, identity.Identity{SubjectID: "sub-1", Email: "shared@example.com"})
	require.NoError(t, err)
	_, err = svc.Sync(ctx, identity.Identity{SubjectID: "sub-2", Email: "shared@example.com"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSync_DoesNotReactivate(t *testing.T) {
	f := newFixture(t)
	svc := f.userService()
	ctx := context.Background()
	gone := testutil.CreateUser(t, f.db, "gone", model.RoleEmployee)
	_, err := f.users.SetActive(ctx, gone.ID, false)
	require.NoError(t, err)

	user, err := svc.Sync(ctx, identity.Identity{SubjectID: "gone", Email: gone.Email})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
}

func TestPermissions(t *testing.T) {
	f := newFixture(t)
	svc := f.userService()
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, "admin", model.RoleAdmin)
	viewer := testutil.CreateUser(t, f.db, "viewer", model.RoleUser)

	res, err := svc.Permissions(ctx, admin.SubjectID)
	require.NoError(t, err)
	assert.True(t, res.CanAttendance)
	assert.True(t, res.IsActive)

	res, err = svc.Permissions(ctx, viewer.SubjectID)
	require.NoError(t, err)
	assert.False(t, res.CanAttendance)
	assert.Contains(t, res.Reason, "EMPLOYEE")

	_, err = f.users.SetActive(ctx, admin.ID, false)
	require.NoError(t, err)
	res, err = svc.Permissions(ctx, admin.SubjectID)
	require.NoError(t, err)
	assert.False(t, res.CanAttendance)
	assert.False(t, res.IsActive)
	assert.Equal(t, model.RoleAdmin, res.Role)

	_, err = svc.Permissions(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetRole(t *testing.T) {
	f := newFixture(t)
	svc := f.userService()
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, "admin", model.RoleAdmin)
	newbie := testutil.CreateUser(t, f.db, "newbie", model.RoleUser)

	updated, err := svc.SetRole(ctx, admin.SubjectID, newbie.ID, UpdateRoleRequest{Role: "EMPLOYEE"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleEmployee, updated.Role)

	// The promotion is effective immediately, with no token refresh
	attendance := f.attendanceService()
	_, err = attendance.CheckIn(ctx, newbie.SubjectID, CheckInRequest{})
	require.NoError(t, err)

	logs, _, err := f.audit.List(ctx, repository.AuditFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	var found bool
	for _, l := range logs {
		if l.Action == model.ActionUpdateUserRole {
			found = true
			assert.Contains(t, l.Details, `"from":"USER"`)
			assert.Contains(t, l.Details, `"to":"EMPLOYEE"`)
		}
	}
	assert.True(t, found)
	assert.Contains(t, f.events.Types(), websocket.EventUserRoleChanged)
}

func TestSetRole_Guards(t *testing.T) {
	f := newFixture(t)
	svc := f.userService()
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, "admin", model.RoleAdmin)
	emp := testutil.CreateUser(t, f.db, "emp", model.RoleEmployee)

	tests := []struct {
		name    string
		acting  string
		target  uuid.UUID
		role    string
		wantErr error
	}{
		{"non admin", emp.SubjectID, admin.ID, "USER", apperr.ErrForbidden},
		{"own role", admin.SubjectID, admin.ID, "EMPLOYEE", apperr.ErrForbidden},
		{"unknown role", admin.SubjectID, emp.ID, "MANAGER", apperr.ErrInvalidInput},
		{"lower case role", admin.SubjectID, emp.ID, "user", apperr.ErrInvalidInput},
		{"padded role", admin.SubjectID, emp.ID, " USER ", apperr.ErrInvalidInput},
		{"missing target", admin.SubjectID, uuid.New(), "USER", apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetRole(ctx, tt.acting, tt.target, UpdateRoleRequest{Role: tt.role})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	reloaded, err := f.users.FindByID(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleEmployee, reloaded.Role)
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t)
	svc := f.userService()
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, "admin", model.RoleAdmin)
	emp := testutil.CreateUser(t, f.db, "emp", model.RoleEmployee)

	_, err := svc.Deactivate(ctx, admin.SubjectID, admin.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := svc.Deactivate(ctx, admin.SubjectID, emp.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = f.attendanceService().CheckIn(ctx, emp.SubjectID, CheckInRequest{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// A deactivated admin loses admin rights as well
	other := testutil.CreateUser(t, f.db, "other", model.RoleAdmin)
	_, err = svc.Deactivate(ctx, other.SubjectID, admin.ID)
	require.NoError(t, err)
	_, err = svc.RequireAdmin(ctx, admin.SubjectID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestListAndStats(t *testing.T) {
	f := newFixture(t)
	svc := f.userService()
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "admin", model.RoleAdmin)
	testutil.CreateUser(t, f.db, "emp1", model.RoleEmployee)
	emp2 := testutil.CreateUser(t, f.db, "emp2", model.RoleEmployee)
	testutil.CreateUser(t, f.db, "viewer", model.RoleUser)
	_, err := f.users.SetActive(ctx, emp2.ID, false)
	require.NoError(t, err)

	users, total, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, users, 4)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.AttendanceEligible)
	assert.Equal(t, int64(1), stats.ByRole[model.RoleEmployee])
	assert.Equal(t, int64(1), stats.ByRole[model.RoleUser])
}
