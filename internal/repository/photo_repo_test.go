package repository

import (
	"context"
	"testing"
	"time"

	"attendance/internal/model"
	"attendance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoRepository_ClaimAndSweepList(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPhotoRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "emp", model.RoleEmployee)

	claimed := &model.PhotoUpload{OwnerID: owner.ID, Kind: model.PhotoCheckIn, URL: "https://x/in.jpg", StorageKey: "in.jpg"}
	orphan := &model.PhotoUpload{OwnerID: owner.ID, Kind: model.PhotoCheckOut, URL: "https://x/out.jpg", StorageKey: "out.jpg"}
	require.NoError(t, repo.Create(ctx, claimed))
	require.NoError(t, repo.Create(ctx, orphan))
	assert.Equal(t, model.PhotoPending, claimed.Status)

	require.NoError(t, repo.Claim(ctx, owner.ID, "https://x/in.jpg"))
	require.NoError(t, repo.Claim(ctx, owner.ID, "https://elsewhere/unknown.jpg"))

	pending, err := repo.ListPendingBefore(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, orphan.ID, pending[0].ID)

	none, err := repo.ListPendingBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, repo.Delete(ctx, orphan.ID))
	pending, err = repo.ListPendingBefore(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPhotoRepository_ClaimChecksOwner(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPhotoRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", model.RoleEmployee)
	bob := testutil.CreateUser(t, db, "bob", model.RoleEmployee)

	upload := &model.PhotoUpload{OwnerID: alice.ID, Kind: model.PhotoCheckIn, URL: "https://cdn/alice.jpg", StorageKey: "alice.jpg"}
	require.NoError(t, repo.Create(ctx, upload))

	err := repo.Claim(ctx, bob.ID, "https://cdn/alice.jpg")
	assert.ErrorIs(t, err, ErrForeignPhoto)

	var reloaded model.PhotoUpload
	require.NoError(t, db.First(&reloaded, "id = ?", upload.ID).Error)
	assert.Equal(t, model.PhotoPending, reloaded.Status)

	// Claiming twice as the owner is harmless
	require.NoError(t, repo.Claim(ctx, alice.ID, "https://cdn/alice.jpg"))
	require.NoError(t, repo.Claim(ctx, alice.ID, "https://cdn/alice.jpg"))
	require.NoError(t, db.First(&reloaded, "id = ?", upload.ID).Error)
	assert.Equal(t, model.PhotoClaimed, reloaded.Status)
}

func TestAuditRepository_LogInTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	audit := NewAuditRepository(db)
	tm := NewTransactionManager(db)
	ctx := context.Background()
	admin := testutil.CreateUser(t, db, "admin", model.RoleAdmin)

	require.NoError(t, tm.RunInTx(ctx, func(txCtx context.Context) error {
		return audit.Log(txCtx, &model.AuditLog{UserID: &admin.ID, Action: model.ActionClearAttendance, Details: `{"deleted":0}`})
	}))

	// Rolled back entries never show up
	_ = tm.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, audit.Log(txCtx, &model.AuditLog{UserID: &admin.ID, Action: model.ActionCheckIn}))
		return assert.AnError
	})

	logs, total, err := audit.List(ctx, AuditFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionClearAttendance, logs[0].Action)
	require.NotNil(t, logs[0].User)
	assert.Equal(t, "admin", logs[0].User.SubjectID)
}
