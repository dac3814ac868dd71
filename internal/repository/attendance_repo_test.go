package repository

import (
	"context"
	"testing"
	"time"

	"attendance/internal/calendar"
	"attendance/internal/model"
	"attendance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAttendanceRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAttendanceRepository(db)
	user := testutil.CreateUser(t, db, "emp_1", model.RoleEmployee)
	ctx := context.Background()
	day := calendar.DayOf(testutil.At(0, 8, 30), testutil.ICT)

	rec, err := repo.FindForDay(ctx, user.ID, day)
	require.NoError(t, err)
	assert.Nil(t, rec)

	created, err := repo.CreateCheckIn(ctx, user.ID, day, testutil.At(0, 8, 30), strPtr("https://x/a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, model.StateCheckedIn, created.State())

	found, err := repo.FindForDay(ctx, user.ID, day)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "https://x/a.jpg", *found.CheckInPhoto)
	assert.Nil(t, found.CheckOutTime)

	next, err := repo.FindForDay(ctx, user.ID, day.Next())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestAttendanceRepository_CreateCheckIn_Duplicate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAttendanceRepository(db)
	user := testutil.CreateUser(t, db, "emp_1", model.RoleEmployee)
	ctx := context.Background()
	day := calendar.DayOf(testutil.At(0, 8, 0), testutil.ICT)

	_, err := repo.CreateCheckIn(ctx, user.ID, day, testutil.At(0, 8, 0), nil)
	require.NoError(t, err)

	_, err = repo.CreateCheckIn(ctx, user.ID, day, testutil.At(0, 8, 1), nil)
	assert.ErrorIs(t, err, ErrDuplicate)

	// Another day is a different key
	_, err = repo.CreateCheckIn(ctx, user.ID, day.Next(), testutil.At(1, 8, 0), nil)
	assert.NoError(t, err)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAttendanceRepository_SetCheckOut_Conditional(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAttendanceRepository(db)
	user := testutil.CreateUser(t, db, "emp_1", model.RoleEmployee)
	ctx := context.Background()
	day := calendar.DayOf(testutil.At(0, 8, 0), testutil.ICT)

	rec, err := repo.CreateCheckIn(ctx, user.ID, day, testutil.At(0, 8, 0), nil)
	require.NoError(t, err)

	closed, err := repo.SetCheckOut(ctx, rec.ID, testutil.At(0, 17, 30), strPtr("https://x/b.jpg"))
	require.NoError(t, err)
	require.NotNil(t, closed.CheckOutTime)
	assert.True(t, closed.CheckOutTime.Equal(testutil.At(0, 17, 30)))
	assert.Equal(t, "https://x/b.jpg", *closed.CheckOutPhoto)
	assert.Equal(t, model.StateCheckedOut, closed.State())

	_, err = repo.SetCheckOut(ctx, rec.ID, testutil.At(0, 18, 0), strPtr("https://x/c.jpg"))
	assert.ErrorIs(t, err, ErrNoRowsAffected)

	again, err := repo.FindForDay(ctx, user.ID, day)
	require.NoError(t, err)
	assert.Equal(t, "https://x/b.jpg", *again.CheckOutPhoto)
}

func TestAttendanceRepository_DeleteAll(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	user := testutil.CreateUser(t, db, "emp_1", model.RoleEmployee)
	day := calendar.DayOf(testutil.At(0, 8, 0), testutil.ICT)
	for i := 0; i < 3; i++ {
		d := day
		for j := 0; j < i; j++ {
			d = d.Next()
		}
		_, err := repo.CreateCheckIn(ctx, user.ID, d, d.Start().Add(8*time.Hour), nil)
		require.NoError(t, err)
	}

	n, err = repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	remaining, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestAttendanceRepository_DayQueries(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	day := calendar.DayOf(testutil.At(0, 8, 0), testutil.ICT)

	alice := testutil.CreateUser(t, db, "alice", model.RoleEmployee)
	bob := testutil.CreateUser(t, db, "bob", model.RoleAdmin)

	a, err := repo.CreateCheckIn(ctx, alice.ID, day, testutil.At(0, 8, 0), nil)
	require.NoError(t, err)
	_, err = repo.CreateCheckIn(ctx, bob.ID, day, testutil.At(0, 9, 0), nil)
	require.NoError(t, err)
	_, err = repo.CreateCheckIn(ctx, bob.ID, day.Prev(), testutil.At(-1, 9, 0), nil)
	require.NoError(t, err)
	_, err = repo.SetCheckOut(ctx, a.ID, testutil.At(0, 16, 0), nil)
	require.NoError(t, err)

	counts, err := repo.CountForDay(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.CheckedIn)
	assert.Equal(t, int64(1), counts.CheckedOut)
	assert.InDelta(t, 8*3600, counts.WorkedSeconds, 1)

	records, total, err := repo.ListForDay(ctx, day, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	assert.Equal(t, alice.ID, records[0].UserID)
	require.NotNil(t, records[0].User)
	assert.Equal(t, "alice", records[0].User.SubjectID)

	history, total, err := repo.ListForUser(ctx, bob.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, history, 2)
	assert.True(t, history[0].Day.After(history[1].Day), "newest day first")
}
