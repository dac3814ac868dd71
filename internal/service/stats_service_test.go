package service

import (
	"context"
	"testing"

	"attendance/internal/apperr"
	"attendance/internal/model"
	"attendance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stats, err := NewStatsService(f.attendance, f.clock)
	require.NoError(t, err)
	t.Cleanup(stats.Close)

	a := testutil.CreateUser(t, f.db, "a", model.RoleEmployee)
	b := testutil.CreateUser(t, f.db, "b", model.RoleEmployee)
	c := testutil.CreateUser(t, f.db, "c", model.RoleAdmin)
	today := f.clock.Today()

	ra, err := f.attendance.CreateCheckIn(ctx, a.ID, today, testutil.At(0, 8, 0), nil)
	require.NoError(t, err)
	_, err = f.attendance.SetCheckOut(ctx, ra.ID, testutil.At(0, 16, 0), nil)
	require.NoError(t, err)
	rb, err := f.attendance.CreateCheckIn(ctx, b.ID, today, testutil.At(0, 9, 0), nil)
	require.NoError(t, err)
	_, err = f.attendance.SetCheckOut(ctx, rb.ID, testutil.At(0, 18, 30), nil)
	require.NoError(t, err)
	_, err = f.attendance.CreateCheckIn(ctx, c.ID, today, testutil.At(0, 9, 15), nil)
	require.NoError(t, err)

	got, err := stats.AttendanceStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", got.Date)
	assert.Equal(t, int64(3), got.CheckedInCount)
	assert.Equal(t, int64(2), got.CheckedOutCount)
	assert.Equal(t, int64(1), got.PendingCheckout)
	// (8h + 9.5h) / 2
	assert.Equal(t, "8.75", got.AverageHours.StringFixed(2))

	empty, err := stats.AttendanceStats(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Zero(t, empty.CheckedInCount)
	assert.True(t, empty.AverageHours.IsZero())

	_, err = stats.AttendanceStats(ctx, "yesterday")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestAttendanceStats_CachedUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stats, err := NewStatsService(f.attendance, f.clock)
	require.NoError(t, err)
	t.Cleanup(stats.Close)

	a := testutil.CreateUser(t, f.db, "a", model.RoleEmployee)
	first, err := stats.AttendanceStats(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, first.CheckedInCount)

	_, err = f.attendance.CreateCheckIn(ctx, a.ID, f.clock.Today(), f.clock.Now(), nil)
	require.NoError(t, err)

	cached, err := stats.AttendanceStats(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, cached.CheckedInCount)

	stats.Invalidate()
	fresh, err := stats.AttendanceStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.CheckedInCount)
}

func TestAttendanceService_InvalidatesRealStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stats, err := NewStatsService(f.attendance, f.clock)
	require.NoError(t, err)
	t.Cleanup(stats.Close)

	svc := NewAttendanceService(AttendanceDeps{
		TxManager:  f.tm,
		Users:      f.users,
		Attendance: f.attendance,
		Audit:      f.audit,
		Photos:     f.photos,
		Clock:      f.clock,
		Stats:      stats,
	})
	emp := testutil.CreateUser(t, f.db, "emp", model.RoleEmployee)

	_, err = stats.AttendanceStats(ctx, "")
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, emp.SubjectID, CheckInRequest{})
	require.NoError(t, err)

	got, err := stats.AttendanceStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CheckedInCount)
}
