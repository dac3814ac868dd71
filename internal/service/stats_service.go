package service

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/apperr"
	"attendance/internal/calendar"
	"attendance/internal/model"
	"attendance/internal/repository"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/shopspring/decimal"
)

const statsTTL = 30 * time.Second

// StatsService aggregates the ledger for admin dashboards
type StatsService interface {
	// AttendanceStats summarizes one day; an empty date means today.
	AttendanceStats(ctx context.Context, date string) (*model.AttendanceStats, error)
	Invalidate()
	Close()
}

type statsService struct {
	attendance repository.AttendanceRepository
	clock      *calendar.Clock
	cache      *ristretto.Cache[string, *model.AttendanceStats]
}

func NewStatsService(attendance repository.AttendanceRepository, clock *calendar.Clock) (StatsService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *model.AttendanceStats]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create stats cache: %w", err)
	}
	return &statsService{attendance: attendance, clock: clock, cache: cache}, nil
}

func (s *statsService) AttendanceStats(ctx context.Context, date string) (*model.AttendanceStats, error) {
	day := s.clock.Today()
	if date != "" {
		var err error
		if day, err = s.clock.Parse(date); err != nil {
			return nil, apperr.InvalidInput("date must be formatted as YYYY-MM-DD")
		}
	}

	key := day.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	counts, err := s.attendance.CountForDay(ctx, day)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to compute attendance stats")
	}

	stats := &model.AttendanceStats{
		Date:            key,
		CheckedInCount:  counts.CheckedIn,
		CheckedOutCount: counts.CheckedOut,
		PendingCheckout: counts.CheckedIn - counts.CheckedOut,
		AverageHours:    decimal.Zero,
	}
	if counts.CheckedOut > 0 {
		stats.AverageHours = decimal.NewFromFloat(counts.WorkedSeconds).
			Div(decimal.NewFromInt(3600 * counts.CheckedOut)).
			Round(2)
	}

	s.cache.SetWithTTL(key, stats, 1, statsTTL)
	s.cache.Wait()
	return stats, nil
}

// Invalidate drops every cached day. Ledger writes are rare next to dashboard reads.
func (s *statsService) Invalidate() {
	s.cache.Clear()
}

func (s *statsService) Close() {
	s.cache.Close()
}
