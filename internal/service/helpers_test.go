package service

import (
	"sync"
	"testing"
	"time"

	"attendance/internal/calendar"
	"attendance/internal/logger"
	"attendance/internal/metrics"
	"attendance/internal/repository"
	"attendance/internal/testutil"

	"gorm.io/gorm"
)

type recordedEvent struct {
	Type    string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingInvalidator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// settableClock is a clock whose current instant tests move around.
type settableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *settableClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *settableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fixture struct {
	db         *gorm.DB
	tm         repository.TransactionManager
	users      repository.UserRepository
	attendance repository.AttendanceRepository
	audit      repository.AuditRepository
	photos     repository.PhotoRepository
	time       *settableClock
	clock      *calendar.Clock
	events     *recordingPublisher
	stats      *countingInvalidator
	metrics    *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	st := &settableClock{now: testutil.At(0, 8, 30)}
	return &fixture{
		db:         db,
		tm:         repository.NewTransactionManager(db),
		users:      repository.NewUserRepository(db),
		attendance: repository.NewAttendanceRepository(db),
		audit:      repository.NewAuditRepository(db),
		photos:     repository.NewPhotoRepository(db),
		time:       st,
		clock:      calendar.NewFixedClock(testutil.ICT, st.Now),
		events:     &recordingPublisher{},
		stats:      &countingInvalidator{},
		metrics:    metrics.New(),
	}
}

func (f *fixture) attendanceService() AttendanceService {
	return NewAttendanceService(AttendanceDeps{
		TxManager:  f.tm,
		Users:      f.users,
		Attendance: f.attendance,
		Audit:      f.audit,
		Photos:     f.photos,
		Clock:      f.clock,
		Log:        logger.Nop(),
		Metrics:    f.metrics,
		Events:     f.events,
		Stats:      f.stats,
	})
}

func (f *fixture) userService() UserService {
	return NewUserService(f.tm, f.users, f.audit, logger.Nop(), f.events, f.stats)
}
