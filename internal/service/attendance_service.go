package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"attendance/internal/apperr"
	"attendance/internal/calendar"
	"attendance/internal/logger"
	"attendance/internal/metrics"
	"attendance/internal/model"
	"attendance/internal/permission"
	"attendance/internal/repository"
	"attendance/internal/websocket"

	"github.com/google/uuid"
)

// ClearConfirmationPhrase must be typed verbatim to wipe the ledger.
const ClearConfirmationPhrase = "DELETE MY DATA"

const (
	opCheckIn  = "check_in"
	opCheckOut = "check_out"
	opClearAll = "clear_all"
)

type CheckInRequest struct {
	PhotoURL string `json:"photoUrl"`
}

type CheckOutRequest struct {
	PhotoURL string `json:"photoUrl"`
}

type ClearAttendanceRequest struct {
	ConfirmationPhrase string `json:"confirmationPhrase"`
}

// AttendanceResult is returned by both transitions. Role lets the client branch its messaging.
type AttendanceResult struct {
	Record *model.AttendanceRecord `json:"record"`
	Role   model.Role              `json:"role"`
	State  model.AttendanceState   `json:"state"`
}

// TodayStatus drives which action the client offers. Read-only.
type TodayStatus struct {
	Date               string                  `json:"date"`
	State              model.AttendanceState   `json:"state"`
	HasCheckedInToday  bool                    `json:"hasCheckedInToday"`
	HasCheckedOutToday bool                    `json:"hasCheckedOutToday"`
	CanCheckIn         bool                    `json:"canCheckIn"`
	CanCheckOut        bool                    `json:"canCheckOut"`
	Permission         permission.Result       `json:"permission"`
	Record             *model.AttendanceRecord `json:"record"`
}

type ClearResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// AttendanceService runs the daily check-in/check-out state machine.
type AttendanceService interface {
	CheckIn(ctx context.Context, subjectID string, req CheckInRequest) (*AttendanceResult, error)
	CheckOut(ctx context.Context, subjectID string, req CheckOutRequest) (*AttendanceResult, error)
	TodayStatus(ctx context.Context, subjectID string) (*TodayStatus, error)
	History(ctx context.Context, subjectID string, page, limit int) ([]model.AttendanceRecord, int64, error)
	// Records lists one day of the ledger; an empty date means today.
	Records(ctx context.Context, date string, page, limit int) ([]model.AttendanceRecord, int64, error)
	ClearAll(ctx context.Context, actingSubjectID string, req ClearAttendanceRequest) (*ClearResult, error)
}

type AttendanceDeps struct {
	TxManager  repository.TransactionManager
	Users      repository.UserRepository
	Attendance repository.AttendanceRepository
	Audit      repository.AuditRepository
	Photos     repository.PhotoRepository
	Clock      *calendar.Clock
	Log        logger.Logger
	Metrics    *metrics.Metrics
	Events     EventPublisher
	Stats      StatsInvalidator
}

type attendanceService struct {
	tm         repository.TransactionManager
	users      repository.UserRepository
	attendance repository.AttendanceRepository
	audit      repository.AuditRepository
	photos     repository.PhotoRepository
	clock      *calendar.Clock
	log        logger.Logger
	metrics    *metrics.Metrics
	events     EventPublisher
	stats      StatsInvalidator
}

func NewAttendanceService(d AttendanceDeps) AttendanceService {
	s := &attendanceService{
		tm:         d.TxManager,
		users:      d.Users,
		attendance: d.Attendance,
		audit:      d.Audit,
		photos:     d.Photos,
		clock:      d.Clock,
		log:        d.Log,
		metrics:    d.Metrics,
		events:     d.Events,
		stats:      d.Stats,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.stats == nil {
		s.stats = nopInvalidator{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

func (s *attendanceService) CheckIn(ctx context.Context, subjectID string, req CheckInRequest) (res *AttendanceResult, err error) {
	now := s.clock.Now()
	day := s.clock.DayOf(now)
	defer func() { s.observe(opCheckIn, subjectID, now, err) }()

	photo, err := parsePhotoURL(req.PhotoURL)
	if err != nil {
		return nil, err
	}

	user, err := loadAttendee(ctx, s.users, subjectID)
	if err != nil {
		return nil, err
	}

	existing, err := s.attendance.FindForDay(ctx, user.ID, day)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load today's attendance")
	}
	if existing != nil {
		return nil, alreadyCheckedIn(existing)
	}

	var rec *model.AttendanceRecord
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		rec, err = s.attendance.CreateCheckIn(txCtx, user.ID, day, now, photo)
		if err != nil {
			return err
		}
		if err := s.claimPhoto(txCtx, user.ID, photo); err != nil {
			return err
		}
		return s.audit.Log(txCtx, auditEntry(&user.ID, model.ActionCheckIn, rec.ID.String(), user.Email, map[string]any{
			"date":     day.String(),
			"photoUrl": photo,
		}))
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost the race against a concurrent check-in for the same day
		current, findErr := s.attendance.FindForDay(ctx, user.ID, day)
		if findErr != nil || current == nil {
			return nil, apperr.New(apperr.KindAlreadyCheckedIn, "you have already checked in today")
		}
		return nil, alreadyCheckedIn(current)
	}
	if errors.Is(err, repository.ErrForeignPhoto) {
		return nil, foreignPhoto()
	}
	if err != nil {
		return nil, apperr.Upstream(err, "failed to record check-in")
	}

	s.afterCommit(websocket.EventCheckIn, rec, user)
	return &AttendanceResult{Record: rec, Role: user.Role, State: rec.State()}, nil
}

func (s *attendanceService) CheckOut(ctx context.Context, subjectID string, req CheckOutRequest) (res *AttendanceResult, err error) {
	now := s.clock.Now()
	day := s.clock.DayOf(now)
	defer func() { s.observe(opCheckOut, subjectID, now, err) }()

	photo, err := parsePhotoURL(req.PhotoURL)
	if err != nil {
		return nil, err
	}

	user, err := loadAttendee(ctx, s.users, subjectID)
	if err != nil {
		return nil, err
	}

	rec, err := s.attendance.FindForDay(ctx, user.ID, day)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load today's attendance")
	}
	switch rec.State() {
	case model.StateNotCheckedIn:
		return nil, apperr.New(apperr.KindNotCheckedIn, "you have not checked in today, check in first")
	case model.StateCheckedOut:
		return nil, alreadyCheckedOut(rec)
	}

	// Check-out never precedes check-in, even if the clock stepped back
	at := now
	if at.Before(rec.CheckInTime) {
		at = rec.CheckInTime
	}

	var updated *model.AttendanceRecord
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.attendance.SetCheckOut(txCtx, rec.ID, at, photo)
		if err != nil {
			return err
		}
		if err := s.claimPhoto(txCtx, user.ID, photo); err != nil {
			return err
		}
		return s.audit.Log(txCtx, auditEntry(&user.ID, model.ActionCheckOut, rec.ID.String(), user.Email, map[string]any{
			"date":     day.String(),
			"photoUrl": photo,
		}))
	})
	if errors.Is(err, repository.ErrNoRowsAffected) {
		// A concurrent check-out closed the cycle, or the ledger was cleared in between
		current, findErr := s.attendance.FindForDay(ctx, user.ID, day)
		if findErr == nil && current == nil {
			return nil, apperr.New(apperr.KindNotCheckedIn, "you have not checked in today, check in first")
		}
		return nil, alreadyCheckedOut(current)
	}
	if errors.Is(err, repository.ErrForeignPhoto) {
		return nil, foreignPhoto()
	}
	if err != nil {
		return nil, apperr.Upstream(err, "failed to record check-out")
	}

	s.afterCommit(websocket.EventCheckOut, updated, user)
	return &AttendanceResult{Record: updated, Role: user.Role, State: updated.State()}, nil
}

func (s *attendanceService) TodayStatus(ctx context.Context, subjectID string) (*TodayStatus, error) {
	day := s.clock.Today()

	user, err := s.users.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load user")
	}
	if user == nil {
		return nil, apperr.NotFound("user not found, sync your profile first")
	}

	perm := permission.Check(user.Role)
	if !user.IsActive {
		perm.Allowed = false
		perm.Reason = "your account has been deactivated"
	}

	rec, err := s.attendance.FindForDay(ctx, user.ID, day)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load today's attendance")
	}

	state := rec.State()
	return &TodayStatus{
		Date:               day.String(),
		State:              state,
		HasCheckedInToday:  state != model.StateNotCheckedIn,
		HasCheckedOutToday: state == model.StateCheckedOut,
		CanCheckIn:         perm.Allowed && state == model.StateNotCheckedIn,
		CanCheckOut:        perm.Allowed && state == model.StateCheckedIn,
		Permission:         perm,
		Record:             rec,
	}, nil
}

func (s *attendanceService) History(ctx context.Context, subjectID string, page, limit int) ([]model.AttendanceRecord, int64, error) {
	page, limit = normalizePage(page, limit)

	user, err := loadActiveUser(ctx, s.users, subjectID)
	if err != nil {
		return nil, 0, err
	}

	records, total, err := s.attendance.ListForUser(ctx, user.ID, page, limit)
	if err != nil {
		return nil, 0, apperr.Upstream(err, "failed to load attendance history")
	}
	return records, total, nil
}

func (s *attendanceService) Records(ctx context.Context, date string, page, limit int) ([]model.AttendanceRecord, int64, error) {
	page, limit = normalizePage(page, limit)

	day, err := s.resolveDay(date)
	if err != nil {
		return nil, 0, err
	}

	records, total, err := s.attendance.ListForDay(ctx, day, page, limit)
	if err != nil {
		return nil, 0, apperr.Upstream(err, "failed to load attendance records")
	}
	return records, total, nil
}

func (s *attendanceService) ClearAll(ctx context.Context, actingSubjectID string, req ClearAttendanceRequest) (res *ClearResult, err error) {
	now := s.clock.Now()
	defer func() { s.observe(opClearAll, actingSubjectID, now, err) }()

	admin, err := requireActiveAdmin(ctx, s.users, actingSubjectID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.ConfirmationPhrase) != ClearConfirmationPhrase {
		return nil, apperr.New(apperr.KindInvalidConfirmation, "confirmation phrase does not match, type %q to continue", ClearConfirmationPhrase)
	}

	var deleted int64
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		deleted, err = s.attendance.DeleteAll(txCtx)
		if err != nil {
			return err
		}
		return s.audit.Log(txCtx, auditEntry(&admin.ID, model.ActionClearAttendance, "", admin.Email, map[string]any{
			"deletedCount": deleted,
		}))
	})
	if err != nil {
		return nil, apperr.Upstream(err, "failed to clear attendance records")
	}

	s.log.Warn("attendance ledger cleared", "admin", admin.Email, "deleted", deleted)
	s.stats.Invalidate()
	s.events.Publish(websocket.EventAttendanceClear, map[string]any{"deletedCount": deleted, "by": admin.ID})
	return &ClearResult{DeletedCount: deleted}, nil
}

func (s *attendanceService) resolveDay(date string) (calendar.Day, error) {
	if date == "" {
		return s.clock.Today(), nil
	}
	day, err := s.clock.Parse(date)
	if err != nil {
		return calendar.Day{}, apperr.InvalidInput("date must be formatted as YYYY-MM-DD")
	}
	return day, nil
}

func (s *attendanceService) claimPhoto(ctx context.Context, ownerID uuid.UUID, photo *string) error {
	if photo == nil || s.photos == nil {
		return nil
	}
	return s.photos.Claim(ctx, ownerID, *photo)
}

func (s *attendanceService) afterCommit(event string, rec *model.AttendanceRecord, user *model.User) {
	s.stats.Invalidate()
	s.events.Publish(event, map[string]any{
		"recordId": rec.ID,
		"userId":   user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"date":     rec.Day,
		"state":    rec.State(),
	})
}

// observe counts the outcome and logs infrastructure faults with enough context to diagnose them.
func (s *attendanceService) observe(op, subjectID string, at time.Time, err error) {
	switch {
	case err == nil:
		s.metrics.Transition(op, metrics.OutcomeSuccess)
	case apperr.IsDomain(err):
		s.metrics.Transition(op, metrics.OutcomeRejected)
		s.log.Debug("attendance operation rejected", "operation", op, "subject", subjectID, "reason", err.Error())
	default:
		s.metrics.Transition(op, metrics.OutcomeError)
		s.log.Error("attendance operation failed", "operation", op, "subject", subjectID, "at", at, "error", err)
	}
}

func alreadyCheckedIn(rec *model.AttendanceRecord) error {
	return apperr.New(apperr.KindAlreadyCheckedIn, "you have already checked in today").
		WithDetails(map[string]any{"record": rec})
}

func alreadyCheckedOut(rec *model.AttendanceRecord) error {
	e := apperr.New(apperr.KindAlreadyCheckedOut, "you have already checked out today")
	if rec != nil {
		e = e.WithDetails(map[string]any{"record": rec})
	}
	return e
}

func foreignPhoto() error {
	return apperr.Forbidden("photoUrl refers to a photo uploaded by another user")
}

// parsePhotoURL accepts an empty value (no photo) or an absolute http(s) URL.
func parsePhotoURL(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.InvalidInput("photoUrl must be an absolute http(s) URL")
	}
	return &raw, nil
}
