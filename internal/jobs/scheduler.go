// Package jobs runs periodic maintenance work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/logger"

	"github.com/robfig/cron/v3"
)

// Sweeper deletes photo uploads no attendance record ever referenced.
type Sweeper interface {
	SweepOrphans(ctx context.Context) (int, error)
}

// Scheduler wraps a cron runner. Runs of the same job never overlap.
type Scheduler struct {
	cron    *cron.Cron
	log     logger.Logger
	timeout time.Duration
}

func NewScheduler(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})))
	return &Scheduler{cron: c, log: log, timeout: 10 * time.Minute}
}

// AddPhotoSweep schedules s on spec, a standard 5-field expression or a descriptor like @hourly.
func (s *Scheduler) AddPhotoSweep(spec string, sw Sweeper) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.runSweep(ctx, sw)
	})
	if err != nil {
		return fmt.Errorf("schedule photo sweep %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) runSweep(ctx context.Context, sw Sweeper) {
	start := time.Now()
	n, err := sw.SweepOrphans(ctx)
	if err != nil {
		s.log.Error("photo sweep failed", "swept", n, "error", err)
		return
	}
	s.log.Debug("photo sweep finished", "swept", n, "took", time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out, abandoning running jobs")
	}
}

// cronLogger adapts Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
