package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) SweepOrphans(context.Context) (int, error) {
	c.calls.Add(1)
	return 3, c.err
}

func TestAddPhotoSweep_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil)
	assert.Error(t, s.AddPhotoSweep("every now and then", &countingSweeper{}))
	assert.NoError(t, s.AddPhotoSweep("@hourly", &countingSweeper{}))
	assert.NoError(t, s.AddPhotoSweep("*/5 * * * *", &countingSweeper{}))
}

func TestScheduler_RunsSweep(t *testing.T) {
	s := NewScheduler(nil)
	sw := &countingSweeper{}
	require.NoError(t, s.AddPhotoSweep("@every 10ms", sw))

	s.Start()
	assert.Eventually(t, func() bool { return sw.calls.Load() > 0 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestRunSweep_ErrorIsNotFatal(t *testing.T) {
	s := NewScheduler(nil)
	sw := &countingSweeper{err: errors.New("store unavailable")}

	s.runSweep(context.Background(), sw)
	s.runSweep(context.Background(), sw)
	assert.Equal(t, int32(2), sw.calls.Load())
}
