package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOnceScheduleFiresOnce(t *testing.T) {
	at := time.Date(2026, time.February, 16, 10, 0, 0, 0, time.UTC)
	s := &once{at: at}

	assert.Equal(t, at, s.Next(at.Add(-time.Hour)))
	assert.True(t, s.Next(at).IsZero())
	assert.True(t, s.Next(at.Add(-time.Hour)).IsZero())
}

func TestCronTimerRunsJobsOnce(t *testing.T) {
	timer := NewCronTimer(time.UTC, zap.NewNop())
	timer.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, timer.Stop(ctx))
	}()

	var soon, past atomic.Int32
	timer.ScheduleAt(time.Now().Add(50*time.Millisecond), func() { soon.Add(1) })
	timer.ScheduleAt(time.Now().Add(-time.Minute), func() { past.Add(1) })

	assert.Eventually(t, func() bool {
		return soon.Load() == 1 && past.Load() == 1 && timer.Pending() == 0
	}, 3*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), soon.Load())
	assert.Equal(t, int32(1), past.Load())
}

func TestCronTimerKeepsFutureJobsPending(t *testing.T) {
	timer := NewCronTimer(time.UTC, zap.NewNop())
	timer.Start()
	defer timer.Stop(context.Background())

	timer.ScheduleAt(time.Now().Add(time.Hour), func() {})
	assert.Equal(t, 1, timer.Pending())
}

func TestCronTimerRecoversPanickingJob(t *testing.T) {
	timer := NewCronTimer(time.UTC, zap.NewNop())
	timer.Start()
	defer timer.Stop(context.Background())

	var after atomic.Int32
	timer.ScheduleAt(time.Now(), func() { panic("boom") })
	timer.ScheduleAt(time.Now().Add(20*time.Millisecond), func() { after.Add(1) })

	assert.Eventually(t, func() bool {
		return after.Load() == 1 && timer.Pending() == 0
	}, 3*time.Second, 10*time.Millisecond)
}
