package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// once is a cron schedule that activates a single time. Cron asks for the
// next activation when the entry is added and again after every run, so the
// first answer is the target and every later one is the zero time, which
// retires the entry.
type once struct {
	at     time.Time
	issued atomic.Bool
}

func (o *once) Next(time.Time) time.Time {
	if o.issued.CompareAndSwap(false, true) {
		return o.at
	}
	return time.Time{}
}

// cronLogger routes cron's own messages to zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// CronTimer runs one-shot jobs on a robfig/cron scheduler. Pending jobs live
// only in memory.
type CronTimer struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	pending map[cron.EntryID]time.Time
}

// NewCronTimer creates a new timer in the given location
func NewCronTimer(loc *time.Location, logger *zap.Logger) *CronTimer {
	if loc == nil {
		loc = time.Local
	}
	return &CronTimer{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{sugar: logger.Sugar()}),
			cron.WithChain(cron.Recover(cronLogger{sugar: logger.Sugar()})),
		),
		logger:  logger,
		pending: make(map[cron.EntryID]time.Time),
	}
}

// Start begins running jobs in the background
func (t *CronTimer) Start() {
	t.cron.Start()
	t.logger.Info("Reminder timer started")
}

// Stop halts the scheduler and waits for running jobs until ctx is done
func (t *CronTimer) Stop(ctx context.Context) error {
	done := t.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	dropped := len(t.pending)
	t.mu.Unlock()
	t.logger.Info("Reminder timer stopped", zap.Int("unfired", dropped))
	return nil
}

// ScheduleAt runs job once at the given time. Times in the past run right away.
func (t *CronTimer) ScheduleAt(at time.Time, job func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// The lock keeps the job from reading its id before it is recorded
	var id cron.EntryID
	id = t.cron.Schedule(&once{at: at}, cron.FuncJob(func() {
		defer t.finish(&id)
		job()
	}))
	t.pending[id] = at
}

// Pending returns the number of jobs that have not fired yet
func (t *CronTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *CronTimer) finish(id *cron.EntryID) {
	t.mu.Lock()
	entry := *id
	delete(t.pending, entry)
	t.mu.Unlock()
	t.cron.Remove(entry)
}
