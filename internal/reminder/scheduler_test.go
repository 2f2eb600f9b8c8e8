package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTimer struct {
	at   []time.Time
	jobs []func()
}

func (f *fakeTimer) ScheduleAt(at time.Time, job func()) {
	f.at = append(f.at, at)
	f.jobs = append(f.jobs, job)
}

func (f *fakeTimer) runAll() {
	for _, job := range f.jobs {
		job()
	}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*core.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n *core.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

var now = time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)

func newTestScheduler(config Config) (*Scheduler, *fakeTimer, *fakeNotifier) {
	timer := &fakeTimer{}
	notifier := &fakeNotifier{}
	s := NewScheduler(timer, notifier, config, zap.NewNop())
	s.SetClock(func() time.Time { return now })
	return s, timer, notifier
}

func TestFireTimeIsTwoHoursBeforeDeadline(t *testing.T) {
	s, timer, _ := newTestScheduler(DefaultConfig())

	deadline := now.Add(26 * time.Hour)
	fire := s.Schedule(&core.Deadline{MessageID: "m1", Instant: deadline, Found: true})

	assert.Equal(t, deadline.Add(-2*time.Hour), fire)
	require.Len(t, timer.at, 1)
	assert.Equal(t, fire, timer.at[0])
}

func TestNearDeadlineIsClampedToMinDelay(t *testing.T) {
	s, _, _ := newTestScheduler(DefaultConfig())

	fire := s.Schedule(&core.Deadline{MessageID: "m1", Instant: now.Add(time.Hour), Found: true})
	assert.Equal(t, now.Add(5*time.Second), fire)

	// Already past deadlines still fire shortly after scheduling
	fire = s.Schedule(&core.Deadline{MessageID: "m2", Instant: now.Add(-time.Hour)})
	assert.Equal(t, now.Add(5*time.Second), fire)
}

func TestCallbackSendsNotification(t *testing.T) {
	s, timer, notifier := newTestScheduler(DefaultConfig())

	s.Schedule(&core.Deadline{
		MessageID: "18c2f0a",
		Subject:   "Lab report",
		Owner:     "alice@example.com",
		Instant:   time.Date(2026, time.February, 16, 15, 4, 0, 0, time.UTC),
		Found:     true,
	})
	assert.Empty(t, notifier.sent)

	timer.runAll()
	require.Len(t, notifier.sent, 1)

	n := notifier.sent[0]
	assert.Equal(t, "Upcoming Deadline!", n.Title)
	assert.Equal(t, "Reminder: 'Lab report' is due at 03:04 PM", n.Message)
	assert.Equal(t, "googlegmail:///v1/account/me/thread/18c2f0a", n.DeepLink)
	assert.Equal(t, "high", n.Priority)
	assert.Equal(t, "alice@example.com", n.Recipient)
	assert.Equal(t, now, n.FiredAt)
}

func TestLocalIDGetsNoDeepLink(t *testing.T) {
	s, timer, notifier := newTestScheduler(DefaultConfig())

	s.Schedule(&core.Deadline{
		MessageID: "q1@uni.example",
		Subject:   "Quiz",
		Instant:   now.Add(48 * time.Hour),
		Found:     true,
		LocalID:   true,
	})
	timer.runAll()

	require.Len(t, notifier.sent, 1)
	assert.Empty(t, notifier.sent[0].DeepLink)
	assert.Equal(t, "high", notifier.sent[0].Priority)
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	s, timer, notifier := newTestScheduler(DefaultConfig())
	notifier.err = errors.New("sink down")

	s.Schedule(&core.Deadline{MessageID: "m1", Instant: now.Add(48 * time.Hour), Found: true})
	assert.NotPanics(t, timer.runAll)
	assert.Len(t, notifier.sent, 1)
}

func TestSkipUnresolved(t *testing.T) {
	config := DefaultConfig()
	config.SkipUnresolved = true
	s, timer, _ := newTestScheduler(config)

	fire := s.Schedule(&core.Deadline{MessageID: "m1", Instant: now})
	assert.True(t, fire.IsZero())
	assert.Empty(t, timer.at)

	s.Schedule(&core.Deadline{MessageID: "m2", Instant: now.Add(72 * time.Hour), Found: true})
	assert.Len(t, timer.at, 1)
}

func TestLocationRendersDueTime(t *testing.T) {
	config := DefaultConfig()
	config.Location = time.FixedZone("IST", 5*3600+1800)
	s, timer, notifier := newTestScheduler(config)

	s.Schedule(&core.Deadline{
		MessageID: "m1",
		Subject:   "Quiz",
		Instant:   time.Date(2026, time.February, 16, 12, 0, 0, 0, time.UTC),
		Found:     true,
	})
	timer.runAll()

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Reminder: 'Quiz' is due at 05:30 PM", notifier.sent[0].Message)
}
