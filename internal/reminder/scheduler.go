package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

const (
	DefaultTitle          = "Upcoming Deadline!"
	DefaultPriority       = "high"
	DefaultDeepLinkFormat = "googlegmail:///v1/account/me/thread/%s"

	// clockLayout renders the deadline as a 12-hour time of day, e.g. "03:04 PM"
	clockLayout = "03:04 PM"
)

// Config controls when and how reminders fire
type Config struct {
	Lead           time.Duration
	MinDelay       time.Duration
	NotifyTimeout  time.Duration
	SkipUnresolved bool
	Title          string
	Priority       string
	DeepLinkFormat string
	// Location renders the due time; nil keeps the deadline's own zone
	Location *time.Location
}

// DefaultConfig returns a two hour lead with a five second floor
func DefaultConfig() Config {
	return Config{
		Lead:           2 * time.Hour,
		MinDelay:       5 * time.Second,
		NotifyTimeout:  10 * time.Second,
		Title:          DefaultTitle,
		Priority:       DefaultPriority,
		DeepLinkFormat: DefaultDeepLinkFormat,
	}
}

// Scheduler registers one-shot reminders ahead of deadlines
type Scheduler struct {
	timer    core.Timer
	notifier core.Notifier
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new reminder scheduler
func NewScheduler(timer core.Timer, notifier core.Notifier, config Config, logger *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if config.Lead <= 0 {
		config.Lead = def.Lead
	}
	if config.MinDelay <= 0 {
		config.MinDelay = def.MinDelay
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = def.NotifyTimeout
	}
	if config.Title == "" {
		config.Title = def.Title
	}
	if config.Priority == "" {
		config.Priority = def.Priority
	}
	if config.DeepLinkFormat == "" {
		config.DeepLinkFormat = def.DeepLinkFormat
	}
	return &Scheduler{
		timer:    timer,
		notifier: notifier,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// FireTime returns when a reminder for deadline would fire, given the current time
func (s *Scheduler) FireTime(deadline time.Time) time.Time {
	now := s.now()
	fire := deadline.Add(-s.config.Lead)
	if fire.Before(now) {
		fire = now.Add(s.config.MinDelay)
	}
	return fire
}

// Schedule registers the reminder and returns its fire time. The zero time is
// returned when the deadline was not resolved and unresolved deadlines are skipped.
func (s *Scheduler) Schedule(deadline *core.Deadline) time.Time {
	if s.config.SkipUnresolved && !deadline.Found {
		s.logger.Debug("Skipping reminder for unresolved deadline",
			zap.String("message_id", deadline.MessageID))
		return time.Time{}
	}

	fire := s.FireTime(deadline.Instant)
	n := s.notification(deadline)
	jobID := uuid.NewString()

	s.timer.ScheduleAt(fire, func() {
		n.FiredAt = s.now()
		ctx, cancel := context.WithTimeout(context.Background(), s.config.NotifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("Failed to deliver reminder",
				zap.String("job_id", jobID),
				zap.String("message_id", deadline.MessageID),
				zap.Error(err))
			return
		}
		s.logger.Info("Reminder delivered",
			zap.String("job_id", jobID),
			zap.String("message_id", deadline.MessageID))
	})

	s.logger.Info("Scheduled reminder",
		zap.String("job_id", jobID),
		zap.String("message_id", deadline.MessageID),
		zap.Time("deadline", deadline.Instant),
		zap.Time("fire_at", fire))

	return fire
}

func (s *Scheduler) notification(deadline *core.Deadline) *core.Notification {
	due := deadline.Instant
	if s.config.Location != nil {
		due = due.In(s.config.Location)
	}
	note := &core.Notification{
		Recipient: deadline.Owner,
		Title:     s.config.Title,
		Message:   fmt.Sprintf("Reminder: '%s' is due at %s", deadline.Subject, due.Format(clockLayout)),
		Priority:  s.config.Priority,
	}
	if !deadline.LocalID && deadline.MessageID != "" {
		note.DeepLink = fmt.Sprintf(s.config.DeepLinkFormat, deadline.MessageID)
	}
	return note
}
