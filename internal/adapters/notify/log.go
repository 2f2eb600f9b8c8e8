package notify

import (
	"context"
	"errors"

	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log, for development
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (l *LogNotifier) Notify(ctx context.Context, note *core.Notification) error {
	l.logger.Info(note.Title,
		zap.String("recipient", note.Recipient),
		zap.String("message", note.Message),
		zap.String("link", note.DeepLink),
		zap.String("priority", note.Priority))
	return nil
}

// MultiNotifier fans a notification out to several sinks
type MultiNotifier []core.Notifier

// Notify delivers to every sink and joins their errors
func (m MultiNotifier) Notify(ctx context.Context, note *core.Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
