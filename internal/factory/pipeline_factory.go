package factory

import (
	"github.com/mikey/deadline-triage/internal/adapters/timer"
	"github.com/mikey/deadline-triage/internal/config"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/mikey/deadline-triage/internal/deadline"
	"github.com/mikey/deadline-triage/internal/reminder"
	"github.com/mikey/deadline-triage/internal/safeguard"
	"go.uber.org/zap"
)

// PipelineFactory creates the extraction, safeguard and reminder stages
type PipelineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewPipelineFactory creates a new pipeline factory
func NewPipelineFactory(cfg *config.Config, logger *zap.Logger) *PipelineFactory {
	return &PipelineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateExtractor creates the deadline extractor
func (f *PipelineFactory) CreateExtractor() (*deadline.Extractor, error) {
	dc, err := f.cfg.GetDeadline()
	if err != nil {
		return nil, err
	}
	return deadline.NewExtractor(deadline.Config{
		ScanLimit: dc.ScanLimit,
		MinLead:   dc.MinLead,
		MaxLead:   dc.MaxLead,
	}, f.logger), nil
}

// CreateGuard creates the subject keyword safeguard
func (f *PipelineFactory) CreateGuard() *safeguard.Checker {
	return safeguard.NewChecker(f.cfg.GetStringSlice("safeguard.keywords"), f.logger)
}

// CreateTimer creates the cron timer. It is not started.
func (f *PipelineFactory) CreateTimer() (*timer.CronTimer, error) {
	rc, err := f.cfg.GetReminder()
	if err != nil {
		return nil, err
	}
	return timer.NewCronTimer(rc.Location, f.logger), nil
}

// CreateScheduler creates the reminder scheduler on top of a timer and notifier
func (f *PipelineFactory) CreateScheduler(t core.Timer, n core.Notifier) (*reminder.Scheduler, error) {
	rc, err := f.cfg.GetReminder()
	if err != nil {
		return nil, err
	}
	return reminder.NewScheduler(t, n, reminder.Config{
		Lead:           rc.Lead,
		MinDelay:       rc.MinDelay,
		NotifyTimeout:  rc.NotifyTimeout,
		SkipUnresolved: rc.SkipUnresolved,
		Title:          rc.Title,
		Priority:       rc.Priority,
		DeepLinkFormat: rc.DeepLinkFormat,
		Location:       rc.Location,
	}, f.logger), nil
}

// IngestSender is the sender recorded for Apps Script pushes
func (f *PipelineFactory) IngestSender() string {
	return f.cfg.GetString("ingest.sender")
}
