package factory

import (
	"fmt"

	"github.com/mikey/deadline-triage/internal/adapters/notify"
	"github.com/mikey/deadline-triage/internal/config"
	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// NotifierFactory creates notification sinks based on configuration
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifier creates the configured sinks. Several types fan out to all of them.
func (f *NotifierFactory) CreateNotifier() (core.Notifier, error) {
	nc, err := f.cfg.GetNotify()
	if err != nil {
		return nil, err
	}

	var sinks notify.MultiNotifier
	for _, t := range nc.Types {
		switch t {
		case "ntfy":
			sinks = append(sinks, notify.NewNtfyNotifier(nc.NtfyServer, nc.NtfyTopic, nc.NtfyToken, nc.NtfyTimeout, f.logger))
		case "telegram":
			if nc.TelegramToken == "" || nc.TelegramChatID == 0 {
				return nil, fmt.Errorf("telegram notifier needs notify.telegram.token and notify.telegram.chat_id")
			}
			tg, err := notify.NewTelegramNotifier(nc.TelegramToken, nc.TelegramChatID, f.logger)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, tg)
		case "log":
			sinks = append(sinks, notify.NewLogNotifier(f.logger))
		default:
			return nil, fmt.Errorf("unsupported notifier type: %s", t)
		}
	}

	switch len(sinks) {
	case 0:
		f.logger.Warn("No notifier configured, reminders will only be logged")
		return notify.NewLogNotifier(f.logger), nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}
