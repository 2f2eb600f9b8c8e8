package factory

import (
	"fmt"

	"github.com/mikey/deadline-triage/internal/adapters/gmail"
	"github.com/mikey/deadline-triage/internal/adapters/imap"
	"github.com/mikey/deadline-triage/internal/config"
	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// MailFactory creates mail sources and the OAuth code exchanger
type MailFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailFactory creates a new mail factory
func NewMailFactory(cfg *config.Config, logger *zap.Logger) *MailFactory {
	return &MailFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMailSource creates a mail source based on the configuration.
// Provider "none" disables sync and feedback.
func (f *MailFactory) CreateMailSource() (core.MailSource, error) {
	provider := f.cfg.GetMail().Provider

	switch provider {
	case "gmail":
		return gmail.NewSource(f.logger), nil
	case "imap":
		ic, err := f.cfg.GetIMAP()
		if err != nil {
			return nil, err
		}
		if ic.Username == "" {
			return nil, fmt.Errorf("imap.username is required for the imap provider")
		}
		return imap.NewSource(imap.Config{
			Address:  ic.Address,
			Username: ic.Username,
			Mailbox:  ic.Mailbox,
			Auth:     ic.Auth,
			TLS:      ic.TLS,
			Timeout:  ic.Timeout,
		}, f.logger), nil
	case "none":
		f.logger.Warn("No mail provider configured, sync is disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}

// CreateTokenExchanger creates the Google authorization code exchanger
func (f *MailFactory) CreateTokenExchanger() core.TokenExchanger {
	gc := f.cfg.GetGoogle()
	if gc.ClientID == "" || gc.ClientSecret == "" {
		f.logger.Warn("Google OAuth client credentials not configured, /auth/exchange will fail")
	}
	return gmail.NewExchanger(gc.ClientID, gc.ClientSecret, f.logger)
}

// MaxResults returns how many recent messages a sync considers
func (f *MailFactory) MaxResults() int {
	return f.cfg.GetMail().MaxResults
}
