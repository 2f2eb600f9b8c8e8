package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/deadline-triage/internal/adapters/mimetext"
	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// Processor runs one message through the triage pipeline
type Processor interface {
	ProcessEnvelope(ctx context.Context, owner string, email *core.Envelope) core.Outcome
}

// Config holds SMTP listener settings
type Config struct {
	ListenAddress   string
	Domain          string
	DefaultOwner    string
	MaxMessageBytes int64
	MaxRecipients   int
	Timeout         time.Duration
}

// SMTPIngest accepts mail over SMTP and triages it for the first recipient
type SMTPIngest struct {
	processor Processor
	config    Config
	logger    *zap.Logger
	server    *smtp.Server
}

// NewSMTPIngest creates a new SMTP ingest listener
func NewSMTPIngest(processor Processor, config Config, logger *zap.Logger) *SMTPIngest {
	if config.Domain == "" {
		config.Domain = "localhost"
	}
	if config.MaxMessageBytes <= 0 {
		config.MaxMessageBytes = 10 * 1024 * 1024
	}
	if config.MaxRecipients <= 0 {
		config.MaxRecipients = 50
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	i := &SMTPIngest{processor: processor, config: config, logger: logger}

	i.server = smtp.NewServer(&backend{ingest: i})
	i.server.Addr = config.ListenAddress
	i.server.Domain = config.Domain
	i.server.ReadTimeout = config.Timeout
	i.server.WriteTimeout = config.Timeout
	i.server.MaxMessageBytes = config.MaxMessageBytes
	i.server.MaxRecipients = config.MaxRecipients
	return i
}

// Start listens on the configured address in the background
func (i *SMTPIngest) Start() error {
	l, err := net.Listen("tcp", i.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", i.config.ListenAddress, err)
	}
	i.logger.Info("SMTP ingest starting", zap.String("address", l.Addr().String()))
	go i.serve(l)
	return nil
}

func (i *SMTPIngest) serve(l net.Listener) {
	if err := i.server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
		i.logger.Error("SMTP server error", zap.Error(err))
	}
}

// Stop closes the listener and open connections
func (i *SMTPIngest) Stop() error {
	return i.server.Close()
}

func (i *SMTPIngest) owner(recipients []string) string {
	for _, r := range recipients {
		if addr := normalizeAddress(r); addr != "" {
			return addr
		}
	}
	return normalizeAddress(i.config.DefaultOwner)
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, "<")
	addr = strings.TrimSuffix(addr, ">")
	return strings.ToLower(addr)
}

// backend implements the go-smtp Backend interface
type backend struct {
	ingest *SMTPIngest
}

// NewSession creates a new SMTP session
func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{ingest: b.ingest}, nil
}

// session implements the go-smtp Session interface
type session struct {
	ingest     *SMTPIngest
	sender     string
	recipients []string
}

func (s *session) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *session) Logout() error {
	return nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data parses the message and triages it. Unparseable messages are rejected
// with 554; pipeline outcomes never fail the transaction.
func (s *session) Data(r io.Reader) error {
	logger := s.ingest.logger

	owner := s.ingest.owner(s.recipients)
	if owner == "" {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "No recipient to triage for",
		}
	}

	msg, err := mimetext.Parse(r)
	if err != nil {
		logger.Warn("Rejecting malformed message",
			zap.String("sender", s.sender),
			zap.String("owner", owner),
			zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Message could not be parsed",
		}
	}

	email := msg.Envelope(uuid.New().String())
	if email.Sender == "" {
		email.Sender = s.sender
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ingest.config.Timeout)
	defer cancel()

	outcome := s.ingest.processor.ProcessEnvelope(ctx, owner, email)
	logger.Info("Ingested message over SMTP",
		zap.String("owner", owner),
		zap.String("message_id", email.ID),
		zap.String("status", string(outcome.Status)))
	return nil
}
