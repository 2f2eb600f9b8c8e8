package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/mikey/deadline-triage/internal/adapters/mimetext"
	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// Auth mechanisms
const (
	AuthOAuthBearer = "oauthbearer"
	AuthLogin       = "login"
)

// Config holds IMAP connection settings
type Config struct {
	Address  string
	Username string
	Mailbox  string
	Auth     string
	TLS      bool
	Timeout  time.Duration
}

// Source opens IMAP sessions for a single configured mailbox. The caller's
// bearer credential is the OAuth access token, or the password in login mode.
type Source struct {
	config Config
	logger *zap.Logger
}

// NewSource creates an IMAP source
func NewSource(config Config, logger *zap.Logger) *Source {
	if config.Mailbox == "" {
		config.Mailbox = "INBOX"
	}
	if config.Auth == "" {
		config.Auth = AuthOAuthBearer
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Source{config: config, logger: logger}
}

// Open dials the server, authenticates and selects the mailbox read-only
func (s *Source) Open(ctx context.Context, token string) (core.MailSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("missing credential: %w", core.ErrUnauthorized)
	}

	dialer := &net.Dialer{Timeout: s.config.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var c *client.Client
	var err error
	if s.config.TLS {
		host, _, _ := net.SplitHostPort(s.config.Address)
		c, err = client.DialWithDialerTLS(dialer, s.config.Address, &tls.Config{ServerName: host})
	} else {
		c, err = client.DialWithDialer(dialer, s.config.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w: %w", s.config.Address, core.ErrUpstreamUnavailable, err)
	}
	c.Timeout = s.config.Timeout

	if err := s.authenticate(c, token); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to authenticate %s: %w: %w", s.config.Username, core.ErrUnauthorized, err)
	}

	status, err := c.Select(s.config.Mailbox, true)
	if err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to select %s: %w: %w", s.config.Mailbox, core.ErrUpstreamUnavailable, err)
	}

	s.logger.Debug("IMAP session opened",
		zap.String("address", s.config.Address),
		zap.String("mailbox", status.Name),
		zap.Uint32("messages", status.Messages))

	return &Session{
		client: c,
		owner:  strings.ToLower(strings.TrimSpace(s.config.Username)),
		total:  status.Messages,
		logger: s.logger,
	}, nil
}

func (s *Source) authenticate(c *client.Client, token string) error {
	switch s.config.Auth {
	case AuthLogin:
		return c.Login(s.config.Username, token)
	case AuthOAuthBearer:
		host, portText, _ := net.SplitHostPort(s.config.Address)
		port, _ := strconv.Atoi(portText)
		return c.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: s.config.Username,
			Token:    token,
			Host:     host,
			Port:     port,
		}))
	default:
		return fmt.Errorf("unsupported auth mechanism: %s", s.config.Auth)
	}
}

// Session is one selected IMAP mailbox. Message ids are UIDs.
type Session struct {
	client *client.Client
	owner  string
	total  uint32
	logger *zap.Logger
}

// Owner returns the configured mailbox user
func (s *Session) Owner() string {
	return s.owner
}

// ListRecent returns the UIDs of the last limit messages, newest first
func (s *Session) ListRecent(ctx context.Context, limit int) ([]string, error) {
	if s.total == 0 {
		return nil, nil
	}

	from := uint32(1)
	if limit > 0 && s.total > uint32(limit) {
		from = s.total - uint32(limit) + 1
	}
	seqSet := new(goimap.SeqSet)
	seqSet.AddRange(from, s.total)

	messages := make(chan *goimap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqSet, []goimap.FetchItem{goimap.FetchUid}, messages)
	}()

	var uids []uint32
	for msg := range messages {
		uids = append(uids, msg.Uid)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w: %w", core.ErrUpstreamUnavailable, err)
	}

	ids := make([]string, 0, len(uids))
	for i := len(uids) - 1; i >= 0; i-- {
		ids = append(ids, strconv.FormatUint(uint64(uids[i]), 10))
	}
	return ids, nil
}

// Fetch downloads one message by UID without setting the seen flag
func (s *Session) Fetch(ctx context.Context, id string) (*core.Envelope, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid uid %q: %w", id, core.ErrMalformedMessage)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uint32(uid))
	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{section.FetchItem(), goimap.FetchInternalDate}

	messages := make(chan *goimap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var msg *goimap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w: %w", id, core.ErrUpstreamUnavailable, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s not found: %w", id, core.ErrMalformedMessage)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message %s has no body: %w", id, core.ErrMalformedMessage)
	}
	parsed, err := mimetext.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", id, err)
	}

	email := parsed.Envelope(id)
	email.ID = id
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = msg.InternalDate
	}
	return email, nil
}

// Close logs out and closes the connection
func (s *Session) Close() error {
	if err := s.client.Logout(); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}
