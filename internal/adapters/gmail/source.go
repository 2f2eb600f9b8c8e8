package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mikey/deadline-triage/internal/adapters/mimetext"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const snippetLength = 200

// Source opens Gmail API sessions with a caller supplied access token
type Source struct {
	breaker *gobreaker.CircuitBreaker
	options []option.ClientOption
	logger  *zap.Logger
}

// NewSource creates a Gmail source. Extra client options are applied to every session.
func NewSource(logger *zap.Logger, opts ...option.ClientOption) *Source {
	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Source{
		breaker: gobreaker.NewCircuitBreaker(settings),
		options: opts,
		logger:  logger,
	}
}

// Open builds a Gmail client for the token and resolves the mailbox address
func (s *Source) Open(ctx context.Context, token string) (core.MailSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("missing access token: %w", core.ErrUnauthorized)
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		})),
	}, s.options...)

	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w: %w", core.ErrUpstreamUnavailable, err)
	}

	session := &Session{svc: svc, source: s}

	var profile *gmailapi.Profile
	err = s.execute(func() error {
		var err error
		profile, err = svc.Users.GetProfile("me").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("get profile", err)
	}

	session.owner = strings.ToLower(strings.TrimSpace(profile.EmailAddress))
	if session.owner == "" {
		return nil, fmt.Errorf("profile has no email address: %w", core.ErrUnauthorized)
	}
	return session, nil
}

// State returns the circuit breaker state
func (s *Source) State() string {
	return s.breaker.State().String()
}

func (s *Source) execute(fn func() error) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// isClientError reports errors caused by the request rather than the upstream.
// They do not count toward tripping the breaker.
func isClientError(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429
}

// classify maps a Gmail API failure onto the core error taxonomy
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("failed to %s: %w: %w", op, core.ErrUnauthorized, err)
		case 400, 404:
			return fmt.Errorf("failed to %s: %w: %w", op, core.ErrMalformedMessage, err)
		}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("failed to %s: %w: %w", op, core.ErrUnauthorized, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, core.ErrUpstreamUnavailable, err)
}

// Session is one authenticated Gmail mailbox
type Session struct {
	svc    *gmailapi.Service
	source *Source
	owner  string
}

// Owner returns the lower-cased mailbox address
func (s *Session) Owner() string {
	return s.owner
}

// ListRecent returns the ids of the newest messages, newest first
func (s *Session) ListRecent(ctx context.Context, limit int) ([]string, error) {
	call := s.svc.Users.Messages.List("me")
	if limit > 0 {
		call = call.MaxResults(int64(limit))
	}

	var resp *gmailapi.ListMessagesResponse
	err := s.source.execute(func() error {
		var err error
		resp, err = call.Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("list messages", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

// Fetch downloads one message in full format and extracts its text
func (s *Session) Fetch(ctx context.Context, id string) (*core.Envelope, error) {
	var msg *gmailapi.Message
	err := s.source.execute(func() error {
		var err error
		msg, err = s.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("fetch message "+id, err)
	}
	return toEnvelope(msg), nil
}

// Close is a no-op; the HTTP client holds no per-session resources
func (s *Session) Close() error {
	return nil
}

func toEnvelope(msg *gmailapi.Message) *core.Envelope {
	email := &core.Envelope{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  html.UnescapeString(msg.Snippet),
	}
	if msg.InternalDate > 0 {
		email.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}

	var plain, markup strings.Builder
	if msg.Payload != nil {
		email.Subject = header(msg.Payload.Headers, "Subject")
		email.Sender = header(msg.Payload.Headers, "From")
		extractBody(msg.Payload, &plain, &markup, 0)
	}

	email.Body = mimetext.PreferText(plain.String(), markup.String())
	if email.Snippet == "" {
		email.Snippet = mimetext.Snippet(email.Body, snippetLength)
	}
	return email
}

func extractBody(part *gmailapi.MessagePart, plain, markup *strings.Builder, depth int) {
	if part == nil || depth > 10 {
		return
	}
	if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
		if data, ok := decodeData(part.Body.Data); ok {
			switch part.MimeType {
			case "text/plain":
				plain.WriteString(data)
				plain.WriteString("\n")
			case "text/html":
				markup.WriteString(data)
				markup.WriteString("\n")
			}
		}
	}
	for _, p := range part.Parts {
		extractBody(p, plain, markup, depth+1)
	}
}

// decodeData accepts padded and unpadded base64url bodies
func decodeData(data string) (string, bool) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b), true
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b), true
	}
	return "", false
}

func header(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return strings.TrimSpace(h.Value)
		}
	}
	return ""
}
