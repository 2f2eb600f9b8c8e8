package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSubject = "No Subject"
	defaultSender  = "Unknown Sender"
)

// TriageService is the core service tying classification, extraction and reminders together
type TriageService struct {
	source       MailSource
	exchanger    TokenExchanger
	classifier   RelevanceClassifier
	extractor    DeadlineExtractor
	scheduler    ReminderScheduler
	guard        KeywordGuard
	logger       *zap.Logger
	maxResults   int
	ingestSender string
	now          func() time.Time
}

// NewTriageService creates a new triage service
func NewTriageService(
	source MailSource,
	exchanger TokenExchanger,
	classifier RelevanceClassifier,
	extractor DeadlineExtractor,
	scheduler ReminderScheduler,
	guard KeywordGuard,
	logger *zap.Logger,
	maxResults int,
	ingestSender string,
) *TriageService {
	return &TriageService{
		source:       source,
		exchanger:    exchanger,
		classifier:   classifier,
		extractor:    extractor,
		scheduler:    scheduler,
		guard:        guard,
		logger:       logger,
		maxResults:   maxResults,
		ingestSender: ingestSender,
		now:          time.Now,
	}
}

// SetClock replaces the time source used for ingest reference times
func (s *TriageService) SetClock(now func() time.Time) {
	s.now = now
}

// Sync pulls the owner's recent messages and schedules reminders for relevant ones.
// Per-message failures are recorded in the report and never abort the batch.
func (s *TriageService) Sync(ctx context.Context, token string) (*SyncReport, error) {
	if s.source == nil {
		return nil, fmt.Errorf("mail source: %w", ErrNotConfigured)
	}

	session, err := s.source.Open(ctx, token)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("Failed to close mail session", zap.Error(err))
		}
	}()

	owner := session.Owner()
	ids, err := session.ListRecent(ctx, s.maxResults)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Syncing mailbox", zap.String("owner", owner), zap.Int("messages", len(ids)))

	scorer := s.scorerFor(ctx, owner)
	report := &SyncReport{Owner: owner}
	for _, id := range ids {
		email, err := session.Fetch(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping message that could not be fetched",
				zap.String("owner", owner),
				zap.String("message_id", id),
				zap.Error(err))
			report.Outcomes = append(report.Outcomes, Outcome{
				MessageID: id,
				Status:    OutcomeFailed,
				Reason:    err.Error(),
			})
			continue
		}

		outcome := s.process(owner, email, scorer)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Kept() {
			report.Deadlines = append(report.Deadlines, outcome.Deadline)
		}
	}

	s.logger.Info("Sync complete",
		zap.String("owner", owner),
		zap.Int("deadlines", len(report.Deadlines)),
		zap.Int("skipped", report.Count(OutcomeSkippedNoise)),
		zap.Int("failed", report.Count(OutcomeFailed)))

	return report, nil
}

// ProcessEnvelope runs one message through classification, extraction and scheduling
func (s *TriageService) ProcessEnvelope(ctx context.Context, owner string, email *Envelope) Outcome {
	if email == nil || email.ID == "" {
		return Outcome{Status: OutcomeFailed, Reason: ErrMalformedMessage.Error()}
	}
	return s.process(owner, email, s.scorerFor(ctx, owner))
}

// scorerFor loads the owner's model. A nil scorer keeps every message.
func (s *TriageService) scorerFor(ctx context.Context, owner string) EnvelopeScorer {
	if s.classifier == nil {
		return nil
	}
	scorer, err := s.classifier.ForOwner(ctx, owner)
	if err != nil {
		s.logger.Warn("Classifier unavailable, keeping messages",
			zap.String("owner", owner),
			zap.Error(err))
		return nil
	}
	return scorer
}

func (s *TriageService) process(owner string, email *Envelope, scorer EnvelopeScorer) Outcome {
	if email == nil || email.ID == "" {
		return Outcome{Status: OutcomeFailed, Reason: ErrMalformedMessage.Error()}
	}
	if email.Subject == "" {
		email.Subject = defaultSubject
	}
	if email.Sender == "" {
		email.Sender = defaultSender
	}
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = s.now()
	}

	// Relevant unless the model says otherwise
	prediction := 1
	if scorer != nil {
		prediction = scorer.Score(email)
	}

	status := OutcomeKept
	if prediction == 0 {
		if s.guard == nil || !s.guard.IsExplicitlyImportant(email.Subject) {
			s.logger.Debug("Skipped as noise",
				zap.String("owner", owner),
				zap.String("subject", preview(email.Subject)))
			return Outcome{MessageID: email.ID, Status: OutcomeSkippedNoise}
		}
		s.logger.Info("Safeguard kept message the classifier rejected",
			zap.String("owner", owner),
			zap.String("subject", preview(email.Subject)))
		status = OutcomeKeptSafeguard
	}

	extraction := s.extractor.Extract(email.Subject+" . "+email.Text(), email.ReceivedAt)
	deadline := &Deadline{
		MessageID: email.ID,
		Subject:   email.Subject,
		Sender:    email.Sender,
		Instant:   extraction.Instant,
		Snippet:   email.Snippet,
		Owner:     owner,
		Found:     extraction.Found,
		LocalID:   email.LocalID,
	}
	if s.scheduler != nil {
		s.scheduler.Schedule(deadline)
	}

	return Outcome{MessageID: email.ID, Status: status, Deadline: deadline}
}

// Feedback trains the caller's model with one labeled message and returns the owner
func (s *TriageService) Feedback(ctx context.Context, token string, req *FeedbackRequest) (string, error) {
	if s.source == nil {
		return "", fmt.Errorf("mail source: %w", ErrNotConfigured)
	}

	session, err := s.source.Open(ctx, token)
	if err != nil {
		return "", err
	}
	owner := session.Owner()
	if err := session.Close(); err != nil {
		s.logger.Warn("Failed to close mail session", zap.Error(err))
	}

	text := strings.TrimSpace(req.Subject + " " + req.Snippet)
	if err := s.classifier.Learn(ctx, owner, text, req.Important); err != nil {
		return "", fmt.Errorf("failed to update classifier: %w", err)
	}

	s.logger.Info("Learned from feedback",
		zap.String("owner", owner),
		zap.String("message_id", req.MessageID),
		zap.Bool("important", req.Important))

	return owner, nil
}

// Ingest extracts deadlines for externally pushed messages, using now as the reference time
func (s *TriageService) Ingest(ctx context.Context, messages []IngestMessage) *IngestReport {
	report := &IngestReport{}
	reference := s.now()

	for _, m := range messages {
		if m.MessageID == "" {
			report.Outcomes = append(report.Outcomes, Outcome{
				Status: OutcomeFailed,
				Reason: fmt.Sprintf("%v: missing email_id", ErrMalformedMessage),
			})
			continue
		}

		subject := m.Subject
		extraction := s.extractor.Extract(strings.TrimSpace(subject+" "+m.Snippet), reference)
		if subject == "" {
			subject = defaultSubject
		}

		deadline := &Deadline{
			MessageID: m.MessageID,
			Subject:   subject,
			Sender:    s.ingestSender,
			Instant:   extraction.Instant,
			Snippet:   m.Snippet,
			Found:     extraction.Found,
		}
		if s.scheduler != nil {
			s.scheduler.Schedule(deadline)
		}

		report.Items = append(report.Items, IngestItem{MessageID: m.MessageID, Deadline: deadline.Instant})
		report.Outcomes = append(report.Outcomes, Outcome{MessageID: m.MessageID, Status: OutcomeKept, Deadline: deadline})
	}

	s.logger.Info("Ingested messages", zap.Int("received", len(messages)), zap.Int("processed", len(report.Items)))
	return report
}

// ExchangeCode trades an OAuth authorization code for a token payload
func (s *TriageService) ExchangeCode(ctx context.Context, code string) (map[string]interface{}, error) {
	if s.exchanger == nil {
		return nil, fmt.Errorf("token exchanger: %w", ErrNotConfigured)
	}
	return s.exchanger.Exchange(ctx, code)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 30 {
		return s
	}
	return string(r[:30]) + "..."
}
