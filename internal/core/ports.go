package core

import (
	"context"
	"time"
)

// MailSource opens authenticated sessions against a mail provider
type MailSource interface {
	// Open authenticates with a bearer credential and resolves the owner
	Open(ctx context.Context, token string) (MailSession, error)
}

// MailSession is an authenticated view of one mailbox
type MailSession interface {
	// Owner returns the normalized mailbox identity
	Owner() string

	// ListRecent returns the ids of the most recent messages
	ListRecent(ctx context.Context, limit int) ([]string, error)

	// Fetch retrieves one message with its plain text body
	Fetch(ctx context.Context, id string) (*Envelope, error)

	// Close releases the session
	Close() error
}

// TokenExchanger trades an OAuth authorization code for a token payload
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (map[string]interface{}, error)
}

// ClassifierRepository persists classifier records keyed by owner
type ClassifierRepository interface {
	// Load returns ErrNotFound when no record exists
	Load(ctx context.Context, owner string) (*ClassifierRecord, error)

	// Save stores the record, replacing any previous one
	Save(ctx context.Context, record *ClassifierRecord) error

	// Delete removes a record
	Delete(ctx context.Context, owner string) error

	// Close releases the underlying storage
	Close() error
}

// RelevanceClassifier decides whether a message matters to its owner
type RelevanceClassifier interface {
	// Classify returns 1 for relevant and 0 for noise
	Classify(ctx context.Context, owner string, email *Envelope) (int, error)

	// ForOwner loads the owner's model once for scoring a batch of messages
	ForOwner(ctx context.Context, owner string) (EnvelopeScorer, error)

	// Learn applies one labeled example to the owner's model
	Learn(ctx context.Context, owner string, text string, important bool) error
}

// EnvelopeScorer scores messages against one loaded model
type EnvelopeScorer interface {
	// Score returns 1 for relevant and 0 for noise
	Score(email *Envelope) int
}

// DeadlineExtractor finds the best deadline in free text
type DeadlineExtractor interface {
	Extract(text string, reference time.Time) Extraction
}

// ReminderScheduler arranges a notification ahead of a deadline
type ReminderScheduler interface {
	Schedule(deadline *Deadline) time.Time
}

// Timer runs a callback once at a given time
type Timer interface {
	ScheduleAt(at time.Time, job func())
}

// Notifier delivers a notification
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// KeywordGuard flags subjects that must never be dropped as noise
type KeywordGuard interface {
	IsExplicitlyImportant(subject string) bool
}
