package core

import (
	"time"
)

// Envelope represents one fetched mail message
type Envelope struct {
	ID         string
	ThreadID   string
	Subject    string
	Sender     string
	Snippet    string
	Body       string
	ReceivedAt time.Time

	// LocalID is set when ID is not a Gmail message id, so no app link can be built
	LocalID bool
}

// Text returns the best available body text, falling back to the snippet
func (e *Envelope) Text() string {
	if e.Body != "" {
		return e.Body
	}
	return e.Snippet
}

// Deadline is the extraction result handed to the reminder scheduler
type Deadline struct {
	MessageID string    `json:"email_id"`
	Subject   string    `json:"subject"`
	Sender    string    `json:"sender"`
	Instant   time.Time `json:"deadline_time"`
	Snippet   string    `json:"snippet"`

	// Owner, Found and LocalID are not part of the wire shape
	Owner   string `json:"-"`
	Found   bool   `json:"-"`
	LocalID bool   `json:"-"`
}

// DeadlineCandidate is a text span resolved to an absolute instant during extraction
type DeadlineCandidate struct {
	MatchedText          string
	ResolvedInstant      time.Time
	MinutesFromReference float64
}

// ExtractionPhase names the phase that produced an extraction result
type ExtractionPhase string

const (
	PhaseNone     ExtractionPhase = "none"
	PhaseExplicit ExtractionPhase = "on_or_before"
	PhaseScan     ExtractionPhase = "scan"
)

// Extraction is the outcome of a deadline extraction.
// Instant equals the reference time when Found is false.
type Extraction struct {
	Instant time.Time
	Found   bool
	Phase   ExtractionPhase
	Matched string
}

// OutcomeStatus categorizes what happened to one message during a batch
type OutcomeStatus string

const (
	OutcomeKept          OutcomeStatus = "kept"
	OutcomeKeptSafeguard OutcomeStatus = "kept_safeguard"
	OutcomeSkippedNoise  OutcomeStatus = "skipped_noise"
	OutcomeFailed        OutcomeStatus = "failed"
)

// Outcome is the per-message result aggregated by batch operations
type Outcome struct {
	MessageID string
	Status    OutcomeStatus
	Reason    string
	Deadline  *Deadline
}

// Kept reports whether the message produced a deadline
func (o Outcome) Kept() bool {
	return o.Status == OutcomeKept || o.Status == OutcomeKeptSafeguard
}

// SyncReport aggregates the outcomes of a sync
type SyncReport struct {
	Owner     string
	Outcomes  []Outcome
	Deadlines []*Deadline
}

// Count returns the number of outcomes with the given status
func (r *SyncReport) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// FeedbackRequest carries a user's relevance label for one message
type FeedbackRequest struct {
	MessageID string
	Subject   string
	Snippet   string
	Important bool
}

// IngestMessage is a message pushed by an external script
type IngestMessage struct {
	MessageID string
	Subject   string
	Snippet   string
	ThreadID  string
}

// IngestItem is the per-message result of an ingest
type IngestItem struct {
	MessageID string    `json:"email_id"`
	Deadline  time.Time `json:"deadline"`
}

// IngestReport aggregates an ingest batch
type IngestReport struct {
	Items    []IngestItem
	Outcomes []Outcome
}

// Notification is the payload handed to a notification sink
type Notification struct {
	Recipient string
	Title     string
	Message   string
	DeepLink  string
	Priority  string
	FiredAt   time.Time
}

// ClassifierRecord is the persisted form of one classifier
type ClassifierRecord struct {
	Owner     string
	Version   int64
	Payload   []byte
	UpdatedAt time.Time
}
