package safeguard

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultKeywords are subject terms that always keep a message
var DefaultKeywords = []string{
	"deadline", "due date", "submit", "submission",
	"internship", "offer", "schedule", "meeting",
	"urgent", "important", "exam", "quiz", "test",
	"interview", "shortlist", "application", "hackathon",
}

// Checker flags subjects containing a protected keyword
type Checker struct {
	keywords []string
	logger   *zap.Logger
}

// NewChecker creates a new keyword checker. An empty list uses DefaultKeywords.
func NewChecker(keywords []string, logger *zap.Logger) *Checker {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initialized keyword safeguard", zap.Strings("keywords", normalized))

	return &Checker{
		keywords: normalized,
		logger:   logger,
	}
}

// IsExplicitlyImportant reports whether any keyword occurs in the subject.
// Matching is a case-insensitive substring test, so "test" also matches "contest".
func (c *Checker) IsExplicitlyImportant(subject string) bool {
	lower := strings.ToLower(subject)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			c.logger.Debug("Subject matched safeguard keyword",
				zap.String("keyword", kw),
				zap.String("subject", subject))
			return true
		}
	}
	return false
}
