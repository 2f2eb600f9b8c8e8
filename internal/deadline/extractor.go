package deadline

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"github.com/mikey/deadline-triage/internal/utils"
	"go.uber.org/zap"
)

var explicitPhrase = regexp.MustCompile(`(?i)on or before\s+(.{5,30})`)

// Config tunes the general scan
type Config struct {
	// ScanLimit caps the characters considered by the general scan
	ScanLimit int
	// MinLead and MaxLead bound candidates relative to the reference time, both exclusive
	MinLead time.Duration
	MaxLead time.Duration
}

// DefaultConfig returns the stock extraction window
func DefaultConfig() Config {
	return Config{
		ScanLimit: 4000,
		MinLead:   30 * time.Minute,
		MaxLead:   525600 * time.Minute,
	}
}

// Extractor finds the most likely deadline mentioned in free text
type Extractor struct {
	config Config
	logger *zap.Logger
}

// NewExtractor creates a new deadline extractor
func NewExtractor(config Config, logger *zap.Logger) *Extractor {
	def := DefaultConfig()
	if config.ScanLimit <= 0 {
		config.ScanLimit = def.ScanLimit
	}
	if config.MinLead <= 0 {
		config.MinLead = def.MinLead
	}
	if config.MaxLead <= 0 {
		config.MaxLead = def.MaxLead
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{config: config, logger: logger}
}

// Extract returns the best deadline found in text, or reference when none qualifies.
// An "on or before" phrase wins outright; otherwise the furthest candidate inside
// the lead window is chosen.
func (e *Extractor) Extract(text string, reference time.Time) core.Extraction {
	clean := utils.CollapseWhitespace(text)

	if m := explicitPhrase.FindStringSubmatch(clean); m != nil {
		span := m[1]
		if cands := Candidates(span, reference); len(cands) > 0 {
			e.logger.Debug("Found explicit deadline phrase",
				zap.String("span", span),
				zap.Time("deadline", cands[0].ResolvedInstant))
			return core.Extraction{
				Instant: cands[0].ResolvedInstant,
				Found:   true,
				Phase:   core.PhaseExplicit,
				Matched: cands[0].MatchedText,
			}
		}
	}

	scanned := Candidates(utils.TruncateRunes(clean, e.config.ScanLimit), reference)
	valid := filterCandidates(scanned, e.config.MinLead, e.config.MaxLead)
	if len(valid) == 0 {
		e.logger.Debug("No deadline candidates",
			zap.Int("scanned", len(scanned)))
		return core.Extraction{Instant: reference, Phase: core.PhaseNone}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].ResolvedInstant.Before(valid[j].ResolvedInstant)
	})
	best := valid[len(valid)-1]

	e.logger.Debug("Selected deadline",
		zap.Int("scanned", len(scanned)),
		zap.Int("valid", len(valid)),
		zap.String("matched", best.MatchedText),
		zap.Time("deadline", best.ResolvedInstant))

	return core.Extraction{
		Instant: best.ResolvedInstant,
		Found:   true,
		Phase:   core.PhaseScan,
		Matched: best.MatchedText,
	}
}

// Candidates lists every date or time expression in text, in order of appearance,
// resolved against reference. Overlapping hits keep the earliest, longest one.
// Spans that fail to resolve are dropped.
func Candidates(text string, reference time.Time) []core.DeadlineCandidate {
	lower := strings.ToLower(text)

	type hit struct {
		match
		resolve resolver
	}
	var hits []hit
	for _, p := range patterns {
		for _, m := range findAll(p, lower) {
			hits = append(hits, hit{match: m, resolve: p.resolve})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].end-hits[i].start > hits[j].end-hits[j].start
	})

	var out []core.DeadlineCandidate
	taken := -1
	for _, h := range hits {
		if h.start < taken {
			continue
		}
		t, ok := h.resolve(h.match, reference)
		if !ok {
			continue
		}
		taken = h.end
		out = append(out, core.DeadlineCandidate{
			MatchedText:          strings.TrimSpace(h.text),
			ResolvedInstant:      t,
			MinutesFromReference: t.Sub(reference).Minutes(),
		})
	}
	return out
}

// filterCandidates keeps candidates strictly inside (minLead, maxLead) of the reference
func filterCandidates(cands []core.DeadlineCandidate, minLead, maxLead time.Duration) []core.DeadlineCandidate {
	lo, hi := minLead.Minutes(), maxLead.Minutes()
	var out []core.DeadlineCandidate
	for _, c := range cands {
		if c.MinutesFromReference > lo && c.MinutesFromReference < hi {
			out = append(out, c)
		}
	}
	return out
}
