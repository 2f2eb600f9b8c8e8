package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"github.com/mikey/deadline-triage/internal/utils"
	"go.uber.org/zap"
)

// BaseOwner is the reserved record key of the shared base classifier
const BaseOwner = "__base__"

// Seed is one labeled example used to train the base classifier
type Seed struct {
	Text  string
	Label int
}

// DefaultSeeds gives the base classifier one noise and one relevant example
var DefaultSeeds = []Seed{
	{Text: "limited time offer discount sale buy now cheap price generic spam", Label: 0},
	{Text: "urgent meeting schedule project deadline internship offer letter application", Label: 1},
}

// StoreConfig holds the parameters every new classifier starts from
type StoreConfig struct {
	Space FeatureSpace
	Alpha float64
	Seeds []Seed

	// MaxInputBytes bounds the body text fed to the feature space. 0 means unlimited.
	MaxInputBytes int
}

// DefaultStoreConfig returns the stock hashing space, regularization and seeds
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Space: NewFeatureSpace(),
		Alpha: DefaultAlpha,
		Seeds: DefaultSeeds,
	}
}

// Store owns the persisted classifiers of every owner and the shared base
type Store struct {
	repo       core.ClassifierRepository
	normalizer *utils.TextProcessor
	config     StoreConfig
	logger     *zap.Logger
	now        func() time.Time

	baseMu    sync.Mutex
	baseReady bool
	base      *UserClassifier

	locks *keyedMutex
}

// NewStore creates a new classifier store
func NewStore(repo core.ClassifierRepository, normalizer *utils.TextProcessor, config StoreConfig, logger *zap.Logger) *Store {
	if config.Space.Dimensions == 0 {
		config.Space = NewFeatureSpace()
	}
	if config.Alpha <= 0 {
		config.Alpha = DefaultAlpha
	}
	if config.Seeds == nil {
		config.Seeds = DefaultSeeds
	}
	if normalizer == nil {
		normalizer = utils.NewTextProcessor(logger)
	}
	return &Store{
		repo:       repo,
		normalizer: normalizer,
		config:     config,
		logger:     logger,
		now:        time.Now,
		locks:      newKeyedMutex(),
	}
}

// GetOrCreate returns the owner's classifier, creating it from the base when
// absent or unreadable
func (s *Store) GetOrCreate(ctx context.Context, owner string) (*UserClassifier, error) {
	unlock := s.locks.Lock(owner)
	defer unlock()

	return s.getOrCreate(ctx, owner)
}

// Update applies one labeled example to the owner's classifier and persists it
func (s *Store) Update(ctx context.Context, owner, text string, important bool) (*UserClassifier, error) {
	unlock := s.locks.Lock(owner)
	defer unlock()

	c, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	label := 0
	if important {
		label = 1
	}
	c.Learn(s.input("", "", text), label)
	c.Version++

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("Updated classifier",
		zap.String("owner", owner),
		zap.Int("label", label),
		zap.Int64("version", c.Version))

	return c, nil
}

// Predict scores text with a loaded classifier using the training normalization
func (s *Store) Predict(c *UserClassifier, text string) int {
	return c.Predict(s.input("", "", text))
}

// Probability returns the relevance probability of text under c
func (s *Store) Probability(c *UserClassifier, text string) float64 {
	return c.Probability(s.input("", "", text))
}

// Classify implements core.RelevanceClassifier
func (s *Store) Classify(ctx context.Context, owner string, email *core.Envelope) (int, error) {
	scorer, err := s.ForOwner(ctx, owner)
	if err != nil {
		return 1, err
	}
	return scorer.Score(email), nil
}

// input normalizes message fields the same way for training and prediction
func (s *Store) input(subject, sender, body string) string {
	return s.normalizer.Normalize(subject, sender, s.normalizer.ProcessText(body, s.config.MaxInputBytes))
}

// ForOwner implements core.RelevanceClassifier. The returned scorer keeps
// the model loaded at call time; later updates are not seen.
func (s *Store) ForOwner(ctx context.Context, owner string) (core.EnvelopeScorer, error) {
	c, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &ownerScorer{store: s, model: c}, nil
}

type ownerScorer struct {
	store *Store
	model *UserClassifier
}

func (o *ownerScorer) Score(email *core.Envelope) int {
	return o.model.Predict(o.store.input(email.Subject, email.Sender, email.Text()))
}

// Learn implements core.RelevanceClassifier
func (s *Store) Learn(ctx context.Context, owner, text string, important bool) error {
	_, err := s.Update(ctx, owner, text, important)
	return err
}

func (s *Store) getOrCreate(ctx context.Context, owner string) (*UserClassifier, error) {
	if owner == "" || owner == BaseOwner {
		return nil, fmt.Errorf("invalid classifier owner %q", owner)
	}

	rec, err := s.repo.Load(ctx, owner)
	switch {
	case err == nil:
		c, decodeErr := Decode(rec)
		if decodeErr == nil {
			c.Owner = owner
			return c, nil
		}
		s.logger.Warn("Corrupt classifier, resetting to base",
			zap.String("owner", owner),
			zap.Error(decodeErr))
		if err := s.repo.Delete(ctx, owner); err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("failed to remove corrupt classifier for %s: %w", owner, err)
		}
	case errors.Is(err, core.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load classifier for %s: %w", owner, err)
	}

	base, err := s.ensureBase(ctx)
	if err != nil {
		return nil, err
	}

	c := base.Clone(owner)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("Created classifier from base", zap.String("owner", owner))
	return c, nil
}

// ensureBase loads or trains the base classifier exactly once per store
func (s *Store) ensureBase(ctx context.Context) (*UserClassifier, error) {
	s.baseMu.Lock()
	defer s.baseMu.Unlock()

	if s.baseReady {
		return s.base, nil
	}

	rec, err := s.repo.Load(ctx, BaseOwner)
	switch {
	case err == nil:
		base, decodeErr := Decode(rec)
		if decodeErr == nil {
			s.base, s.baseReady = base, true
			return s.base, nil
		}
		s.logger.Warn("Corrupt base classifier, retraining", zap.Error(decodeErr))
	case errors.Is(err, core.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load base classifier: %w", err)
	}

	base := s.trainBase()
	if err := s.save(ctx, base); err != nil {
		return nil, err
	}

	s.logger.Info("Created base classifier",
		zap.Int("seeds", len(s.config.Seeds)),
		zap.Uint32("dimensions", base.Space.Dimensions))

	s.base, s.baseReady = base, true
	return s.base, nil
}

func (s *Store) trainBase() *UserClassifier {
	base := &UserClassifier{
		Owner: BaseOwner,
		Space: s.config.Space,
		Model: NewLinearModel(s.config.Alpha),
	}
	for _, seed := range s.config.Seeds {
		base.Learn(seed.Text, seed.Label)
	}
	return base
}

func (s *Store) save(ctx context.Context, c *UserClassifier) error {
	rec, err := Encode(c)
	if err != nil {
		return err
	}
	rec.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save classifier for %s: %w", c.Owner, err)
	}
	return nil
}

// keyedMutex serializes work per key and forgets keys nobody holds
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
