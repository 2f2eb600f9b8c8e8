package store

import (
	"context"
	"sync"

	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryStore keeps classifier records in process memory
type MemoryStore struct {
	records map[string]*core.ClassifierRecord
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryStore creates a new in-memory classifier store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*core.ClassifierRecord),
		logger:  logger,
	}
}

// Load returns a copy of the owner's record
func (s *MemoryStore) Load(ctx context.Context, owner string) (*core.ClassifierRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[owner]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyRecord(rec), nil
}

// Save stores a copy of the record
func (s *MemoryStore) Save(ctx context.Context, rec *core.ClassifierRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Owner] = copyRecord(rec)
	return nil
}

// Delete removes the owner's record
func (s *MemoryStore) Delete(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[owner]; !ok {
		return core.ErrNotFound
	}
	delete(s.records, owner)
	s.logger.Debug("Deleted classifier record", zap.String("owner", owner))
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

func copyRecord(rec *core.ClassifierRecord) *core.ClassifierRecord {
	cp := *rec
	cp.Payload = append([]byte(nil), rec.Payload...)
	return &cp
}
