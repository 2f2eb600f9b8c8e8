package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

const fileExt = ".model.json"

// FileStore keeps one file per owner in a directory
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates a new file-backed classifier store, creating dir if needed
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	logger.Info("Using file classifier store", zap.String("dir", dir))
	return &FileStore{dir: dir, logger: logger}, nil
}

// Load reads the owner's record. The file holds a version line followed by the payload.
func (s *FileStore) Load(ctx context.Context, owner string) (*core.ClassifierRecord, error) {
	path := s.path(owner)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read classifier file: %w", err)
	}

	rec := &core.ClassifierRecord{Owner: owner}
	if info, err := os.Stat(path); err == nil {
		rec.UpdatedAt = info.ModTime()
	}

	header, payload, ok := strings.Cut(string(data), "\n")
	if !ok {
		// Unreadable layout is left for the classifier to reject
		rec.Payload = data
		return rec, nil
	}
	if v, err := strconv.ParseInt(header, 10, 64); err == nil {
		rec.Version = v
		rec.Payload = []byte(payload)
	} else {
		rec.Payload = data
	}
	return rec, nil
}

// Save writes the record atomically through a temp file
func (s *FileStore) Save(ctx context.Context, rec *core.ClassifierRecord) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = fmt.Fprintf(tmp, "%d\n", rec.Version)
	if err == nil {
		_, err = tmp.Write(rec.Payload)
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write classifier file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write classifier file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(rec.Owner)); err != nil {
		return fmt.Errorf("failed to replace classifier file: %w", err)
	}
	if !rec.UpdatedAt.IsZero() {
		_ = os.Chtimes(s.path(rec.Owner), time.Now(), rec.UpdatedAt)
	}
	return nil
}

// Delete removes the owner's file
func (s *FileStore) Delete(ctx context.Context, owner string) error {
	if err := os.Remove(s.path(owner)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.ErrNotFound
		}
		return fmt.Errorf("failed to delete classifier file: %w", err)
	}
	s.logger.Debug("Deleted classifier file", zap.String("owner", owner))
	return nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}

// path escapes the owner so addresses map to safe file names
func (s *FileStore) path(owner string) string {
	return filepath.Join(s.dir, url.PathEscape(owner)+fileExt)
}
