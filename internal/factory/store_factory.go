package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/deadline-triage/internal/adapters/store"
	"github.com/mikey/deadline-triage/internal/classifier"
	"github.com/mikey/deadline-triage/internal/config"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/mikey/deadline-triage/internal/utils"
	"go.uber.org/zap"
)

// StoreFactory creates classifier repositories and the classifier store
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRepository creates a classifier repository based on the configuration
func (f *StoreFactory) CreateRepository() (core.ClassifierRepository, error) {
	sc := f.cfg.GetStore()

	switch sc.Type {
	case "memory":
		return store.NewMemoryStore(f.logger), nil
	case "file":
		return store.NewFileStore(sc.Dir, f.logger)
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sc.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(sc.SQLitePath, f.logger)
	case "mysql":
		return store.NewMySQLStore(sc.MySQLDSN, f.logger)
	case "postgres":
		return store.NewPostgresStore(sc.PostgresDSN, f.logger)
	case "redis":
		return store.NewRedisStore(sc.RedisURL, sc.RedisPrefix, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// CreateClassifierStore wraps the repository with the configured model parameters
func (f *StoreFactory) CreateClassifierStore(repo core.ClassifierRepository, tp *utils.TextProcessor) (*classifier.Store, error) {
	cc, err := f.cfg.GetClassifier()
	if err != nil {
		return nil, err
	}

	sc := classifier.DefaultStoreConfig()
	sc.Alpha = cc.Alpha
	sc.Space.Dimensions = cc.Dimensions
	sc.MaxInputBytes = cc.MaxInputBytes

	f.logger.Info("Classifier store ready",
		zap.String("store", f.cfg.GetStore().Type),
		zap.Float64("alpha", sc.Alpha),
		zap.Uint32("n_features", sc.Space.Dimensions))
	return classifier.NewStore(repo, tp, sc, f.logger), nil
}
