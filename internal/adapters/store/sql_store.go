package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
)

// dialect holds the driver specific statements
type dialect struct {
	driver string
	schema string
	upsert string
}

var (
	sqliteDialect = dialect{
		driver: "sqlite3",
		schema: `
			CREATE TABLE IF NOT EXISTS classifiers (
				owner TEXT PRIMARY KEY,
				version INTEGER NOT NULL,
				payload BLOB NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
		upsert: `
			INSERT OR REPLACE INTO classifiers (owner, version, payload, updated_at)
			VALUES (:owner, :version, :payload, :updated_at)`,
	}

	mysqlDialect = dialect{
		driver: "mysql",
		schema: `
			CREATE TABLE IF NOT EXISTS classifiers (
				owner VARCHAR(320) PRIMARY KEY,
				version BIGINT NOT NULL,
				payload LONGBLOB NOT NULL,
				updated_at BIGINT NOT NULL
			)`,
		upsert: `
			INSERT INTO classifiers (owner, version, payload, updated_at)
			VALUES (:owner, :version, :payload, :updated_at)
			ON DUPLICATE KEY UPDATE
				version = VALUES(version),
				payload = VALUES(payload),
				updated_at = VALUES(updated_at)`,
	}

	postgresDialect = dialect{
		driver: "postgres",
		schema: `
			CREATE TABLE IF NOT EXISTS classifiers (
				owner TEXT PRIMARY KEY,
				version BIGINT NOT NULL,
				payload BYTEA NOT NULL,
				updated_at BIGINT NOT NULL
			)`,
		upsert: `
			INSERT INTO classifiers (owner, version, payload, updated_at)
			VALUES (:owner, :version, :payload, :updated_at)
			ON CONFLICT (owner) DO UPDATE SET
				version = EXCLUDED.version,
				payload = EXCLUDED.payload,
				updated_at = EXCLUDED.updated_at`,
	}
)

// classifierRow is the table layout; updated_at is unix milliseconds
type classifierRow struct {
	Owner     string `db:"owner"`
	Version   int64  `db:"version"`
	Payload   []byte `db:"payload"`
	UpdatedAt int64  `db:"updated_at"`
}

// SQLStore persists classifier records in a SQL database
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  *zap.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	return newSQLStore(sqliteDialect, dbPath, logger)
}

// NewMySQLStore connects to MySQL with a go-sql-driver DSN
func NewMySQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	return newSQLStore(mysqlDialect, dsn, logger)
}

// NewPostgresStore connects to PostgreSQL with a lib/pq connection string
func NewPostgresStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	return newSQLStore(postgresDialect, dsn, logger)
}

func newSQLStore(d dialect, dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.driver, err)
	}

	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Using SQL classifier store", zap.String("driver", d.driver))

	return &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
	}, nil
}

// Load returns the owner's record
func (s *SQLStore) Load(ctx context.Context, owner string) (*core.ClassifierRecord, error) {
	var row classifierRow
	query := s.db.Rebind(`SELECT owner, version, payload, updated_at FROM classifiers WHERE owner = ?`)
	if err := s.db.GetContext(ctx, &row, query, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query classifier: %w", err)
	}

	return &core.ClassifierRecord{
		Owner:     row.Owner,
		Version:   row.Version,
		Payload:   row.Payload,
		UpdatedAt: time.UnixMilli(row.UpdatedAt),
	}, nil
}

// Save inserts or replaces the owner's record
func (s *SQLStore) Save(ctx context.Context, rec *core.ClassifierRecord) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	row := classifierRow{
		Owner:     rec.Owner,
		Version:   rec.Version,
		Payload:   rec.Payload,
		UpdatedAt: updated.UnixMilli(),
	}
	if _, err := s.db.NamedExecContext(ctx, s.dialect.upsert, row); err != nil {
		return fmt.Errorf("failed to save classifier: %w", err)
	}
	return nil
}

// Delete removes the owner's record
func (s *SQLStore) Delete(ctx context.Context, owner string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM classifiers WHERE owner = ?`), owner)
	if err != nil {
		return fmt.Errorf("failed to delete classifier: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during delete", zap.Error(err))
		return nil
	}
	if rowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", s.dialect.driver, err)
	}
	return nil
}
