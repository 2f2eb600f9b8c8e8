package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisPrefix = "triage:classifier:"

// RedisStore keeps each owner's record in a redis hash
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore connects to redis using a redis:// URL
func NewRedisStore(redisURL, prefix string, logger *zap.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Using redis classifier store", zap.String("addr", opt.Addr))
	return NewRedisStoreWithClient(client, prefix, logger), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// Load returns the owner's record
func (s *RedisStore) Load(ctx context.Context, owner string) (*core.ClassifierRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get classifier: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}

	rec := &core.ClassifierRecord{
		Owner:   owner,
		Payload: []byte(fields["payload"]),
	}
	if v, err := strconv.ParseInt(fields["version"], 10, 64); err == nil {
		rec.Version = v
	}
	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		rec.UpdatedAt = time.UnixMilli(ms)
	}
	return rec, nil
}

// Save replaces the owner's hash
func (s *RedisStore) Save(ctx context.Context, rec *core.ClassifierRecord) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	err := s.client.HSet(ctx, s.key(rec.Owner),
		"version", rec.Version,
		"payload", rec.Payload,
		"updated_at", updated.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save classifier: %w", err)
	}
	return nil
}

// Delete removes the owner's hash
func (s *RedisStore) Delete(ctx context.Context, owner string) error {
	n, err := s.client.Del(ctx, s.key(owner)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete classifier: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(owner string) string {
	return s.prefix + owner
}
