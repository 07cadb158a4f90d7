package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotStore mirrors container snapshots to Redis so a restarted or
// scaled-out instance can serve a user's last view without refetching
type SnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotStore creates a snapshot store. Keys live under prefix and
// expire after ttl.
func NewSnapshotStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (s *SnapshotStore) key(userID uuid.UUID, kind string) string {
	return fmt.Sprintf("%s:snapshot:%s:%s", s.prefix, userID, kind)
}

// Save writes v as the snapshot of one kind for a user
func (s *SnapshotStore) Save(ctx context.Context, userID uuid.UUID, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s snapshot: %w", kind, err)
	}

	key := s.key(userID, kind)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}

	s.logger.Debug("saved snapshot",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load reads the snapshot of one kind into dest. It reports false when no
// snapshot is stored.
func (s *SnapshotStore) Load(ctx context.Context, userID uuid.UUID, kind string, dest any) (bool, error) {
	val, err := s.client.Get(ctx, s.key(userID, kind)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get snapshot cache: %w", err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s snapshot: %w", kind, err)
	}
	return true, nil
}

// Invalidate deletes every snapshot of a user and returns how many were removed
func (s *SnapshotStore) Invalidate(ctx context.Context, userID uuid.UUID) (int, error) {
	pattern := s.key(userID, "*")

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan snapshot keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshot keys: %w", err)
	}
	return int(n), nil
}

// Ping checks the Redis connection
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
