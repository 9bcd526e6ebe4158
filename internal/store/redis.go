// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"repo-snapshot-sync/internal/model"
)

const snapshotKeyPrefix = "snapshot"

// RedisSink stores each snapshot as one JSON document keyed by repository id.
// SET overwrites any prior document, so every write is an idempotent upsert.
type RedisSink struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisSink creates a Redis-backed snapshot sink.
func NewRedisSink(client *redis.Client, logger *slog.Logger) *RedisSink {
	return &RedisSink{client: client, logger: logger}
}

func (s *RedisSink) Write(ctx context.Context, snapshots []model.RepositorySnapshot) error {
	for _, snap := range snapshots {
		if snap.Commits == nil {
			snap.Commits = []model.CommitRecord{}
		}
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %d: %w", snap.ID, err)
		}

		key := snapshotKey(snap.ID)
		err = withRetry(ctx, func() error {
			return s.client.Set(ctx, key, payload, 0).Err()
		})
		if err != nil {
			return fmt.Errorf("store snapshot %d: %w", snap.ID, err)
		}
		s.logger.Debug("Stored snapshot", "key", key, "name", snap.Name)
	}

	s.logger.Info("Redis sink finished", "snapshots", len(snapshots))
	return nil
}

// GetSnapshot fetches one persisted snapshot by repository id.
func (s *RedisSink) GetSnapshot(ctx context.Context, id int64) (*model.RepositorySnapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap model.RepositorySnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode stored snapshot %d: %w", id, err)
	}
	return &snap, nil
}

func snapshotKey(id int64) string {
	return fmt.Sprintf("%s:%d", snapshotKeyPrefix, id)
}
