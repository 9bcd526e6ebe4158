// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"repo-snapshot-sync/internal/model"
)

const (
	// Max operations per batch write, matching the provider's batch limit.
	chunkSize = 25

	// Retry budget for idempotent store writes.
	maxRetries     = 3
	baseRetryDelay = 50 * time.Millisecond
)

// Sink persists an accumulated snapshot sequence. Implementations write
// sequentially and abort on the first failure; writes already issued are not
// rolled back.
type Sink interface {
	Write(ctx context.Context, snapshots []model.RepositorySnapshot) error
}

// Reader reads persisted snapshots back for the HTTP API.
type Reader interface {
	GetSnapshot(ctx context.Context, id int64) (*model.RepositorySnapshot, error)
}

// ErrSnapshotNotFound is returned by Reader implementations when no snapshot
// exists for the requested id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// chunk partitions items into fixed-size groups, the last one possibly short.
func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for size < len(items) {
		chunks = append(chunks, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}

// withRetry runs an idempotent store write with a bounded retry budget and
// linear backoff. Only safe for writes that converge on re-application.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(baseRetryDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// commitsJSON renders a snapshot's commit list as a JSON document. A snapshot
// with no commits persists as an empty array, not null.
func commitsJSON(snap model.RepositorySnapshot) ([]byte, error) {
	commits := snap.Commits
	if commits == nil {
		commits = []model.CommitRecord{}
	}
	return json.Marshal(commits)
}
