// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"repo-snapshot-sync/internal/model"
)

// DB is the subset of *pgxpool.Pool the Postgres store uses.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertSnapshotSQL = `
INSERT INTO repo_snapshots (id, name, url, created_at, updated_at, commits, synced_at)
VALUES ($1, $2, $3, $4, $5, $6, now())`

const upsertSnapshotSQL = insertSnapshotSQL + `
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	url = EXCLUDED.url,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at,
	commits = EXCLUDED.commits,
	synced_at = EXCLUDED.synced_at`

// ReconcilePolicy controls how the batch sink treats an id that already
// exists in the store: blind insert (duplicate keys rejected by the database)
// or field-overwrite upsert.
type ReconcilePolicy string

const (
	ReconcileInsert ReconcilePolicy = "insert"
	ReconcileUpsert ReconcilePolicy = "upsert"
)

// PGStore holds the shared Postgres handle and implements the read side.
type PGStore struct {
	db     DB
	logger *slog.Logger
}

// NewPGStore creates a Postgres-backed snapshot store.
func NewPGStore(db DB, logger *slog.Logger) *PGStore {
	return &PGStore{db: db, logger: logger}
}

// GetSnapshot fetches one persisted snapshot by repository id.
func (s *PGStore) GetSnapshot(ctx context.Context, id int64) (*model.RepositorySnapshot, error) {
	var (
		snap    model.RepositorySnapshot
		commits []byte
	)
	row := s.db.QueryRow(ctx,
		`SELECT id, name, url, created_at, updated_at, commits FROM repo_snapshots WHERE id = $1`, id)
	err := row.Scan(&snap.ID, &snap.Name, &snap.URL, &snap.CreatedAt, &snap.UpdatedAt, &commits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(commits, &snap.Commits); err != nil {
		return nil, fmt.Errorf("decode stored commits for id %d: %w", id, err)
	}
	return &snap, nil
}

// PGBatchSink writes snapshots in fixed-size pgx batches, one insert per
// snapshot, chunks issued strictly one after another. A chunk failure aborts
// the run; earlier chunks stay written.
type PGBatchSink struct {
	*PGStore
	writeSQL string
}

// NewPGBatchSink creates the chunked batch-insert sink.
func NewPGBatchSink(s *PGStore, policy ReconcilePolicy) *PGBatchSink {
	sql := insertSnapshotSQL
	if policy == ReconcileUpsert {
		sql = upsertSnapshotSQL
	}
	return &PGBatchSink{PGStore: s, writeSQL: sql}
}

func (s *PGBatchSink) Write(ctx context.Context, snapshots []model.RepositorySnapshot) error {
	for i, group := range chunk(snapshots, chunkSize) {
		batch := &pgx.Batch{}
		for _, snap := range group {
			commits, err := commitsJSON(snap)
			if err != nil {
				return fmt.Errorf("encode commits for repo %d: %w", snap.ID, err)
			}
			batch.Queue(s.writeSQL, snap.ID, snap.Name, snap.URL, snap.CreatedAt, snap.UpdatedAt, commits)
		}

		if err := s.sendBatch(ctx, batch); err != nil {
			return fmt.Errorf("write snapshot chunk %d: %w", i, err)
		}
		s.logger.Debug("Wrote snapshot chunk", "chunk", i, "size", batch.Len())
	}

	s.logger.Info("Batch sink finished", "snapshots", len(snapshots))
	return nil
}

func (s *PGBatchSink) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

// PGUpsertSink writes one idempotent upsert per snapshot, keyed by repository
// id. Re-running with identical input converges to the same stored state.
type PGUpsertSink struct {
	*PGStore
}

// NewPGUpsertSink creates the per-record upsert sink.
func NewPGUpsertSink(s *PGStore) *PGUpsertSink {
	return &PGUpsertSink{PGStore: s}
}

func (s *PGUpsertSink) Write(ctx context.Context, snapshots []model.RepositorySnapshot) error {
	for _, snap := range snapshots {
		commits, err := commitsJSON(snap)
		if err != nil {
			return fmt.Errorf("encode commits for repo %d: %w", snap.ID, err)
		}

		err = withRetry(ctx, func() error {
			_, err := s.db.Exec(ctx, upsertSnapshotSQL, snap.ID, snap.Name, snap.URL, snap.CreatedAt, snap.UpdatedAt, commits)
			return err
		})
		if err != nil {
			return fmt.Errorf("upsert snapshot %d: %w", snap.ID, err)
		}
		s.logger.Debug("Upserted snapshot", "id", snap.ID, "name", snap.Name)
	}

	s.logger.Info("Upsert sink finished", "snapshots", len(snapshots))
	return nil
}
