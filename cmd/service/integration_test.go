//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"repo-snapshot-sync/internal/github"
	"repo-snapshot-sync/internal/store"
	"repo-snapshot-sync/internal/syncer"
)

func setupTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pgContainer.Terminate(ctx)) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(dbpool.Close)

	return dbpool
}

// setupGithubStub serves a three-repository account where only the middle
// repository has content.
func setupGithubStub(t *testing.T, commitCalls *int32) *httptest.Server {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/test-user/repos"):
			w.Write([]byte(`[
				{"id": 100, "name": "empty-a", "html_url": "ua", "size": 0, "owner": {"login": "test-user"}},
				{"id": 200, "name": "active", "html_url": "ub", "size": 5, "owner": {"login": "test-user"},
				 "created_at": "2023-05-01T00:00:00Z", "updated_at": "2024-05-01T00:00:00Z"},
				{"id": 300, "name": "empty-b", "html_url": "uc", "size": 0, "owner": {"login": "test-user"}}
			]`))
		case strings.HasSuffix(r.URL.Path, "/repos/test-user/active/commits"):
			atomic.AddInt32(commitCalls, 1)
			w.Write([]byte(`[
				{"sha": "def", "html_url": "url2", "commit": {"message": "fix: a bug", "author": {"date": "2024-01-02T12:00:00Z"}}},
				{"sha": "abc", "html_url": "url1", "commit": {"message": "feat: new feature"}}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestSync_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool := setupTestDatabase(ctx, t)

	var commitCalls int32
	server := setupGithubStub(t, &commitCalls)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ghClient := github.NewClient("", logger)
	require.NoError(t, ghClient.WithBaseURL(server.URL))

	pgStore := store.NewPGStore(dbpool, logger)

	// First pass through the batch sink on an empty store.
	batchSyncer, err := syncer.NewSyncer(ghClient, store.NewPGBatchSink(pgStore, store.ReconcileInsert), logger, "test-user")
	require.NoError(t, err)

	snapshots, err := batchSyncer.Run(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 1, "only the non-empty repository yields a snapshot")
	assert.Equal(t, int32(1), atomic.LoadInt32(&commitCalls), "commit listing issued once")

	snap, err := pgStore.GetSnapshot(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, "active", snap.Name)
	require.Len(t, snap.Commits, 2)
	assert.Equal(t, "def", snap.Commits[0].SHA, "order mirrors the API page order")
	require.NotNil(t, snap.Commits[0].AuthoredAt)
	assert.Nil(t, snap.Commits[1].AuthoredAt, "missing author date stored as null")

	// Empty repositories were never persisted.
	_, err = pgStore.GetSnapshot(ctx, 100)
	assert.ErrorIs(t, err, store.ErrSnapshotNotFound)

	// Re-running through the upsert sink converges to the same stored state.
	upsertSyncer, err := syncer.NewSyncer(ghClient, store.NewPGUpsertSink(pgStore), logger, "test-user")
	require.NoError(t, err)

	_, err = upsertSyncer.Run(ctx)
	require.NoError(t, err)
	afterSecond, err := pgStore.GetSnapshot(ctx, 200)
	require.NoError(t, err)

	_, err = upsertSyncer.Run(ctx)
	require.NoError(t, err)
	afterThird, err := pgStore.GetSnapshot(ctx, 200)
	require.NoError(t, err)

	assert.Equal(t, afterSecond, afterThird, "upsert runs with identical input are idempotent")
}
