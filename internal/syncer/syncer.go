// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"repo-snapshot-sync/internal/model"
	"repo-snapshot-sync/internal/store"
)

// Source lists an account's repositories and their commit histories.
type Source interface {
	ListRepositories(ctx context.Context, username string) ([]model.Repository, error)
	ListCommits(ctx context.Context, owner, name string) ([]model.CommitRecord, error)
}

// Syncer orchestrates one full synchronization pass: enumerate the account's
// repositories, assemble a snapshot per non-empty repository, and hand the
// accumulated sequence to the persistence sink.
type Syncer struct {
	source   Source
	sink     store.Sink
	logger   *slog.Logger
	username string
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(source Source, sink store.Sink, logger *slog.Logger, username string) (*Syncer, error) {
	if username == "" {
		return nil, errors.New("syncer requires a non-empty account username")
	}
	return &Syncer{
		source:   source,
		sink:     sink,
		logger:   logger,
		username: username,
	}, nil
}

// Run performs one synchronization pass and returns the snapshots it wrote.
// Any failure, whether fetching or persisting, aborts the run; writes already
// issued by the sink are not rolled back.
func (s *Syncer) Run(ctx context.Context) ([]model.RepositorySnapshot, error) {
	snapshots, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.sink.Write(ctx, snapshots); err != nil {
		return nil, err
	}

	s.logger.Info("Sync run finished", "username", s.username, "snapshots", len(snapshots))
	return snapshots, nil
}

// Snapshot collects the full repository list for the account and assembles
// one RepositorySnapshot per non-empty repository, in list order. Empty
// repositories are skipped without issuing a commit-listing call. The first
// commit-fetch failure aborts the whole pass.
func (s *Syncer) Snapshot(ctx context.Context) ([]model.RepositorySnapshot, error) {
	repos, err := s.source.ListRepositories(ctx, s.username)
	if err != nil {
		return nil, fmt.Errorf("list repositories for %s: %w", s.username, err)
	}
	s.logger.Info("Collected repository list", "username", s.username, "count", len(repos))

	snapshots := make([]model.RepositorySnapshot, 0, len(repos))
	for _, repo := range repos {
		if repo.Size == 0 {
			s.logger.Debug("Skipping empty repository", "owner", repo.Owner, "repo", repo.Name)
			continue
		}

		commits, err := s.source.ListCommits(ctx, repo.Owner, repo.Name)
		if err != nil {
			return nil, fmt.Errorf("list commits for %s/%s: %w", repo.Owner, repo.Name, err)
		}
		s.logger.Debug("Collected commit history", "owner", repo.Owner, "repo", repo.Name, "commits", len(commits))

		snapshots = append(snapshots, assembleSnapshot(repo, commits))
	}

	return snapshots, nil
}

// assembleSnapshot maps fetched repository metadata and its commit history
// into the persisted snapshot shape. Pure field mapping, no computation.
func assembleSnapshot(repo model.Repository, commits []model.CommitRecord) model.RepositorySnapshot {
	return model.RepositorySnapshot{
		ID:        repo.ID,
		Name:      repo.Name,
		URL:       repo.URL,
		CreatedAt: repo.CreatedAt,
		UpdatedAt: repo.UpdatedAt,
		Commits:   commits,
	}
}
