// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"repo-snapshot-sync/internal/model"
)

const (
	// Max page size the GitHub API allows on listing endpoints.
	pageSize = 100

	// Retry budget per page fetch.
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// WithBaseURL points the client at an alternate API endpoint. Used by tests
// to target a stub server.
func (c *Client) WithBaseURL(url string) error {
	gh, err := github.NewClient(nil).WithEnterpriseURLs(url, url)
	if err != nil {
		return err
	}
	c.gh = gh
	return nil
}

// ListRepositories fetches every repository owned by the given user,
// translated to our internal model. It handles API pagination transparently
// and only returns once the listing is drained to exhaustion.
func (c *Client) ListRepositories(ctx context.Context, username string) ([]model.Repository, error) {
	repos, err := collectPages(ctx, func(ctx context.Context, page int) ([]*github.Repository, *github.Response, error) {
		c.logger.Debug("Fetching repositories page", "username", username, "page", page)
		opts := &github.RepositoryListByUserOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: pageSize},
		}
		return fetchWithRetry(ctx, c.logger, func() ([]*github.Repository, *github.Response, error) {
			return c.gh.Repositories.ListByUser(ctx, username, opts)
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Repository, len(repos))
	for i, r := range repos {
		out[i] = toRepository(r)
	}
	return out, nil
}

// ListCommits fetches the full commit history of a repository, translated to
// our internal model. It handles API pagination transparently.
func (c *Client) ListCommits(ctx context.Context, owner, name string) ([]model.CommitRecord, error) {
	commits, err := collectPages(ctx, func(ctx context.Context, page int) ([]*github.RepositoryCommit, *github.Response, error) {
		c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", page)
		opts := &github.CommitsListOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: pageSize},
		}
		return fetchWithRetry(ctx, c.logger, func() ([]*github.RepositoryCommit, *github.Response, error) {
			return c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.CommitRecord, len(commits))
	for i, cm := range commits {
		out[i] = toCommitRecord(cm)
	}
	return out, nil
}

// collectPages drains a cursor-paginated listing endpoint into a complete
// in-memory slice. Traversal ends when the API reports no next page or a page
// comes back short of the page size. Any page failure aborts the traversal.
func collectPages[T any](ctx context.Context, fetch func(ctx context.Context, page int) ([]T, *github.Response, error)) ([]T, error) {
	var all []T
	page := 1
	for {
		items, resp, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < pageSize || resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		page = resp.NextPage
	}
}

// fetchWithRetry runs one page fetch with a bounded retry budget. Rate-limit
// responses wait until the advertised reset; 5xx responses back off linearly.
// Anything else is returned to the caller unretried.
func fetchWithRetry[T any](ctx context.Context, logger *slog.Logger, fn func() (T, *github.Response, error)) (T, *github.Response, error) {
	var (
		items T
		resp  *github.Response
		err   error
	)

	for attempt := 1; ; attempt++ {
		items, resp, err = fn()
		if err == nil || attempt >= maxRetries {
			return items, resp, err
		}

		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			wait := time.Until(rateErr.Rate.Reset.Time)
			logger.Warn("Rate limited by GitHub, waiting for reset", "wait", wait.String())
			if serr := sleepCtx(ctx, wait); serr != nil {
				return items, resp, serr
			}
			continue
		}

		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode >= 500 {
			delay := baseRetryDelay * time.Duration(attempt)
			logger.Warn("GitHub server error, retrying", "status", ghErr.Response.StatusCode, "attempt", attempt, "delay", delay.String())
			if serr := sleepCtx(ctx, delay); serr != nil {
				return items, resp, serr
			}
			continue
		}

		return items, resp, err
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// toRepository translates a github.Repository object to our internal
// model.Repository. Optional timestamps null-coalesce to nil.
func toRepository(r *github.Repository) model.Repository {
	return model.Repository{
		ID:        r.GetID(),
		Owner:     r.GetOwner().GetLogin(),
		Name:      r.GetName(),
		URL:       r.GetHTMLURL(),
		Size:      r.GetSize(),
		CreatedAt: timestampPtr(r.CreatedAt),
		UpdatedAt: timestampPtr(r.UpdatedAt),
	}
}

// toCommitRecord translates a github.RepositoryCommit object to our internal
// model.CommitRecord. A commit without author metadata has no authored date.
func toCommitRecord(c *github.RepositoryCommit) model.CommitRecord {
	rec := model.CommitRecord{
		SHA:     c.GetSHA(),
		Message: c.GetCommit().GetMessage(),
		URL:     c.GetHTMLURL(),
	}
	if author := c.GetCommit().GetAuthor(); author != nil && author.Date != nil {
		t := author.Date.Time
		rec.AuthoredAt = &t
	}
	return rec
}

func timestampPtr(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
