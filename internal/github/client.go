// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"commit-ingester/internal/model"
)

// DefaultTimeout is the HTTP timeout applied to every API request.
const DefaultTimeout = 30 * time.Second

// Options configures a Client for a single repository.
type Options struct {
	Token string
	// BaseURL overrides the public API host, e.g. for GitHub Enterprise or tests.
	BaseURL string
	Owner   string
	Repo    string
	// RequestsPerSecond throttles list/detail calls on the client side. Zero disables it.
	RequestsPerSecond float64
}

// Client is a wrapper around the go-github client bound to one repository.
type Client struct {
	gh      *github.Client
	owner   string
	repo    string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: opts.Token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout

	gh := github.NewClient(tc)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse api url %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		gh:      gh,
		owner:   opts.Owner,
		repo:    opts.Repo,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

// Quota reads the core rate limit bucket. The rate_limit endpoint does not consume quota.
func (c *Client) Quota(ctx context.Context) (model.QuotaState, error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return model.QuotaState{}, wrapError(err, "get rate limit")
	}
	core := limits.GetCore()
	if core == nil {
		return model.QuotaState{}, errors.New("get rate limit: response has no core bucket")
	}
	return model.QuotaState{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		ResetAt:   core.Reset.Time,
	}, nil
}

// FetchPage lists one page of commits authored on or after since.
// An empty slice with a nil error means there are no more pages.
func (c *Client) FetchPage(ctx context.Context, page, perPage int, since time.Time) ([]model.CommitSummary, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	opts := &github.CommitsListOptions{
		Since: since,
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	c.logger.Debug("Fetching commits page", "owner", c.owner, "repo", c.repo, "page", page)
	commits, _, err := c.gh.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
	if err != nil {
		return nil, wrapError(err, "list commits")
	}

	summaries := make([]model.CommitSummary, 0, len(commits))
	for _, commit := range commits {
		summaries = append(summaries, toCommitSummary(commit))
	}
	return summaries, nil
}

// FetchDetail looks up a single commit for its modified files and stats.
func (c *Client) FetchDetail(ctx context.Context, sha string) (model.CommitDetail, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.CommitDetail{}, fmt.Errorf("rate limit wait: %w", err)
	}

	commit, _, err := c.gh.Repositories.GetCommit(ctx, c.owner, c.repo, sha, nil)
	if err != nil {
		return model.CommitDetail{}, wrapError(err, "get commit")
	}
	return toCommitDetail(commit), nil
}

// toCommitSummary translates a listed github.RepositoryCommit to our internal model.
func toCommitSummary(c *github.RepositoryCommit) model.CommitSummary {
	parents := make([]string, 0, len(c.Parents))
	for _, p := range c.Parents {
		parents = append(parents, p.GetSHA())
	}
	return model.CommitSummary{
		SHA:       c.GetSHA(),
		Author:    toSignature(c.GetCommit().GetAuthor()),
		Committer: toSignature(c.GetCommit().GetCommitter()),
		Message:   c.GetCommit().GetMessage(),
		URL:       c.GetHTMLURL(),
		Parents:   parents,
	}
}

// toCommitDetail keeps only files and stats; a missing files or stats object yields zero values.
func toCommitDetail(c *github.RepositoryCommit) model.CommitDetail {
	files := make([]model.FileChange, 0, len(c.Files))
	for _, f := range c.Files {
		files = append(files, model.FileChange{
			Path:         f.GetFilename(),
			PreviousPath: f.GetPreviousFilename(),
			Status:       f.GetStatus(),
			Additions:    f.GetAdditions(),
			Deletions:    f.GetDeletions(),
			Changes:      f.GetChanges(),
		})
	}
	stats := c.GetStats()
	return model.CommitDetail{
		Files: files,
		Stats: model.Stats{
			Total:     stats.GetTotal(),
			Additions: stats.GetAdditions(),
			Deletions: stats.GetDeletions(),
		},
	}
}

func toSignature(a *github.CommitAuthor) model.Signature {
	return model.Signature{
		Name:  a.GetName(),
		Email: a.GetEmail(),
		Date:  a.GetDate().Time,
	}
}
