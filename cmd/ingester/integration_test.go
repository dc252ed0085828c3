//go:build integration

// cmd/ingester/integration_test.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commit-ingester/internal/config"
	"commit-ingester/internal/ingest"
	"commit-ingester/internal/store"
	"commit-ingester/internal/store/storetest"
)

// fakeGitHub serves rate_limit, one page of two commits and their details.
// Commits listed in failDetail answer 500 on the detail endpoint.
func fakeGitHub(t *testing.T, failDetail map[string]bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"resources": {"core": {"limit": 5000, "remaining": 4999, "reset": %d}}}`, time.Now().Add(time.Hour).Unix())
	})
	mux.HandleFunc("/repos/test-owner/test-repo/commits", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprintln(w, `[]`)
			return
		}
		fmt.Fprintln(w, `[
			{"sha": "abc", "html_url": "url1", "commit": {"author": {"name": "tester", "email": "t@t.com", "date": "2024-01-01T12:00:00Z"}, "message": "feat: new feature"}},
			{"sha": "def", "html_url": "url2", "commit": {"author": {"name": "tester", "email": "t@t.com", "date": "2024-01-02T12:00:00Z"}, "message": "fix: a bug"}}
		]`)
	})
	mux.HandleFunc("/repos/test-owner/test-repo/commits/{sha}", func(w http.ResponseWriter, r *http.Request) {
		sha := r.PathValue("sha")
		if failDetail[sha] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"sha": %q, "stats": {"total": 3, "additions": 2, "deletions": 1},
			"files": [{"filename": "%s.go", "status": "modified", "additions": 2, "deletions": 1, "changes": 3}]}`, sha, sha)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(dbURL, apiURL string) *config.Config {
	return &config.Config{
		DBURL:             dbURL,
		GithubToken:       "test-token",
		GithubAPIURL:      apiURL,
		Repository:        "test-owner/test-repo",
		Owner:             "test-owner",
		Repo:              "test-repo",
		ProjectID:         "test-repo",
		SinceTime:         time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		PageSize:          config.MaxPageSize,
		DetailConcurrency: 2,
	}
}

func TestIngester_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	t.Run("reruns are idempotent", func(t *testing.T) {
		dbpool, connStr := storetest.SetupTestDatabase(ctx, t)
		cfg := testConfig(connStr, fakeGitHub(t, nil).URL)

		res, err := ingestRepository(ctx, cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, ingest.StateDone, res.State)
		assert.Equal(t, 2, res.Pages)
		assert.Equal(t, 2, res.Inserted)
		assert.Equal(t, exitDone, exitCode(res, err))

		res, err = ingestRepository(ctx, cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Inserted)
		assert.Equal(t, 2, res.Duplicate)

		db := store.NewPostgres(dbpool)
		total, err := db.CountCommits(ctx, "test-repo")
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		rec, err := db.GetCommit(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "feat: new feature", rec.Message)
		assert.Equal(t, "url1", rec.URL)
		require.Len(t, rec.ModifiedFiles, 1)
		assert.Equal(t, "abc.go", rec.ModifiedFiles[0].Path)
		assert.Equal(t, 3, rec.Stats.Total)
		assert.NotEmpty(t, res.RunID)
	})

	t.Run("failed detail skips only that commit", func(t *testing.T) {
		dbpool, connStr := storetest.SetupTestDatabase(ctx, t)
		cfg := testConfig(connStr, fakeGitHub(t, map[string]bool{"abc": true}).URL)

		res, err := ingestRepository(ctx, cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, ingest.StateDone, res.State)
		assert.Equal(t, 1, res.Inserted)
		assert.Equal(t, 1, res.Failed)

		db := store.NewPostgres(dbpool)
		_, err = db.GetCommit(ctx, "def")
		require.NoError(t, err)
		_, err = db.GetCommit(ctx, "abc")
		require.Error(t, err)
	})
}
