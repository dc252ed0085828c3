//go:build integration

// Package storetest starts a disposable PostgreSQL for integration tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"commit-ingester/internal/store"
)

// SetupTestDatabase starts a postgres container, applies migrations and returns
// a pool plus its connection string. The container is terminated on test cleanup.
func SetupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, store.Migrate(connStr))

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		dbpool.Close()
		require.NoError(t, pgContainer.Terminate(context.Background()))
	})

	return dbpool, connStr
}
