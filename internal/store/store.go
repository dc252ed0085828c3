// internal/store/store.go
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"commit-ingester/internal/model"
)

// Store is the persistence interface for commit records.
type Store interface {
	// Insert stores rec, or returns errors.ErrDuplicateKey if its SHA is already present.
	Insert(ctx context.Context, rec *model.CommitRecord) error
	GetCommit(ctx context.Context, sha string) (*model.CommitRecord, error)
	CountCommits(ctx context.Context, projectID string) (int64, error)
	Ping(ctx context.Context) error
}

// DBTX is the subset of *pgxpool.Pool the Postgres store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}
