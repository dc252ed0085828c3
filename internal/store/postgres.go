package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	custom_errors "commit-ingester/internal/errors"
	"commit-ingester/internal/model"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const insertCommitSQL = `
	INSERT INTO commits (
		sha, project_id,
		author_name, author_email, author_date,
		committer_name, committer_email, committer_date,
		message, commit_date, url, parents, modified_files, stats, run_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (sha) DO NOTHING
`

const getCommitSQL = `
	SELECT sha, project_id,
		author_name, author_email, author_date,
		committer_name, committer_email, committer_date,
		message, commit_date, url, parents, modified_files, stats, run_id, db_created_at
	FROM commits
	WHERE sha = $1
`

// uniqueSHASQL checks the catalog for a single-column unique index (PK or UNIQUE) on commits.sha.
const uniqueSHASQL = `
	SELECT EXISTS (
		SELECT 1
		FROM pg_index i
		JOIN pg_class t ON t.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = i.indkey[0]
		WHERE n.nspname = current_schema()
		  AND t.relname = 'commits'
		  AND i.indisunique
		  AND i.indnatts = 1
		  AND a.attname = 'sha'
	)
`

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	db DBTX
}

// NewPostgres returns a Store backed by db, usually a *pgxpool.Pool owned by the caller.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// EnsureUniqueSHA verifies that the storage layer itself rejects duplicate SHAs.
func (p *Postgres) EnsureUniqueSHA(ctx context.Context) error {
	var ok bool
	if err := p.db.QueryRow(ctx, uniqueSHASQL).Scan(&ok); err != nil {
		return fmt.Errorf("check commits.sha constraint: %w", err)
	}
	if !ok {
		return custom_errors.ErrMissingUniqueConstraint
	}
	return nil
}

// Insert stores rec. First insert wins; later inserts of the same SHA return ErrDuplicateKey.
func (p *Postgres) Insert(ctx context.Context, rec *model.CommitRecord) error {
	files := rec.ModifiedFiles
	if files == nil {
		files = []model.FileChange{}
	}
	parents := rec.Parents
	if parents == nil {
		parents = []string{}
	}

	cmd, err := p.db.Exec(ctx, insertCommitSQL,
		rec.SHA, rec.ProjectID,
		rec.Author.Name, rec.Author.Email, rec.Author.Date,
		rec.Committer.Name, rec.Committer.Email, rec.Committer.Date,
		rec.Message, rec.Date, rec.URL, parents, files, rec.Stats, rec.RunID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return custom_errors.ErrDuplicateKey
		}
		return fmt.Errorf("insert commit %s: %w", rec.SHA, err)
	}
	if cmd.RowsAffected() == 0 {
		return custom_errors.ErrDuplicateKey
	}
	return nil
}

// GetCommit returns the stored record for sha, or ErrCommitNotFound.
func (p *Postgres) GetCommit(ctx context.Context, sha string) (*model.CommitRecord, error) {
	var rec model.CommitRecord
	err := p.db.QueryRow(ctx, getCommitSQL, sha).Scan(
		&rec.SHA, &rec.ProjectID,
		&rec.Author.Name, &rec.Author.Email, &rec.Author.Date,
		&rec.Committer.Name, &rec.Committer.Email, &rec.Committer.Date,
		&rec.Message, &rec.Date, &rec.URL, &rec.Parents, &rec.ModifiedFiles, &rec.Stats, &rec.RunID, &rec.DBCreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, custom_errors.ErrCommitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get commit %s: %w", sha, err)
	}
	return &rec, nil
}

// CountCommits returns the number of stored records for a project.
func (p *Postgres) CountCommits(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM commits WHERE project_id = $1`, projectID).Scan(&n)
	return n, err
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
