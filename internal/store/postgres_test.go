// internal/store/postgres_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "commit-ingester/internal/errors"
	"commit-ingester/internal/model"
)

// MockDB is a mock of the DBTX interface.
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	called := m.Called(ctx, sql, args)
	return called.Get(0).(pgconn.CommandTag), called.Error(1)
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	called := m.Called(ctx, sql, args)
	return called.Get(0).(pgx.Row)
}

func (m *MockDB) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// rowFunc adapts a function to pgx.Row.
type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func testRecord() *model.CommitRecord {
	return &model.CommitRecord{
		SHA:       "a1",
		ProjectID: "vscode",
		Author:    model.Signature{Name: "tester", Email: "t@t.com", Date: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		Message:   "feat: new feature",
		Stats:     model.Stats{Total: 3, Additions: 2, Deletions: 1},
		RunID:     "run-1",
	}
}

func TestPostgres_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh insert succeeds", func(t *testing.T) {
		db := new(MockDB)
		db.On("Exec", ctx, insertCommitSQL, mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

		err := NewPostgres(db).Insert(ctx, testRecord())

		require.NoError(t, err)
		db.AssertExpectations(t)
	})

	t.Run("nil slices are stored as empty arrays", func(t *testing.T) {
		db := new(MockDB)
		db.On("Exec", ctx, insertCommitSQL, mock.MatchedBy(func(args []any) bool {
			parents, ok := args[11].([]string)
			if !ok || parents == nil {
				return false
			}
			files, ok := args[12].([]model.FileChange)
			return ok && files != nil && len(files) == 0
		})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

		require.NoError(t, NewPostgres(db).Insert(ctx, testRecord()))
		db.AssertExpectations(t)
	})

	t.Run("conflict reports duplicate key", func(t *testing.T) {
		db := new(MockDB)
		db.On("Exec", ctx, insertCommitSQL, mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 0"), nil).Once()

		err := NewPostgres(db).Insert(ctx, testRecord())

		assert.ErrorIs(t, err, custom_errors.ErrDuplicateKey)
	})

	t.Run("unique violation reports duplicate key", func(t *testing.T) {
		db := new(MockDB)
		db.On("Exec", ctx, insertCommitSQL, mock.Anything).Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}).Once()

		err := NewPostgres(db).Insert(ctx, testRecord())

		assert.ErrorIs(t, err, custom_errors.ErrDuplicateKey)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		db := new(MockDB)
		dbError := errors.New("connection reset")
		db.On("Exec", ctx, insertCommitSQL, mock.Anything).Return(pgconn.CommandTag{}, dbError).Once()

		err := NewPostgres(db).Insert(ctx, testRecord())

		assert.ErrorIs(t, err, dbError)
		assert.NotErrorIs(t, err, custom_errors.ErrDuplicateKey)
	})
}

func TestPostgres_EnsureUniqueSHA(t *testing.T) {
	ctx := context.Background()

	scanBool := func(v bool) pgx.Row {
		return rowFunc(func(dest ...any) error {
			*dest[0].(*bool) = v
			return nil
		})
	}

	t.Run("constraint present", func(t *testing.T) {
		db := new(MockDB)
		db.On("QueryRow", ctx, uniqueSHASQL, mock.Anything).Return(scanBool(true)).Once()

		assert.NoError(t, NewPostgres(db).EnsureUniqueSHA(ctx))
	})

	t.Run("constraint missing is reported", func(t *testing.T) {
		db := new(MockDB)
		db.On("QueryRow", ctx, uniqueSHASQL, mock.Anything).Return(scanBool(false)).Once()

		assert.ErrorIs(t, NewPostgres(db).EnsureUniqueSHA(ctx), custom_errors.ErrMissingUniqueConstraint)
	})

	t.Run("query failure is returned", func(t *testing.T) {
		db := new(MockDB)
		dbError := errors.New("permission denied")
		db.On("QueryRow", ctx, uniqueSHASQL, mock.Anything).Return(rowFunc(func(...any) error { return dbError })).Once()

		assert.ErrorIs(t, NewPostgres(db).EnsureUniqueSHA(ctx), dbError)
	})
}

func TestPostgres_GetCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("missing sha", func(t *testing.T) {
		db := new(MockDB)
		db.On("QueryRow", ctx, getCommitSQL, []any{"nope"}).Return(rowFunc(func(...any) error { return pgx.ErrNoRows })).Once()

		_, err := NewPostgres(db).GetCommit(ctx, "nope")

		assert.ErrorIs(t, err, custom_errors.ErrCommitNotFound)
		db.AssertExpectations(t)
	})
}
