// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned by the store when a record with the same SHA already exists.
	ErrDuplicateKey = errors.New("duplicate commit sha")

	// ErrCommitNotFound is returned by lookups for a SHA that was never stored.
	ErrCommitNotFound = errors.New("commit not found")

	// ErrMissingUniqueConstraint means the commits table has no uniqueness guarantee on sha.
	ErrMissingUniqueConstraint = errors.New("commits.sha has no primary key or unique constraint")
)

// ErrInvalidRepoFormat is returned when a repository string in the config is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// QuotaCheckError wraps a failure to read the remote quota. It is fatal to a run.
type QuotaCheckError struct {
	Err error
}

func (e *QuotaCheckError) Error() string {
	return fmt.Sprintf("quota check failed: %v", e.Err)
}

func (e *QuotaCheckError) Unwrap() error { return e.Err }

// PageFetchError wraps a failure to list one page of commits. It ends the run.
type PageFetchError struct {
	Page int
	Err  error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// DetailFetchError wraps a failure to look up a single commit.
type DetailFetchError struct {
	SHA string
	Err error
}

func (e *DetailFetchError) Error() string {
	return fmt.Sprintf("fetch commit %s: %v", e.SHA, e.Err)
}

func (e *DetailFetchError) Unwrap() error { return e.Err }
