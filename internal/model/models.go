// internal/model/models.go
package model

import (
	"time"
)

// Signature identifies who authored or committed a change, and when.
type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// FileChange describes one file touched by a commit.
type FileChange struct {
	Path         string `json:"path"`
	PreviousPath string `json:"previous_path,omitempty"`
	Status       string `json:"status"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	Changes      int    `json:"changes"`
}

// Stats holds the aggregate line counters of a commit.
type Stats struct {
	Total     int `json:"total"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// CommitSummary is the lightweight commit returned by the list endpoint.
// It carries enough metadata to build a record without detail data.
type CommitSummary struct {
	SHA       string
	Author    Signature
	Committer Signature
	Message   string
	URL       string
	Parents   []string
}

// CommitDetail is the per-commit enrichment: modified files and stats.
// Both degrade to their zero values when the upstream omits them.
type CommitDetail struct {
	Files []FileChange
	Stats Stats
}

// CommitRecord is the unit of storage, keyed by SHA.
type CommitRecord struct {
	SHA           string       `json:"sha"`
	ProjectID     string       `json:"project_id"`
	Author        Signature    `json:"author"`
	Committer     Signature    `json:"committer"`
	Message       string       `json:"message"`
	Date          time.Time    `json:"date"`
	URL           string       `json:"url"`
	Parents       []string     `json:"parents"`
	ModifiedFiles []FileChange `json:"modified_files"`
	Stats         Stats        `json:"stats"`
	RunID         string       `json:"run_id"`
	DBCreatedAt   time.Time    `json:"db_created_at,omitempty"`
}

// NewCommitRecord merges a page-level summary with its detail lookup.
func NewCommitRecord(projectID, runID string, s CommitSummary, d CommitDetail) CommitRecord {
	files := d.Files
	if files == nil {
		files = []FileChange{}
	}
	parents := s.Parents
	if parents == nil {
		parents = []string{}
	}
	return CommitRecord{
		SHA:           s.SHA,
		ProjectID:     projectID,
		Author:        s.Author,
		Committer:     s.Committer,
		Message:       s.Message,
		Date:          s.Author.Date,
		URL:           s.URL,
		Parents:       parents,
		ModifiedFiles: files,
		Stats:         d.Stats,
		RunID:         runID,
	}
}

// QuotaState is the remote API's rate limit status at the time of a check.
type QuotaState struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}
