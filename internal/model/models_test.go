// internal/model/models_test.go
package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCommitRecord(t *testing.T) {
	authored := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	summary := CommitSummary{
		SHA:     "a1",
		Author:  Signature{Name: "tester", Email: "t@t.com", Date: authored},
		Message: "feat: new feature",
		URL:     "https://example.com/a1",
	}

	t.Run("merges summary and detail", func(t *testing.T) {
		detail := CommitDetail{
			Files: []FileChange{{Path: "main.go", Status: "modified", Additions: 3, Deletions: 1, Changes: 4}},
			Stats: Stats{Total: 4, Additions: 3, Deletions: 1},
		}

		rec := NewCommitRecord("vscode", "run-1", summary, detail)

		assert.Equal(t, "a1", rec.SHA)
		assert.Equal(t, "vscode", rec.ProjectID)
		assert.Equal(t, "run-1", rec.RunID)
		assert.Equal(t, authored, rec.Date)
		assert.Equal(t, "tester", rec.Author.Name)
		assert.Equal(t, detail.Files, rec.ModifiedFiles)
		assert.Equal(t, detail.Stats, rec.Stats)
	})

	t.Run("missing detail degrades to empty defaults", func(t *testing.T) {
		rec := NewCommitRecord("vscode", "run-1", summary, CommitDetail{})

		assert.NotNil(t, rec.ModifiedFiles)
		assert.Empty(t, rec.ModifiedFiles)
		assert.Equal(t, Stats{}, rec.Stats)
		assert.NotNil(t, rec.Parents)
	})
}
