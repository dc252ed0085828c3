package ingest

import (
	"fmt"
	"log/slog"
)

// State is the terminal state of a run.
type State string

const (
	// StateDone means an empty page was reached.
	StateDone State = "done"
	// StateAborted means a page fetch failed; records stored so far remain stored.
	StateAborted State = "aborted"
	// StateCancelled means the run context was cancelled.
	StateCancelled State = "cancelled"
	// StateFailed means a fatal error (quota check) stopped the run.
	StateFailed State = "failed"
)

// Result is the observable outcome of a run.
type Result struct {
	RunID     string
	State     State
	Pages     int
	Inserted  int
	Duplicate int
	Failed    int
	// AbortedAtPage is the page index that ended an aborted or cancelled run.
	AbortedAtPage int
	Err           error
}

func (r Result) String() string {
	if r.State == StateDone {
		return fmt.Sprintf("done: pages=%d inserted=%d duplicate=%d failed=%d", r.Pages, r.Inserted, r.Duplicate, r.Failed)
	}
	return fmt.Sprintf("%s at page %d: pages=%d inserted=%d duplicate=%d failed=%d", r.State, r.AbortedAtPage, r.Pages, r.Inserted, r.Duplicate, r.Failed)
}

// LogValue implements slog.LogValuer.
func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("run_id", r.RunID),
		slog.String("state", string(r.State)),
		slog.Int("pages", r.Pages),
		slog.Int("inserted", r.Inserted),
		slog.Int("duplicate", r.Duplicate),
		slog.Int("failed", r.Failed),
	}
	if r.State != StateDone {
		attrs = append(attrs, slog.Int("aborted_at_page", r.AbortedAtPage))
	}
	if r.Err != nil {
		attrs = append(attrs, slog.String("error", r.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}
