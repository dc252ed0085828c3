// Package quota gates outbound API traffic on the remote rate limit.
package quota

import (
	"context"
	"log/slog"
	"time"

	custom_errors "commit-ingester/internal/errors"
	"commit-ingester/internal/model"
)

// Source reports the current remote quota (e.g. github.Client).
type Source interface {
	Quota(ctx context.Context) (model.QuotaState, error)
}

// Observer is notified of every successful check and every wait.
type Observer interface {
	ObserveQuota(state model.QuotaState)
	ObserveQuotaWait(d time.Duration)
}

// Guard blocks the caller until the remote API has capacity.
type Guard struct {
	source   Source
	margin   time.Duration
	logger   *slog.Logger
	observer Observer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGuard returns a Guard that adds margin to every computed wait.
func NewGuard(source Source, margin time.Duration, logger *slog.Logger) *Guard {
	return &Guard{
		source: source,
		margin: margin,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// WithObserver attaches an Observer and returns the Guard.
func (g *Guard) WithObserver(o Observer) *Guard {
	g.observer = o
	return g
}

// CheckAndWait queries the quota once. A failed query is returned as a
// *errors.QuotaCheckError and must abort the run. When no requests remain it
// sleeps until the reset time plus the margin and returns without re-checking.
func (g *Guard) CheckAndWait(ctx context.Context) error {
	state, err := g.source.Quota(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &custom_errors.QuotaCheckError{Err: err}
	}
	if g.observer != nil {
		g.observer.ObserveQuota(state)
	}

	g.logger.Info("Rate limit status",
		"remaining", state.Remaining,
		"limit", state.Limit,
		"reset_at", state.ResetAt.UTC().Format(time.RFC3339),
	)
	if state.Remaining > 0 {
		return nil
	}

	wait := state.ResetAt.Sub(g.now())
	if wait < 0 {
		wait = 0
	}
	wait += g.margin

	g.logger.Info("Rate limit exhausted, waiting for reset", "wait", wait.String(), "reset_at", state.ResetAt.UTC().Format(time.RFC3339))
	if g.observer != nil {
		g.observer.ObserveQuotaWait(wait)
	}
	return g.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
