// internal/ingest/pipeline.go
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	custom_errors "commit-ingester/internal/errors"
	"commit-ingester/internal/metrics"
	"commit-ingester/internal/model"
)

// QuotaGate blocks until the remote API has capacity (e.g. quota.Guard).
type QuotaGate interface {
	CheckAndWait(ctx context.Context) error
}

// PageFetcher lists one page of commit summaries (e.g. github.Client).
type PageFetcher interface {
	FetchPage(ctx context.Context, page, perPage int, since time.Time) ([]model.CommitSummary, error)
}

// DetailFetcher looks up files and stats for one commit (e.g. github.Client).
type DetailFetcher interface {
	FetchDetail(ctx context.Context, sha string) (model.CommitDetail, error)
}

// Inserter persists a record, returning errors.ErrDuplicateKey for a known SHA (e.g. store.Postgres).
type Inserter interface {
	Insert(ctx context.Context, rec *model.CommitRecord) error
}

// Observer receives page and commit outcomes (e.g. metrics.Collector).
type Observer interface {
	ObservePage()
	ObserveCommit(outcome string)
}

// Config holds the static parameters of one run.
type Config struct {
	ProjectID string
	Since     time.Time
	PageSize  int
	// DetailConcurrency > 1 prefetches a page's details in parallel; inserts stay in page order.
	DetailConcurrency int
	// RunID tags logs and stored records. A random UUID is used when empty.
	RunID string
}

// Pipeline orchestrates quota checks, page fetches, enrichment and storage.
type Pipeline struct {
	cfg      Config
	quota    QuotaGate
	pages    PageFetcher
	details  DetailFetcher
	store    Inserter
	logger   *slog.Logger
	observer Observer
}

// NewPipeline creates a new Pipeline instance.
func NewPipeline(cfg Config, quota QuotaGate, pages PageFetcher, details DetailFetcher, store Inserter, logger *slog.Logger) *Pipeline {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.DetailConcurrency < 1 {
		cfg.DetailConcurrency = 1
	}
	return &Pipeline{
		cfg:     cfg,
		quota:   quota,
		pages:   pages,
		details: details,
		store:   store,
		logger:  logger,
	}
}

// WithObserver attaches an Observer and returns the Pipeline.
func (p *Pipeline) WithObserver(o Observer) *Pipeline {
	p.observer = o
	return p
}

// Run ingests pages 1, 2, ... until an empty page (Done) or a failed page fetch (Aborted).
// A non-nil error is returned only for fatal conditions and cancellation; the Result
// always carries the counters reached so far.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	runID := p.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	res := Result{RunID: runID}
	logger := p.logger.With("run_id", runID, "project_id", p.cfg.ProjectID)
	logger.Info("Starting ingestion run", "since", p.cfg.Since.Format(time.RFC3339), "page_size", p.cfg.PageSize, "detail_concurrency", p.cfg.DetailConcurrency)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return p.cancelled(logger, res, page, err)
		}

		if err := p.quota.CheckAndWait(ctx); err != nil {
			if ctx.Err() != nil {
				return p.cancelled(logger, res, page, ctx.Err())
			}
			res.State = StateFailed
			res.Err = err
			logger.Error("Quota check failed, aborting run", "page", page, "error", err)
			return res, err
		}

		summaries, err := p.pages.FetchPage(ctx, page, p.cfg.PageSize, p.cfg.Since)
		if err != nil {
			if ctx.Err() != nil {
				return p.cancelled(logger, res, page, ctx.Err())
			}
			res.State = StateAborted
			res.AbortedAtPage = page
			res.Err = &custom_errors.PageFetchError{Page: page, Err: err}
			logger.Error("Page fetch failed, ending run with partial results", "page", page, "error", err, "inserted", res.Inserted)
			return res, nil
		}
		res.Pages++
		if p.observer != nil {
			p.observer.ObservePage()
		}

		if len(summaries) == 0 {
			res.State = StateDone
			logger.Info("Ingestion run finished",
				"pages", res.Pages,
				"inserted", res.Inserted,
				"duplicate", res.Duplicate,
				"failed", res.Failed,
			)
			return res, nil
		}

		pageLogger := logger.With("page", page)
		before := res
		p.processPage(ctx, pageLogger, runID, summaries, &res)
		pageLogger.Info("Page processed",
			"commits", len(summaries),
			"inserted", res.Inserted-before.Inserted,
			"duplicate", res.Duplicate-before.Duplicate,
			"failed", res.Failed-before.Failed,
		)
	}
}

func (p *Pipeline) cancelled(logger *slog.Logger, res Result, page int, err error) (Result, error) {
	res.State = StateCancelled
	res.AbortedAtPage = page
	res.Err = err
	logger.Warn("Ingestion run cancelled", "page", page, "inserted", res.Inserted, "error", err)
	return res, err
}

// detailResult is the outcome of one detail lookup.
type detailResult struct {
	detail model.CommitDetail
	err    error
}

// processPage enriches and stores every summary of a page, in page order.
func (p *Pipeline) processPage(ctx context.Context, logger *slog.Logger, runID string, summaries []model.CommitSummary, res *Result) {
	var prefetched []detailResult
	if p.cfg.DetailConcurrency > 1 {
		prefetched = p.prefetchDetails(ctx, summaries)
	}

	for i, s := range summaries {
		if ctx.Err() != nil {
			return
		}

		var dr detailResult
		if prefetched != nil {
			dr = prefetched[i]
		} else {
			dr.detail, dr.err = p.details.FetchDetail(ctx, s.SHA)
		}
		if dr.err != nil && ctx.Err() != nil {
			// Interrupted work is not counted; the run reports itself as cancelled.
			return
		}

		p.count(res, p.storeCommit(ctx, logger, runID, s, dr))
	}
}

// prefetchDetails fetches all details of a page with bounded parallelism.
// Failures are kept per commit so one error never cancels its siblings.
func (p *Pipeline) prefetchDetails(ctx context.Context, summaries []model.CommitSummary) []detailResult {
	out := make([]detailResult, len(summaries))

	var g errgroup.Group
	g.SetLimit(p.cfg.DetailConcurrency)
	for i, s := range summaries {
		g.Go(func() error {
			d, err := p.details.FetchDetail(ctx, s.SHA)
			out[i] = detailResult{detail: d, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// storeCommit builds and inserts one record, returning its outcome label.
func (p *Pipeline) storeCommit(ctx context.Context, logger *slog.Logger, runID string, s model.CommitSummary, dr detailResult) string {
	if s.SHA == "" {
		logger.Warn("Commit summary without sha, skipping")
		return metrics.OutcomeFailed
	}
	if dr.err != nil {
		err := &custom_errors.DetailFetchError{SHA: s.SHA, Err: dr.err}
		logger.Warn("Failed to fetch commit detail, skipping", "sha", s.SHA, "error", err)
		return metrics.OutcomeFailed
	}

	rec := model.NewCommitRecord(p.cfg.ProjectID, runID, s, dr.detail)
	err := p.store.Insert(ctx, &rec)
	switch {
	case err == nil:
		logger.Debug("Commit inserted", "sha", s.SHA)
		return metrics.OutcomeInserted
	case errors.Is(err, custom_errors.ErrDuplicateKey):
		logger.Info("Duplicate commit, not inserted", "sha", s.SHA)
		return metrics.OutcomeDuplicate
	default:
		logger.Warn("Failed to store commit", "sha", s.SHA, "error", err)
		return metrics.OutcomeFailed
	}
}

func (p *Pipeline) count(res *Result, outcome string) {
	switch outcome {
	case metrics.OutcomeInserted:
		res.Inserted++
	case metrics.OutcomeDuplicate:
		res.Duplicate++
	default:
		res.Failed++
	}
	if p.observer != nil {
		p.observer.ObserveCommit(outcome)
	}
}
