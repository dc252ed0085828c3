// Package metrics exposes ingestion progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"commit-ingester/internal/model"
)

const namespace = "commit_ingester"

// Commit outcomes used as the "outcome" label.
const (
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Collector owns a private registry so independent runs (and tests) never share metric state.
type Collector struct {
	registry *prometheus.Registry

	pages          prometheus.Counter
	commits        *prometheus.CounterVec
	quotaRemaining prometheus.Gauge
	quotaResetAt   prometheus.Gauge
	quotaWaits     prometheus.Counter
	quotaWaitSecs  prometheus.Counter
}

// NewCollector creates and registers all metrics. A nil registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Commit list pages fetched successfully, including the terminating empty page.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Commits processed, by outcome.",
		}, []string{"outcome"}),
		quotaRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Remaining API requests reported by the last quota check.",
		}),
		quotaResetAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_reset_timestamp_seconds",
			Help:      "Unix time at which the API quota resets.",
		}),
		quotaWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_waits_total",
			Help:      "Times the pipeline was suspended on an exhausted quota.",
		}),
		quotaWaitSecs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_wait_seconds_total",
			Help:      "Total time spent suspended on an exhausted quota.",
		}),
	}

	registry.MustRegister(c.pages, c.commits, c.quotaRemaining, c.quotaResetAt, c.quotaWaits, c.quotaWaitSecs)

	// Pre-create outcome series so they are exported as zero before the first commit.
	for _, o := range []string{OutcomeInserted, OutcomeDuplicate, OutcomeFailed} {
		c.commits.WithLabelValues(o)
	}

	return c
}

// ObservePage records one successfully fetched page.
func (c *Collector) ObservePage() {
	c.pages.Inc()
}

// ObserveCommit records the outcome of one commit.
func (c *Collector) ObserveCommit(outcome string) {
	c.commits.WithLabelValues(outcome).Inc()
}

// ObserveQuota records the state returned by a quota check.
func (c *Collector) ObserveQuota(state model.QuotaState) {
	c.quotaRemaining.Set(float64(state.Remaining))
	c.quotaResetAt.Set(float64(state.ResetAt.Unix()))
}

// ObserveQuotaWait records one suspension.
func (c *Collector) ObserveQuotaWait(d time.Duration) {
	c.quotaWaits.Inc()
	c.quotaWaitSecs.Add(d.Seconds())
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
