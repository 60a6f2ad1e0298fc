package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/spendlens-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so callers can gather or push from it.
	Registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	statementsTotal *prometheus.CounterVec
	rowsParsed      prometheus.Counter
	rowErrors       prometheus.Counter
	insightsTotal   *prometheus.CounterVec
	recurringGroups prometheus.Counter
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spendlens_stage_duration_seconds",
				Help:    "Duration of pipeline stages by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		statementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_statements_total",
				Help: "Statements processed by final status.",
			},
			[]string{"status"},
		),
		rowsParsed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spendlens_rows_parsed_total",
				Help: "Statement rows successfully parsed into transactions.",
			},
		),
		rowErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spendlens_row_errors_total",
				Help: "Statement rows skipped due to parse errors.",
			},
		),
		insightsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_insights_total",
				Help: "Insights generated by type.",
			},
			[]string{"type"},
		),
		recurringGroups: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spendlens_recurring_groups_total",
				Help: "Recurring charge groups detected.",
			},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordStageDuration records how long a pipeline stage took.
func (m *Metrics) RecordStageDuration(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncrStatement increments the statement counter with a status label
// (completed, rejected, duplicate).
func (m *Metrics) IncrStatement(status string) {
	m.statementsTotal.WithLabelValues(status).Inc()
}

// AddRowsParsed records successfully parsed rows.
func (m *Metrics) AddRowsParsed(n int) {
	m.rowsParsed.Add(float64(n))
}

// AddRowErrors records skipped rows.
func (m *Metrics) AddRowErrors(n int) {
	m.rowErrors.Add(float64(n))
}

// IncrInsight increments the insight counter for a rule type.
func (m *Metrics) IncrInsight(insightType string) {
	m.insightsTotal.WithLabelValues(insightType).Inc()
}

// AddRecurringGroups records detected recurring groups.
func (m *Metrics) AddRecurringGroups(n int) {
	m.recurringGroups.Add(float64(n))
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// Snapshot returns the current pipeline counters. Prometheus counters are
// cumulative, so values cover the process lifetime.
func (m *Metrics) Snapshot() *domain.PipelineStats {
	rows := counterValue(m.rowsParsed)
	errs := counterValue(m.rowErrors)

	errorRate := float64(0)
	if rows+errs > 0 {
		errorRate = errs / (rows + errs)
	}

	insights := float64(0)
	for _, t := range []domain.InsightType{
		domain.InsightSpendingTrend,
		domain.InsightTopCategory,
		domain.InsightSubscriptionCreep,
		domain.InsightSpendingSpikes,
		domain.InsightTopMerchants,
	} {
		insights += labeledCounterValue(m.insightsTotal, string(t))
	}

	return &domain.PipelineStats{
		StatementsCompleted: int64(labeledCounterValue(m.statementsTotal, "completed")),
		StatementsRejected:  int64(labeledCounterValue(m.statementsTotal, "rejected")),
		StatementsDuplicate: int64(labeledCounterValue(m.statementsTotal, "duplicate")),
		RowsParsed:          int64(rows),
		RowErrors:           int64(errs),
		RowErrorRate:        errorRate,
		InsightsGenerated:   int64(insights),
		RecurringGroups:     int64(counterValue(m.recurringGroups)),
	}
}

// labeledCounterValue extracts the current float64 value from a CounterVec
// for a given label.
func labeledCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
