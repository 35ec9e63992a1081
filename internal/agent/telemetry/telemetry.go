package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Outcome labels a finished query.
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeFastPath     Outcome = "fast_path"
	OutcomeAttachments  Outcome = "attachments"
	OutcomeInsufficient Outcome = "insufficient_context"
	OutcomeCanceled     Outcome = "canceled"
)

// Telemetry records query, source and cache metrics into a prometheus
// registry and keeps an in-process snapshot for the status endpoint.
// A nil *Telemetry is valid and records nothing.
type Telemetry struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	queryLatency  prometheus.Histogram
	sourceCalls   *prometheus.CounterVec
	sourceLatency *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec

	mu      sync.RWMutex
	metrics *Metrics
}

// Metrics holds the running counters
type Metrics struct {
	TotalQueries          int64
	Outcomes              map[string]int64
	AverageProcessingTime time.Duration

	SourceRequests     map[string]int64
	SourceFailures     map[string]int64
	SourceAverageTimes map[string]time.Duration

	CacheHits   int64
	CacheMisses int64
}

// ProcessingEvent represents one finished query
type ProcessingEvent struct {
	ID             string
	Query          string
	Outcome        Outcome
	ProcessingTime time.Duration
	SourcesUsed    []string
	FailedSources  []string
}

// SourceEvent represents a single source access
type SourceEvent struct {
	ID       string
	Source   string
	Duration time.Duration
	Success  bool
	Cached   bool
	Error    string
	Results  int
}

// NewTelemetry creates the collectors on a private registry.
func NewTelemetry(logger *zap.Logger) *Telemetry {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telemetry{
		logger:   logger.Named("telemetry"),
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragrouter",
			Name:      "queries_total",
			Help:      "Queries processed, by outcome.",
		}, []string{"outcome"}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragrouter",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}),
		sourceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragrouter",
			Name:      "source_calls_total",
			Help:      "Source and tool calls, by source and status.",
		}, []string{"source", "status"}),
		sourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragrouter",
			Name:      "source_duration_seconds",
			Help:      "Source and tool call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragrouter",
			Name:      "cache_lookups_total",
			Help:      "Tool result cache lookups, by tool and result.",
		}, []string{"tool", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragrouter",
			Name:      "fallback_attempts_total",
			Help:      "Fallback chain attempts, by tool and status.",
		}, []string{"tool", "status"}),
		metrics: newMetrics(),
	}
	t.registry.MustRegister(t.queries, t.queryLatency, t.sourceCalls, t.sourceLatency, t.cacheLookups, t.fallbacks)
	return t
}

func newMetrics() *Metrics {
	return &Metrics{
		Outcomes:           make(map[string]int64),
		SourceRequests:     make(map[string]int64),
		SourceFailures:     make(map[string]int64),
		SourceAverageTimes: make(map[string]time.Duration),
	}
}

// Registry exposes the collectors for a /metrics handler.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return prometheus.NewRegistry()
	}
	return t.registry
}

// RecordProcessingEvent records a finished query
func (t *Telemetry) RecordProcessingEvent(_ context.Context, event ProcessingEvent) {
	if t == nil {
		return
	}
	t.queries.WithLabelValues(string(event.Outcome)).Inc()
	t.queryLatency.Observe(event.ProcessingTime.Seconds())

	t.mu.Lock()
	m := t.metrics
	m.TotalQueries++
	m.Outcomes[string(event.Outcome)]++
	if m.TotalQueries == 1 {
		m.AverageProcessingTime = event.ProcessingTime
	} else {
		total := m.AverageProcessingTime * time.Duration(m.TotalQueries-1)
		m.AverageProcessingTime = (total + event.ProcessingTime) / time.Duration(m.TotalQueries)
	}
	t.mu.Unlock()

	t.logger.Info("query processed",
		zap.String("query_id", event.ID),
		zap.String("outcome", string(event.Outcome)),
		zap.Duration("duration", event.ProcessingTime),
		zap.Strings("sources_used", event.SourcesUsed),
		zap.Strings("failed_tools", event.FailedSources))
}

// RecordSourceEvent records one source access
func (t *Telemetry) RecordSourceEvent(_ context.Context, event SourceEvent) {
	if t == nil {
		return
	}
	status := "ok"
	if !event.Success {
		status = "error"
	}
	if event.Cached {
		status = "cached"
	}
	t.sourceCalls.WithLabelValues(event.Source, status).Inc()
	if !event.Cached {
		t.sourceLatency.WithLabelValues(event.Source).Observe(event.Duration.Seconds())
	}

	t.mu.Lock()
	m := t.metrics
	m.SourceRequests[event.Source]++
	if !event.Success {
		m.SourceFailures[event.Source]++
	}
	n := m.SourceRequests[event.Source]
	if n == 1 {
		m.SourceAverageTimes[event.Source] = event.Duration
	} else {
		total := m.SourceAverageTimes[event.Source] * time.Duration(n-1)
		m.SourceAverageTimes[event.Source] = (total + event.Duration) / time.Duration(n)
	}
	t.mu.Unlock()

	fields := []zap.Field{
		zap.String("query_id", event.ID),
		zap.String("tool", event.Source),
		zap.Bool("cache_hit", event.Cached),
		zap.Duration("duration", event.Duration),
		zap.Int("results", event.Results),
	}
	if event.Error != "" {
		t.logger.Warn("source failed", append(fields, zap.String("error", event.Error))...)
		return
	}
	t.logger.Debug("source finished", fields...)
}

// RecordCacheLookup counts one tool cache lookup.
func (t *Telemetry) RecordCacheLookup(tool string, hit bool) {
	if t == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	t.cacheLookups.WithLabelValues(tool, result).Inc()
	t.mu.Lock()
	if hit {
		t.metrics.CacheHits++
	} else {
		t.metrics.CacheMisses++
	}
	t.mu.Unlock()
}

// RecordFallback counts one fallback attempt.
func (t *Telemetry) RecordFallback(tool string, ok bool) {
	if t == nil {
		return
	}
	status := "error"
	if ok {
		status = "ok"
	}
	t.fallbacks.WithLabelValues(tool, status).Inc()
}

// GetMetrics returns a copy of the current counters
func (t *Telemetry) GetMetrics() Metrics {
	if t == nil {
		return *newMetrics()
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := *t.metrics
	metrics.Outcomes = make(map[string]int64, len(t.metrics.Outcomes))
	metrics.SourceRequests = make(map[string]int64, len(t.metrics.SourceRequests))
	metrics.SourceFailures = make(map[string]int64, len(t.metrics.SourceFailures))
	metrics.SourceAverageTimes = make(map[string]time.Duration, len(t.metrics.SourceAverageTimes))
	for k, v := range t.metrics.Outcomes {
		metrics.Outcomes[k] = v
	}
	for k, v := range t.metrics.SourceRequests {
		metrics.SourceRequests[k] = v
	}
	for k, v := range t.metrics.SourceFailures {
		metrics.SourceFailures[k] = v
	}
	for k, v := range t.metrics.SourceAverageTimes {
		metrics.SourceAverageTimes[k] = v
	}
	return metrics
}
