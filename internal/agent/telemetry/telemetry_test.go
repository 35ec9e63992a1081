package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRecordProcessingEventAveragesLatency(t *testing.T) {
	tel := NewTelemetry(zaptest.NewLogger(t))
	ctx := context.Background()
	tel.RecordProcessingEvent(ctx, ProcessingEvent{ID: "a", Outcome: OutcomeAnswered, ProcessingTime: 2 * time.Second})
	tel.RecordProcessingEvent(ctx, ProcessingEvent{ID: "b", Outcome: OutcomeFastPath, ProcessingTime: 4 * time.Second})

	m := tel.GetMetrics()
	assert.Equal(t, int64(2), m.TotalQueries)
	assert.Equal(t, 3*time.Second, m.AverageProcessingTime)
	assert.Equal(t, int64(1), m.Outcomes["fast_path"])
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.queries.WithLabelValues("answered")))
}

func TestRecordSourceEventCountsFailures(t *testing.T) {
	tel := NewTelemetry(zaptest.NewLogger(t))
	ctx := context.Background()
	tel.RecordSourceEvent(ctx, SourceEvent{Source: "finance", Success: true, Duration: time.Second})
	tel.RecordSourceEvent(ctx, SourceEvent{Source: "finance", Error: "boom", Duration: 3 * time.Second})
	tel.RecordSourceEvent(ctx, SourceEvent{Source: "weather", Success: true, Cached: true})

	m := tel.GetMetrics()
	assert.Equal(t, int64(2), m.SourceRequests["finance"])
	assert.Equal(t, int64(1), m.SourceFailures["finance"])
	assert.Equal(t, 2*time.Second, m.SourceAverageTimes["finance"])
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.sourceCalls.WithLabelValues("weather", "cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.sourceCalls.WithLabelValues("finance", "error")))
}

func TestCacheLookupsAndRegistry(t *testing.T) {
	tel := NewTelemetry(nil)
	tel.RecordCacheLookup("finance", true)
	tel.RecordCacheLookup("finance", false)
	tel.RecordFallback("finance_web_extraction", false)

	m := tel.GetMetrics()
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(1), m.CacheMisses)

	families, err := tel.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ragrouter_cache_lookups_total"])
	assert.True(t, names["ragrouter_fallback_attempts_total"])
}

func TestNilTelemetryIsNoop(t *testing.T) {
	var tel *Telemetry
	tel.RecordProcessingEvent(context.Background(), ProcessingEvent{})
	tel.RecordSourceEvent(context.Background(), SourceEvent{})
	tel.RecordCacheLookup("x", true)
	tel.RecordFallback("x", true)
	assert.Zero(t, tel.GetMetrics().TotalQueries)
	assert.NotNil(t, tel.Registry())
}
