package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/telemetry"
	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/tools/transport"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func decisionFor(ids ...models.SourceID) RoutingDecision {
	return RoutingDecision{Sources: ids}
}

func (h *harness) executor(t *testing.T, tel *telemetry.Telemetry) *ToolExecutor {
	t.Helper()
	tools := ToolSet{Finance: h.finance, Weather: h.weather, Transport: h.transport, Clock: h.clock, Pages: h.pages}
	return NewToolExecutor(tools, h.cache, NewFeatures(), h.timeout, config.CacheConfig{}, tel, zaptest.NewLogger(t))
}

func TestExecutorKeepsToolOrder(t *testing.T) {
	h := newHarness()
	e := h.executor(t, nil)

	run := e.Run(context.Background(), "q1", decisionFor(models.SourceTransport, models.SourceWeather, models.SourceFinance),
		"NVDA price and weather in Osaka from Central to Mong Kok", QueryAnalysis{Location: "Osaka"}, newToolRun())

	assert.Equal(t, []models.SourceID{models.SourceFinance, models.SourceWeather, models.SourceTransport}, run.Order)
	assert.Empty(t, run.Failed)
	assert.True(t, run.Succeeded())
	assert.Equal(t, "Osaka", h.weather.location)
	assert.Equal(t, "Central", h.transport.origin)
	assert.Equal(t, "Mong Kok", h.transport.destination)
}

func TestExecutorTimeoutIsPerTool(t *testing.T) {
	h := newHarness()
	h.timeout = 50 * time.Millisecond
	h.finance.delay = 500 * time.Millisecond
	e := h.executor(t, nil)

	start := time.Now()
	run := e.Run(context.Background(), "q1", decisionFor(models.SourceFinance, models.SourceWeather),
		"NVDA and weather in Osaka", QueryAnalysis{}, newToolRun())
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	assert.Equal(t, []models.SourceID{models.SourceFinance, models.SourceWeather}, run.Order)
	assert.Equal(t, "timeout after 50ms", run.Results[models.SourceFinance].Error)
	assert.True(t, run.Results[models.SourceWeather].OK())
	assert.Equal(t, []models.SourceID{models.SourceFinance}, run.Failed)
}

func TestExecutorSkipsDoneTools(t *testing.T) {
	h := newHarness()
	e := h.executor(t, nil)
	done := e.RunTime(context.Background(), "q1", "what time is it in Tokyo", QueryAnalysis{})
	require.True(t, done.Succeeded())

	run := e.Run(context.Background(), "q1", decisionFor(models.SourceTime), "what time is it in Tokyo", QueryAnalysis{}, done)
	assert.Empty(t, run.Order)
	assert.Equal(t, 1, h.clock.calls)
}

func TestExecutorTerminalErrors(t *testing.T) {
	h := newHarness()
	e := h.executor(t, nil)

	run := e.Run(context.Background(), "q1", decisionFor(models.SourceFinance, models.SourceWeather, models.SourceTransport),
		"tell me something", QueryAnalysis{}, newToolRun())

	assert.Equal(t, ErrNoTickers.Error(), run.Results[models.SourceFinance].Error)
	assert.Equal(t, ErrNoLocation.Error(), run.Results[models.SourceWeather].Error)
	assert.Equal(t, ErrNeedEndpoints.Error(), run.Results[models.SourceTransport].Error)
	assert.Len(t, run.Failed, 3)
	assert.Zero(t, h.finance.count())
	assert.Empty(t, h.pages.seen, "no ticker means no fallback")
}

func TestExecutorMissingAdapter(t *testing.T) {
	e := NewToolExecutor(ToolSet{}, nil, nil, 0, config.CacheConfig{}, nil, nil)
	run := e.Run(context.Background(), "q1", decisionFor(models.SourceWeather), "weather in Osaka", QueryAnalysis{}, newToolRun())
	assert.Equal(t, ErrToolUnavailable.Error(), run.Results[models.SourceWeather].Error)
}

func TestExecutorAfternoonForecast(t *testing.T) {
	h := newHarness()
	e := h.executor(t, nil)
	e.Run(context.Background(), "q1", decisionFor(models.SourceWeather), "Osaka this afternoon", QueryAnalysis{Location: "Osaka"}, newToolRun())
	assert.True(t, h.weather.afternoon)
}

func TestExecutorCacheKeysAndTTLs(t *testing.T) {
	h := newHarness()
	tel := telemetry.NewTelemetry(zaptest.NewLogger(t))
	e := NewToolExecutor(ToolSet{Weather: h.weather, Transport: h.transport}, h.cache, nil, time.Second,
		config.CacheConfig{WeatherTTL: time.Minute}, tel, zaptest.NewLogger(t))

	q := "weather in Osaka from Central to Mong Kok"
	for range 2 {
		run := e.Run(context.Background(), "q1", decisionFor(models.SourceWeather, models.SourceTransport), q, QueryAnalysis{Location: "Osaka"}, newToolRun())
		require.Empty(t, run.Failed)
	}
	assert.Equal(t, 1, h.weather.calls)
	assert.Equal(t, time.Minute, h.cache.ttls["weather"])
	assert.Equal(t, 900*time.Second, h.cache.ttls["transport"])

	// the analyzed location is part of the weather key
	e.Run(context.Background(), "q2", decisionFor(models.SourceWeather), q, QueryAnalysis{Location: "Kyoto"}, newToolRun())
	assert.Equal(t, 2, h.weather.calls)

	m := tel.GetMetrics()
	assert.Equal(t, int64(2), m.CacheHits)
	assert.Equal(t, int64(3), m.CacheMisses)
}

func TestExecutorNeverCachesFailuresOrTime(t *testing.T) {
	h := newHarness()
	h.transport.err = errDown
	e := h.executor(t, nil)

	e.Run(context.Background(), "q1", decisionFor(models.SourceTransport, models.SourceTime), "what time is it in Tokyo from Central to Mong Kok", QueryAnalysis{}, newToolRun())
	assert.Zero(t, h.cache.len())

	h.transport.err = nil
	run := e.Run(context.Background(), "q1", decisionFor(models.SourceTransport), "from Central to Mong Kok", QueryAnalysis{}, newToolRun())
	var d transport.Directions
	require.NoError(t, run.Results[models.SourceTransport].Decode(&d))
	assert.Equal(t, "Mong Kok", d.Destination)
	assert.Equal(t, 1, h.cache.len())
}

func TestFinanceFallbackChain(t *testing.T) {
	t.Run("all pages fail", func(t *testing.T) {
		h := newHarness()
		h.finance.err = errDown
		tel := telemetry.NewTelemetry(zaptest.NewLogger(t))
		e := h.executor(t, tel)

		run := e.Run(context.Background(), "q1", decisionFor(models.SourceFinance), "AAPL price", QueryAnalysis{}, newToolRun())
		assert.Equal(t, []models.SourceID{models.SourceFinance}, run.Order)
		require.Len(t, run.Fallbacks, 3)
		for _, a := range run.Fallbacks {
			assert.False(t, a.OK)
			assert.Contains(t, a.Reason, "status 403")
		}
		expected := `
# HELP ragrouter_fallback_attempts_total Fallback chain attempts, by tool and status.
# TYPE ragrouter_fallback_attempts_total counter
ragrouter_fallback_attempts_total{status="error",tool="finance_web_extraction"} 3
`
		assert.NoError(t, testutil.GatherAndCompare(tel.Registry(), strings.NewReader(expected), "ragrouter_fallback_attempts_total"))
	})
	t.Run("first page wins", func(t *testing.T) {
		h := newHarness()
		h.finance.err = errDown
		h.pages.pages["https://finance.yahoo.com/quote/AAPL"] = `<fin-streamer data-symbol="AAPL" data-field="regularMarketPrice" value="190.10">`
		h.pages.pages["https://www.cnbc.com/quotes/AAPL"] = `<span class="QuoteStrip-lastPrice">1.00</span>`
		e := h.executor(t, nil)

		run := e.Run(context.Background(), "q1", decisionFor(models.SourceFinance), "AAPL price", QueryAnalysis{}, newToolRun())
		require.Len(t, run.Fallbacks, 1)
		assert.Equal(t, []models.SourceID{models.SourceFinance, models.SourceFinanceWebExtraction}, run.Order)
		assert.Equal(t, []string{"https://finance.yahoo.com/quote/AAPL"}, h.pages.seen)
	})
	t.Run("fx and comparisons skip the chain", func(t *testing.T) {
		h := newHarness()
		h.finance.err = errDown
		e := h.executor(t, nil)
		for _, q := range []string{"USD/HKD", "NVDA vs AMD"} {
			run := e.Run(context.Background(), "q1", decisionFor(models.SourceFinance), q, QueryAnalysis{}, newToolRun())
			assert.Empty(t, run.Fallbacks, q)
		}
		assert.Empty(t, h.pages.seen)
	})
}
