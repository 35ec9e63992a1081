package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/telemetry"
)

const pingTimeout = 3 * time.Second

// OpsHandler exposes operational endpoints: backend status, counters and
// index statistics.
type OpsHandler struct {
	knowledge     KnowledgeBase
	cache         Pinger
	telemetry     *telemetry.Telemetry
	llmConfigured bool
}

// Register mounts ops endpoints under the provided group.
func (h *OpsHandler) Register(g *echo.Group) {
	g.GET("/status", h.status)
	g.GET("/kb/stats", h.kbStats)
}

type componentStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type statusResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
	Metrics    *metricsView               `json:"metrics,omitempty"`
}

type metricsView struct {
	TotalQueries     int64            `json:"total_queries"`
	Outcomes         map[string]int64 `json:"outcomes"`
	AverageLatencyMS int64            `json:"average_latency_ms"`
	SourceRequests   map[string]int64 `json:"source_requests"`
	SourceFailures   map[string]int64 `json:"source_failures"`
	SourceAverageMS  map[string]int64 `json:"source_average_ms"`
	CacheHits        int64            `json:"cache_hits"`
	CacheMisses      int64            `json:"cache_misses"`
}

// status pings the cache and the index and reports whether a language model
// key is configured. Any failing component degrades the overall status.
func (h *OpsHandler) status(c echo.Context) error {
	ctx := c.Request().Context()
	resp := statusResponse{Status: "ok", Components: map[string]componentStatus{}}
	check := func(name string, p Pinger) {
		if p == nil {
			resp.Components[name] = componentStatus{Error: "not configured"}
			resp.Status = "degraded"
			return
		}
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := p.Ping(pctx); err != nil {
			resp.Components[name] = componentStatus{Error: err.Error()}
			resp.Status = "degraded"
			return
		}
		resp.Components[name] = componentStatus{OK: true}
	}
	check("cache", h.cache)
	var kb Pinger
	if h.knowledge != nil {
		kb = h.knowledge
	}
	check("knowledge", kb)
	if h.llmConfigured {
		resp.Components["llm"] = componentStatus{OK: true}
	} else {
		resp.Components["llm"] = componentStatus{Error: "api key not configured"}
		resp.Status = "degraded"
	}

	if h.telemetry != nil {
		m := h.telemetry.GetMetrics()
		view := &metricsView{
			TotalQueries:     m.TotalQueries,
			Outcomes:         m.Outcomes,
			AverageLatencyMS: m.AverageProcessingTime.Milliseconds(),
			SourceRequests:   m.SourceRequests,
			SourceFailures:   m.SourceFailures,
			SourceAverageMS:  map[string]int64{},
			CacheHits:        m.CacheHits,
			CacheMisses:      m.CacheMisses,
		}
		for k, v := range m.SourceAverageTimes {
			view.SourceAverageMS[k] = v.Milliseconds()
		}
		resp.Metrics = view
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *OpsHandler) kbStats(c echo.Context) error {
	if h.knowledge == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge base not configured")
	}
	stats, err := h.knowledge.Stats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
