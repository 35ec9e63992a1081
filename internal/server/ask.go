package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/core"
	"go.uber.org/zap"
)

// AskHandler runs queries through the engine.
type AskHandler struct {
	asker   Asker
	timeout time.Duration
	logger  *zap.Logger
}

func (h *AskHandler) Register(g *echo.Group) {
	g.POST("/ask", h.ask)
}

type askRequest struct {
	Query       string `json:"query"`
	StrictLocal bool   `json:"strict_local"`
	FastMode    bool   `json:"fast_mode"`
}

// ask answers one query and returns the full workflow result, the same
// document the CLI prints with --json.
func (h *AskHandler) ask(c echo.Context) error {
	if h.asker == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "engine not configured")
	}
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	res, err := h.asker.Execute(ctx, core.Query{Text: req.Query, StrictLocal: req.StrictLocal, FastMode: req.FastMode})
	switch {
	case errors.Is(err, core.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "query timed out")
	case errors.Is(err, context.Canceled):
		// client went away
		return nil
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Debug("query answered",
		zap.String("query_id", res.ID),
		zap.Int64("latency_ms", res.LatencyMS),
		zap.Int("context_count", res.ContextCount))
	return c.JSON(http.StatusOK, res)
}
