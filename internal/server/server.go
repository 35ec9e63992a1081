package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/core"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/telemetry"
	"github.com/mohammad-safakhou/ragrouter/internal/runtime"
	"github.com/mohammad-safakhou/ragrouter/knowledge/ingest"
	kmodels "github.com/mohammad-safakhou/ragrouter/knowledge/models"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Asker answers one query.
type Asker interface {
	Execute(ctx context.Context, q core.Query, opts ...core.ExecuteOption) (core.WorkflowResult, error)
}

// KnowledgeBase is the part of the local index the API exposes.
type KnowledgeBase interface {
	Stats() (kmodels.Stats, error)
	Ping(ctx context.Context) error
}

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the HTTP API. Knowledge, Ingester,
// Fetcher, Cache, Telemetry and Registry may be nil.
type Deps struct {
	Asker     Asker
	Knowledge KnowledgeBase
	Ingester  Ingester
	Parser    ingest.Parser
	Fetcher   web_fetch.WebFetcher
	Cache     Pinger
	Telemetry *telemetry.Telemetry
	Registry  *prometheus.Registry
	Meter     otelmetric.Meter
	Logger    *zap.Logger

	LLMConfigured     bool
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// New builds the echo instance with every route mounted.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 90 * time.Second
	}
	logger := d.Logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Warn("request failed",
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err))
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	if mw, err := requestMetrics(d.Meter); err == nil {
		e.Use(mw)
	} else {
		logger.Warn("request metrics disabled", zap.Error(err))
	}

	ops := &OpsHandler{knowledge: d.Knowledge, cache: d.Cache, telemetry: d.Telemetry, llmConfigured: d.LLMConfigured}
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if d.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	if d.RequestsPerSecond > 0 {
		api.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(d.RequestsPerSecond))))
	}
	ask := &AskHandler{asker: d.Asker, timeout: d.RequestTimeout, logger: logger}
	ask.Register(api)
	ing := &IngestHandler{ingester: d.Ingester, parser: d.Parser, fetcher: d.Fetcher, logger: logger}
	ing.Register(api)
	ops.Register(api)
	return e
}

// Run wires services from cfg and serves until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tel := telemetry.NewTelemetry(logger)
	rt, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{
		ServiceName:    "ragrouter",
		ServiceVersion: "dev",
		Registry:       tel.Registry(),
		MetricsPort:    cfg.Telemetry.MetricsPort,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	svc, err := core.NewServices(ctx, cfg, tel, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close services", zap.Error(err))
		}
	}()

	e := New(Deps{
		Asker:             svc.Orchestrator,
		Knowledge:         svc.Knowledge,
		Ingester:          svc.Knowledge,
		Parser:            svc.IngestParser,
		Fetcher:           svc.Fetcher,
		Cache:             svc.Cache,
		Telemetry:         tel,
		Registry:          tel.Registry(),
		Meter:             rt.Meter(),
		Logger:            logger,
		LLMConfigured:     cfg.LLM.APIKey != "",
		RequestTimeout:    cfg.General.RequestTimeout,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("address", cfg.Server.Address))
		errCh <- e.Start(cfg.Server.Address)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}

func requestMetrics(meter otelmetric.Meter) (echo.MiddlewareFunc, error) {
	if meter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }, nil
	}
	latency, err := meter.Float64Histogram("ragrouter.http.server.duration",
		otelmetric.WithDescription("HTTP request latency by route and status"),
		otelmetric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
			latency.Record(c.Request().Context(), time.Since(start).Seconds(),
				otelmetric.WithAttributes(
					attribute.String("http.route", c.Path()),
					attribute.Int("http.status_code", status),
				))
			return err
		}
	}, nil
}
