package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/telemetry"
	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/tools/finance"
	"go.uber.org/zap"
)

// toolOrder fixes the position of domain tools in results and evidence.
var toolOrder = []models.SourceID{
	models.SourceFinance,
	models.SourceWeather,
	models.SourceTransport,
	models.SourceTime,
}

// ErrToolUnavailable is reported for a selected tool that has no adapter.
var ErrToolUnavailable = errors.New("tool not configured")

// ToolSet holds the domain tool adapters. Any field may be nil.
type ToolSet struct {
	Finance   FinanceTool
	Weather   WeatherTool
	Transport TransportTool
	Clock     ClockTool
	Pages     PageFetcher
}

// ToolRun is the joined outcome of one executor pass.
type ToolRun struct {
	// Results keeps successes and failures keyed by tool.
	Results map[models.SourceID]models.ToolResult
	// Order lists every key of Results in fixed tool order, with a
	// finance_web_extraction entry directly after finance.
	Order     []models.SourceID
	Failed    []models.SourceID
	Fallbacks []FallbackAttempt
}

func newToolRun() ToolRun {
	return ToolRun{Results: map[models.SourceID]models.ToolResult{}}
}

// Succeeded reports whether any result carries data.
func (r ToolRun) Succeeded() bool {
	for _, res := range r.Results {
		if res.OK() {
			return true
		}
	}
	return false
}

func (r *ToolRun) merge(o ToolRun) {
	for _, id := range o.Order {
		if _, ok := r.Results[id]; !ok {
			r.Order = append(r.Order, id)
		}
		r.Results[id] = o.Results[id]
	}
	r.Failed = append(r.Failed, o.Failed...)
	r.Fallbacks = append(r.Fallbacks, o.Fallbacks...)
}

// ToolExecutor runs the selected domain tools concurrently behind the result
// cache.
type ToolExecutor struct {
	tools     ToolSet
	cache     ResultCache
	features  *Features
	timeout   time.Duration
	ttls      map[models.SourceID]time.Duration
	telemetry *telemetry.Telemetry
	logger    *zap.Logger
}

// NewToolExecutor builds an executor; cache and telemetry may be nil.
func NewToolExecutor(tools ToolSet, cache ResultCache, features *Features, timeout time.Duration, cacheCfg config.CacheConfig, tel *telemetry.Telemetry, logger *zap.Logger) *ToolExecutor {
	if features == nil {
		features = NewFeatures()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := func(d, def time.Duration) time.Duration {
		if d > 0 {
			return d
		}
		return def
	}
	return &ToolExecutor{
		tools:    tools,
		cache:    cache,
		features: features,
		timeout:  timeout,
		ttls: map[models.SourceID]time.Duration{
			models.SourceFinance:   ttl(cacheCfg.FinanceTTL, 300*time.Second),
			models.SourceWeather:   ttl(cacheCfg.WeatherTTL, 600*time.Second),
			models.SourceTransport: ttl(cacheCfg.TransportTTL, 900*time.Second),
		},
		telemetry: tel,
		logger:    logger.Named("executor"),
	}
}

// Run executes every domain tool named in the decision, skipping tools
// already present in done. Results are joined before returning.
func (e *ToolExecutor) Run(ctx context.Context, queryID string, decision RoutingDecision, query string, analysis QueryAnalysis, done ToolRun) ToolRun {
	var selected []models.SourceID
	for _, id := range toolOrder {
		if !decision.Has(id) {
			continue
		}
		if _, ok := done.Results[id]; ok {
			continue
		}
		selected = append(selected, id)
	}

	parts := make([]ToolRun, len(selected))
	var wg sync.WaitGroup
	for i, id := range selected {
		wg.Add(1)
		go func(i int, id models.SourceID) {
			defer wg.Done()
			parts[i] = e.runOne(ctx, queryID, id, query, analysis)
		}(i, id)
	}
	wg.Wait()

	run := newToolRun()
	for _, p := range parts {
		run.merge(p)
	}
	return run
}

// RunTime executes only the time tool, for the time-precedence check.
func (e *ToolExecutor) RunTime(ctx context.Context, queryID, query string, analysis QueryAnalysis) ToolRun {
	return e.runOne(ctx, queryID, models.SourceTime, query, analysis)
}

func (e *ToolExecutor) runOne(ctx context.Context, queryID string, id models.SourceID, query string, analysis QueryAnalysis) ToolRun {
	run := newToolRun()
	res := e.execute(ctx, queryID, id, query, analysis)
	run.Results[id] = res
	run.Order = append(run.Order, id)
	if res.OK() {
		return run
	}
	run.Failed = append(run.Failed, id)

	if id == models.SourceFinance {
		fb, attempts := e.financeFallback(ctx, queryID, query)
		run.Fallbacks = attempts
		if fb.OK() {
			run.Results[models.SourceFinanceWebExtraction] = fb
			run.Order = append(run.Order, models.SourceFinanceWebExtraction)
		}
	}
	return run
}

// execute consults the cache, then the tool under its own timeout.
// Failures are never cached.
func (e *ToolExecutor) execute(ctx context.Context, queryID string, id models.SourceID, query string, analysis QueryAnalysis) models.ToolResult {
	params := e.cacheParams(id, query, analysis)
	if params != nil && e.cache != nil {
		res, hit, err := e.cache.Get(ctx, id, params)
		if err != nil {
			e.logger.Warn("cache lookup failed", zap.String("query_id", queryID), zap.String("tool", string(id)), zap.Error(err))
		}
		e.telemetry.RecordCacheLookup(string(id), hit)
		if hit {
			e.telemetry.RecordSourceEvent(ctx, telemetry.SourceEvent{ID: queryID, Source: string(id), Success: res.OK(), Cached: true})
			return res
		}
	}

	start := time.Now()
	payload, err := e.callWithTimeout(ctx, func(ctx context.Context) (any, error) {
		return e.call(ctx, id, query, analysis)
	})
	var res models.ToolResult
	if err != nil {
		res = models.Failure(id, err)
	} else {
		res = models.Success(id, payload)
	}
	e.telemetry.RecordSourceEvent(ctx, telemetry.SourceEvent{
		ID:       queryID,
		Source:   string(id),
		Duration: time.Since(start),
		Success:  res.OK(),
		Error:    res.Error,
	})

	if res.OK() && params != nil && e.cache != nil {
		if err := e.cache.Set(ctx, id, params, res, e.ttls[id]); err != nil {
			e.logger.Warn("cache write failed", zap.String("query_id", queryID), zap.String("tool", string(id)), zap.Error(err))
		}
	}
	return res
}

// cacheParams returns nil for tools that are never cached.
func (e *ToolExecutor) cacheParams(id models.SourceID, query string, analysis QueryAnalysis) map[string]string {
	switch id {
	case models.SourceFinance, models.SourceTransport:
		return map[string]string{"query": query, "tool": string(id)}
	case models.SourceWeather:
		return map[string]string{"query": query, "location": analysis.Location, "tool": string(id)}
	}
	return nil
}

// callWithTimeout abandons fn once the per-tool deadline passes, whether or
// not fn honours its context.
func (e *ToolExecutor) callWithTimeout(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		v   any
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		ch <- outcome{v, err}
	}()
	select {
	case o := <-ch:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout after %s", e.timeout)
		}
		return o.v, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout after %s", e.timeout)
		}
		return nil, ctx.Err()
	}
}

func (e *ToolExecutor) call(ctx context.Context, id models.SourceID, query string, analysis QueryAnalysis) (any, error) {
	switch id {
	case models.SourceFinance:
		return e.callFinance(ctx, query)
	case models.SourceWeather:
		if e.tools.Weather == nil {
			return nil, ErrToolUnavailable
		}
		loc, err := e.features.WeatherLocation(query, analysis.Location)
		if err != nil {
			return nil, err
		}
		if e.features.IsAfternoon(query) {
			return e.tools.Weather.AfternoonForecast(ctx, loc)
		}
		return e.tools.Weather.Forecast(ctx, loc)
	case models.SourceTransport:
		if e.tools.Transport == nil {
			return nil, ErrToolUnavailable
		}
		origin, dest, err := e.features.Route(query)
		if err != nil {
			return nil, err
		}
		return e.tools.Transport.Directions(ctx, origin, dest)
	case models.SourceTime:
		if e.tools.Clock == nil {
			return nil, ErrToolUnavailable
		}
		return e.tools.Clock.Now(ctx, e.features.TimeLocation(query, analysis.Location))
	}
	return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, id)
}

func (e *ToolExecutor) callFinance(ctx context.Context, query string) (finance.Payload, error) {
	if e.tools.Finance == nil {
		return finance.Payload{}, ErrToolUnavailable
	}
	req, err := e.features.Finance(query)
	if err != nil {
		return finance.Payload{}, err
	}
	switch req.Kind {
	case FinanceFX:
		fx, err := e.tools.Finance.ExchangeRate(ctx, req.From, req.To)
		if err != nil {
			return finance.Payload{}, err
		}
		return finance.Payload{FX: &fx}, nil
	case FinanceCompare:
		cmp, err := e.tools.Finance.Compare(ctx, req.Symbols)
		if err != nil {
			return finance.Payload{}, err
		}
		return finance.Payload{Comparison: &cmp}, nil
	default:
		q, err := e.tools.Finance.Quote(ctx, req.Symbols[0], req.Intraday)
		if err != nil {
			return finance.Payload{}, err
		}
		return finance.Payload{Quote: &q}, nil
	}
}

// financeFallback scrapes public quote pages in order when the market data
// call failed for exactly one ticker. It stops at the first price found.
func (e *ToolExecutor) financeFallback(ctx context.Context, queryID, query string) (models.ToolResult, []FallbackAttempt) {
	if e.tools.Pages == nil {
		return models.ToolResult{}, nil
	}
	if _, _, fx := e.features.FXPair(query); fx {
		return models.ToolResult{}, nil
	}
	tickers := e.features.Tickers(query)
	if len(tickers) != 1 {
		return models.ToolResult{}, nil
	}
	symbol := tickers[0]

	var attempts []FallbackAttempt
	for _, u := range finance.QuotePageURLs(symbol) {
		if ctx.Err() != nil {
			break
		}
		v, err := e.callWithTimeout(ctx, func(ctx context.Context) (any, error) {
			page, err := e.tools.Pages.Exec(ctx, u)
			if err != nil {
				return nil, err
			}
			return finance.ExtractPriceFromWeb(symbol, page.HTML, u)
		})
		attempt := FallbackAttempt{Tool: models.SourceFinanceWebExtraction, URL: u, OK: err == nil}
		if err != nil {
			attempt.Reason = err.Error()
		}
		attempts = append(attempts, attempt)
		e.telemetry.RecordFallback(string(models.SourceFinanceWebExtraction), attempt.OK)
		if err != nil {
			e.logger.Debug("finance fallback attempt failed",
				zap.String("query_id", queryID), zap.String("url", u), zap.Error(err))
			continue
		}
		q := v.(finance.Quote)
		return models.Success(models.SourceFinanceWebExtraction, finance.Payload{Quote: &q}), attempts
	}
	e.logger.Info("finance fallback exhausted", zap.String("query_id", queryID), zap.String("symbol", symbol))
	return models.ToolResult{}, attempts
}
