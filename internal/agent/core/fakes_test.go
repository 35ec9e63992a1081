package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	kmodels "github.com/mohammad-safakhou/ragrouter/knowledge/models"
	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/repository"
	"github.com/mohammad-safakhou/ragrouter/tools/attachments"
	"github.com/mohammad-safakhou/ragrouter/tools/finance"
	"github.com/mohammad-safakhou/ragrouter/tools/transport"
	"github.com/mohammad-safakhou/ragrouter/tools/weather"
	fetchmodels "github.com/mohammad-safakhou/ragrouter/tools/web_fetch/models"
	searchmodels "github.com/mohammad-safakhou/ragrouter/tools/web_search/models"
	"github.com/mohammad-safakhou/ragrouter/tools/worldclock"
	"go.uber.org/zap/zaptest"
)

var errDown = errors.New("upstream down")

// fakeLLM answers analyze_query and select_sources with canned arguments.
type fakeLLM struct {
	mu          sync.Mutex
	analysis    string
	routing     string
	analyzeErr  error
	routeErr    error
	completion  string
	completeErr error
	calls       map[string]int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		analysis:   `{"domain":"general","location":"","entities":[],"query_expansions":[],"language":"en"}`,
		routing:    `{"sources":["local_knowledge_base"],"reasoning":"default"}`,
		completion: "synthesized answer",
		calls:      map[string]int{},
	}
}

func (f *fakeLLM) CallFunction(_ context.Context, _ []models.Message, fn models.Function, _ models.CompletionOptions) (models.FunctionCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[fn.Name]++
	switch fn.Name {
	case "analyze_query":
		if f.analyzeErr != nil {
			return models.FunctionCall{}, f.analyzeErr
		}
		return models.FunctionCall{Name: fn.Name, Arguments: json.RawMessage(f.analysis)}, nil
	case "select_sources":
		if f.routeErr != nil {
			return models.FunctionCall{}, f.routeErr
		}
		return models.FunctionCall{Name: fn.Name, Arguments: json.RawMessage(f.routing)}, nil
	}
	return models.FunctionCall{}, errors.New("unexpected function " + fn.Name)
}

func (f *fakeLLM) Complete(context.Context, []models.Message, models.CompletionOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["complete"]++
	return f.completion, f.completeErr
}

func (f *fakeLLM) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

type fakeFinance struct {
	mu       sync.Mutex
	quote    finance.Quote
	fx       finance.FXRate
	err      error
	calls    int
	intraday bool
	delay    time.Duration
}

func (f *fakeFinance) Quote(ctx context.Context, symbol string, intraday bool) (finance.Quote, error) {
	f.mu.Lock()
	f.calls++
	f.intraday = intraday
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return finance.Quote{}, ctx.Err()
		}
	}
	if f.err != nil {
		return finance.Quote{}, f.err
	}
	q := f.quote
	q.Symbol = symbol
	return q, nil
}

func (f *fakeFinance) Compare(_ context.Context, symbols []string) (finance.Comparison, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return finance.Comparison{}, f.err
	}
	var cmp finance.Comparison
	for _, s := range symbols {
		cmp.Quotes = append(cmp.Quotes, finance.Quote{Symbol: s, Price: f.quote.Price})
	}
	return cmp, nil
}

func (f *fakeFinance) ExchangeRate(_ context.Context, from, to string) (finance.FXRate, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return finance.FXRate{}, f.err
	}
	fx := f.fx
	fx.From, fx.To = from, to
	return fx, nil
}

func (f *fakeFinance) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeWeather struct {
	mu        sync.Mutex
	report    weather.Report
	err       error
	calls     int
	location  string
	afternoon bool
}

func (f *fakeWeather) Forecast(_ context.Context, location string) (weather.Report, error) {
	return f.respond(location, false)
}

func (f *fakeWeather) AfternoonForecast(_ context.Context, location string) (weather.Report, error) {
	return f.respond(location, true)
}

func (f *fakeWeather) respond(location string, afternoon bool) (weather.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.location, f.afternoon = location, afternoon
	if f.err != nil {
		return weather.Report{}, f.err
	}
	r := f.report
	r.Location = location
	return r, nil
}

type fakeTransport struct {
	mu          sync.Mutex
	err         error
	origin      string
	destination string
}

func (f *fakeTransport) Directions(_ context.Context, origin, destination string) (transport.Directions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.origin, f.destination = origin, destination
	if f.err != nil {
		return transport.Directions{}, f.err
	}
	return transport.Directions{
		Origin:      origin,
		Destination: destination,
		Mode:        "transit",
		Routes: []transport.Route{{
			Summary:       "Tsuen Wan Line",
			TotalDuration: "25 mins",
			TotalDistance: "9.8 km",
			Steps:         []transport.Step{{Instruction: "Walk to station", Duration: "3 mins", Distance: "200 m", TravelMode: "WALKING"}},
		}},
	}, nil
}

type fakeClock struct {
	mu       sync.Mutex
	err      error
	calls    int
	location string
}

func (f *fakeClock) Now(_ context.Context, location string) (worldclock.Clock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.location = location
	if f.err != nil {
		return worldclock.Clock{}, f.err
	}
	return worldclock.Clock{Location: "Tokyo", Zone: "Asia/Tokyo", Local: "10:30:00", Date: "2024-06-03", Weekday: "Monday", UTCOffset: "+09:00"}, nil
}

// fakePages serves HTML per URL; unknown URLs fail.
type fakePages struct {
	mu    sync.Mutex
	pages map[string]string
	seen  []string
}

func (f *fakePages) Exec(_ context.Context, url string) (fetchmodels.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, url)
	html, ok := f.pages[url]
	if !ok {
		return fetchmodels.Result{}, errors.New("status 403")
	}
	return fetchmodels.Result{URL: url, HTML: html, Status: 200}, nil
}

type fakeRetriever struct {
	mu    sync.Mutex
	hits  []kmodels.SearchHit
	err   error
	calls int
}

func (f *fakeRetriever) Retrieve(context.Context, string) ([]kmodels.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.hits, f.err
}

type fakeWeb struct {
	mu      sync.Mutex
	results []searchmodels.Result
	err     error
	calls   int
	query   string
	k       int
	filters searchmodels.Filters
}

func (f *fakeWeb) Search(_ context.Context, q string, k int, filters searchmodels.Filters) (searchmodels.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.query, f.k, f.filters = q, k, filters
	if f.err != nil {
		return searchmodels.Response{}, f.err
	}
	return searchmodels.Response{Query: q, Provider: "fake", Results: f.results, Filters: filters}, nil
}

// memCache is a ResultCache keyed like the production tool cache.
type memCache struct {
	mu   sync.Mutex
	m    map[string]models.ToolResult
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{m: map[string]models.ToolResult{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, tool models.SourceID, params map[string]string) (models.ToolResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[repository.ToolKey(tool, params)]
	return r, ok, nil
}

func (c *memCache) Set(_ context.Context, tool models.SourceID, params map[string]string, res models.ToolResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := repository.ToolKey(tool, params)
	c.m[key] = res
	c.ttls[string(tool)] = ttl
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// fakeSynth records what synthesis was asked to do.
type fakeSynth struct {
	mu       sync.Mutex
	requests []SynthesisRequest
	direct   int
	attached int
	rendered string
}

func (f *fakeSynth) Synthesize(_ context.Context, req SynthesisRequest) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return "grounded answer"
}

func (f *fakeSynth) AnswerDirect(context.Context, string, Language) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct++
	return "direct answer"
}

func (f *fakeSynth) AnswerWithAttachments(_ context.Context, _, rendered string, _ Language) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached++
	f.rendered = rendered
	return "attachment answer"
}

func (f *fakeSynth) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests) + f.direct + f.attached
}

type fakeParser struct{}

func (fakeParser) Parse(_ context.Context, refs []string) ([]attachments.Attachment, error) {
	out := make([]attachments.Attachment, len(refs))
	for i, r := range refs {
		out[i] = attachments.Attachment{Filename: r, Type: attachments.TypeText, Content: "contents of " + r, TokenEstimate: 4}
	}
	return out, nil
}

// harness wires an Orchestrator over fakes. Tests tweak fields before
// calling orchestrator.
type harness struct {
	llm       *fakeLLM
	finance   *fakeFinance
	weather   *fakeWeather
	transport *fakeTransport
	clock     *fakeClock
	pages     *fakePages
	kb        *fakeRetriever
	web       *fakeWeb
	cache     *memCache
	synth     *fakeSynth
	engine    config.EngineConfig
	timeout   time.Duration
}

func newHarness() *harness {
	return &harness{
		llm:       newFakeLLM(),
		finance:   &fakeFinance{quote: finance.Quote{Price: 120.5, AsOf: "2024-06-03"}, fx: finance.FXRate{Rate: 18.9}},
		weather:   &fakeWeather{report: weather.Report{Timezone: "Asia/Tokyo", Current: weather.Current{TemperatureC: 24, Condition: "Clear sky"}}},
		transport: &fakeTransport{},
		clock:     &fakeClock{},
		pages:     &fakePages{pages: map[string]string{}},
		kb:        &fakeRetriever{},
		web: &fakeWeb{results: []searchmodels.Result{
			{Title: "Result one", URL: "https://one.example.com/a", Snippet: "first snippet", Domain: "one.example.com"},
			{Title: "Result two", URL: "https://two.example.com/b", Snippet: "second snippet", Domain: "two.example.com"},
		}},
		cache:   newMemCache(),
		synth:   &fakeSynth{},
		engine:  config.EngineConfig{SufficiencyThreshold: 0.5},
		timeout: 2 * time.Second,
	}
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	features := NewFeatures()
	tools := ToolSet{Finance: h.finance, Weather: h.weather, Transport: h.transport, Clock: h.clock, Pages: h.pages}
	return NewOrchestrator(Components{
		Analyzer:    NewQueryAnalyzer(h.llm, logger),
		Router:      NewSourceRouter(h.llm, 0.2, logger),
		Features:    features,
		Executor:    NewToolExecutor(tools, h.cache, features, h.timeout, config.CacheConfig{}, nil, logger),
		Aggregator:  NewContextAggregator(h.web, h.engine, nil, logger),
		Retriever:   h.kb,
		Attachments: fakeParser{},
		Synthesizer: h.synth,
	}, h.engine, logger)
}

func kbHits(n int, relevance float64) []kmodels.SearchHit {
	hits := make([]kmodels.SearchHit, n)
	for i := range hits {
		hits[i] = kmodels.SearchHit{
			DocID:     "doc#00" + string(rune('0'+i)),
			URL:       "file:///kb/doc" + string(rune('0'+i)) + ".md",
			Title:     "KB doc",
			Text:      "local knowledge text",
			Score:     2.5,
			Relevance: relevance,
			Rank:      i + 1,
		}
	}
	return hits
}
