package core

import (
	"context"
	"time"

	kmodels "github.com/mohammad-safakhou/ragrouter/knowledge/models"
	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/tools/attachments"
	"github.com/mohammad-safakhou/ragrouter/tools/finance"
	"github.com/mohammad-safakhou/ragrouter/tools/transport"
	"github.com/mohammad-safakhou/ragrouter/tools/weather"
	fetchmodels "github.com/mohammad-safakhou/ragrouter/tools/web_fetch/models"
	searchmodels "github.com/mohammad-safakhou/ragrouter/tools/web_search/models"
	"github.com/mohammad-safakhou/ragrouter/tools/worldclock"
)

// FunctionCaller is the structured-output side of the LLM client, used for
// classification and source selection.
type FunctionCaller interface {
	CallFunction(ctx context.Context, messages []models.Message, fn models.Function, opts models.CompletionOptions) (models.FunctionCall, error)
}

// Completer is the free-text side of the LLM client, used for synthesis.
type Completer interface {
	Complete(ctx context.Context, messages []models.Message, opts models.CompletionOptions) (string, error)
}

type FinanceTool interface {
	Quote(ctx context.Context, symbol string, intraday bool) (finance.Quote, error)
	Compare(ctx context.Context, symbols []string) (finance.Comparison, error)
	ExchangeRate(ctx context.Context, from, to string) (finance.FXRate, error)
}

type WeatherTool interface {
	Forecast(ctx context.Context, location string) (weather.Report, error)
	AfternoonForecast(ctx context.Context, location string) (weather.Report, error)
}

type TransportTool interface {
	Directions(ctx context.Context, origin, destination string) (transport.Directions, error)
}

type ClockTool interface {
	Now(ctx context.Context, location string) (worldclock.Clock, error)
}

// PageFetcher loads a web page; used by the finance fallback chain.
type PageFetcher interface {
	Exec(ctx context.Context, url string) (fetchmodels.Result, error)
}

type WebSearch interface {
	Search(ctx context.Context, q string, k int, filters searchmodels.Filters) (searchmodels.Response, error)
}

// Retriever is the local knowledge base.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]kmodels.SearchHit, error)
}

// ResultCache stores tool results keyed by tool and normalized params.
type ResultCache interface {
	Get(ctx context.Context, tool models.SourceID, params map[string]string) (models.ToolResult, bool, error)
	Set(ctx context.Context, tool models.SourceID, params map[string]string, res models.ToolResult, ttl time.Duration) error
}

// AnswerStore caches synthesized answers by query and citation list.
type AnswerStore interface {
	Get(ctx context.Context, query string, citations []string) (string, bool, error)
	Set(ctx context.Context, query string, citations []string, answer string) error
}

type AttachmentParser interface {
	Parse(ctx context.Context, refs []string) ([]attachments.Attachment, error)
}

// SynthesisRequest is the evidence bundle for a grounded answer. Evidence
// and Citations are the same slice positions.
type SynthesisRequest struct {
	Query     string
	Evidence  []ContextItem
	Citations []string
	Mode      GroundingMode
	Language  Language
}

// Synthesizer produces answer text. Implementations report failures inside
// the returned text rather than as errors.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) string
	AnswerDirect(ctx context.Context, query string, lang Language) string
	AnswerWithAttachments(ctx context.Context, query, rendered string, lang Language) string
}
