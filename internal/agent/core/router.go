package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/ragrouter/internal/helpers"
	"github.com/mohammad-safakhou/ragrouter/models"
	"go.uber.org/zap"
)

const strictLocalReasoning = "strict local mode"

const routeSystemPrompt = `You are an intelligent router that selects the best data sources for answering user queries.

Available sources:
- local_knowledge_base: internal documents and knowledge base
- web_search: real-time web search for current information, news, articles, blogs
- finance: stock prices, market data, exchange rates (real-time API data)
- weather: weather conditions and forecasts (real-time API data)
- transport: routes, directions, travel times (real-time API data)
- time: current local time and date for a place
- multimodal_ingest: process uploaded files (PDFs, images, documents)

Selection guidelines:
- Stock prices, market data or exchange rates -> finance (do NOT add web_search unless the user asks for news or articles)
- Weather conditions or forecasts -> weather (do NOT add web_search unless the user asks for weather news or unusual events)
- Routes, directions or travel times -> transport (do NOT add web_search)
- Current time or date somewhere -> time
- File attached or document processing needed -> multimodal_ingest
- Latest news, articles, blogs, current events -> web_search (optionally with local_knowledge_base)
- General knowledge, definitions, facts -> local_knowledge_base only

Prefer specialized tools over web_search. Only add web_search when the user explicitly asks for news, articles or analysis, when the query is about current events no specialized tool covers, or when no specialized tool matches.`

var selectSourcesFunction = models.Function{
	Name:        "select_sources",
	Description: "Select which data sources to use for answering the query",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sources": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
					"enum": routableNames(),
				},
				"description": "List of sources to query",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Explanation for source selection",
			},
		},
		"required": []string{"sources", "reasoning"},
	},
}

func routableNames() []string {
	out := make([]string, len(models.RoutableSources))
	for i, s := range models.RoutableSources {
		out[i] = string(s)
	}
	return out
}

// SourceRouter selects the sources to consult for a query.
type SourceRouter struct {
	llm         FunctionCaller
	temperature float64
	logger      *zap.Logger
}

func NewSourceRouter(llm FunctionCaller, temperature float64, logger *zap.Logger) *SourceRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SourceRouter{llm: llm, temperature: temperature, logger: logger.Named("router")}
}

// StrictLocalDecision is the fixed decision for local-only mode.
func StrictLocalDecision(query string) RoutingDecision {
	return RoutingDecision{
		Sources:   []models.SourceID{models.SourceLocalKB},
		Reasoning: strictLocalReasoning,
		Query:     query,
	}
}

func routingErrorDecision(query string, err error) RoutingDecision {
	return RoutingDecision{
		Sources:   []models.SourceID{models.SourceLocalKB},
		Reasoning: fmt.Sprintf("routing error: %v; defaulting to local knowledge base", err),
		Query:     query,
	}
}

// Route never fails. Strict local mode skips the model; a failed model call
// degrades to the local knowledge base.
func (r *SourceRouter) Route(ctx context.Context, query string, strictLocal bool) RoutingDecision {
	if strictLocal {
		return StrictLocalDecision(query)
	}
	if r == nil || r.llm == nil {
		return routingErrorDecision(query, errors.New("no router model configured"))
	}
	msgs := []models.Message{
		{Role: "system", Content: routeSystemPrompt},
		{Role: "user", Content: query},
	}
	call, err := r.llm.CallFunction(ctx, msgs, selectSourcesFunction, models.CompletionOptions{Temperature: models.Temperature(r.temperature)})
	if err != nil {
		r.logger.Warn("routing call failed", zap.Error(err))
		return routingErrorDecision(query, err)
	}
	decision, err := parseRouting(query, call.Arguments)
	if err != nil {
		r.logger.Warn("routing output unparsable", zap.Error(err))
		return routingErrorDecision(query, err)
	}
	return decision
}

func parseRouting(query string, raw json.RawMessage) (RoutingDecision, error) {
	body, err := helpers.ExtractJSON(string(raw))
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("select_sources arguments: %w", err)
	}
	var args struct {
		Sources   []string `json:"sources"`
		Reasoning string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(body), &args); err != nil {
		return RoutingDecision{}, fmt.Errorf("select_sources arguments: %w", err)
	}
	d := RoutingDecision{Reasoning: strings.TrimSpace(args.Reasoning), Query: query}
	for _, s := range args.Sources {
		id := models.SourceID(strings.ToLower(strings.TrimSpace(s)))
		if models.IsRoutable(id) {
			d.add(id)
		}
	}
	if len(d.Sources) == 0 {
		d.Sources = []models.SourceID{models.SourceLocalKB}
	}
	return d, nil
}
