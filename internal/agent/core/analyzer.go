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

const maxExpansions = 3

var errNoClassifier = errors.New("no classifier configured")

const analyzeSystemPrompt = `You are a query analysis expert that extracts structured information from user queries.

Extract:
1. Domain: primary topic area (weather, finance, transport, hk_local, cuisine, history, general)
2. Location: geographic location if mentioned, normalized to a standard name such as "Hong Kong", "Beijing", "New York"; empty when none
3. Entities: key entities (companies, places, people, organizations)
4. Query expansions: 2-3 semantically similar versions of the query for better search recall, best first
5. Language: en for English, zh for Chinese, mixed for both

Examples:
- "What's the weather forecast for Hong Kong this afternoon?" -> domain=weather, location="Hong Kong", expansions=["Hong Kong weather forecast today afternoon", "Hong Kong weather this afternoon"]
- "香港圖書館證怎麼辦理？" -> domain=hk_local, location="Hong Kong", entities=["Hong Kong Public Library", "library card"], expansions=["Hong Kong library card application", "HKPL borrower registration"]

Be precise with location extraction and normalization.`

var analyzeFunction = models.Function{
	Name:        "analyze_query",
	Description: "Analyze the query to extract structured information",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"domain": map[string]any{
				"type":        "string",
				"enum":        []string{"weather", "finance", "transport", "hk_local", "cuisine", "history", "general"},
				"description": "Primary domain of the query",
			},
			"location": map[string]any{
				"type":        "string",
				"description": "Geographic location mentioned, normalized. Empty if no location.",
			},
			"entities": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Key entities mentioned",
			},
			"query_expansions": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "2-3 expanded versions of the query for better recall",
			},
			"language": map[string]any{
				"type":        "string",
				"enum":        []string{"en", "zh", "mixed"},
				"description": "Primary language of the query",
			},
		},
		"required": []string{"domain", "location", "entities", "query_expansions", "language"},
	},
}

// QueryAnalyzer wraps the analyze_query classification call.
type QueryAnalyzer struct {
	llm    FunctionCaller
	logger *zap.Logger
}

func NewQueryAnalyzer(llm FunctionCaller, logger *zap.Logger) *QueryAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryAnalyzer{llm: llm, logger: logger.Named("analyzer")}
}

// DefaultAnalysis is what every failed classification degrades to.
func DefaultAnalysis(query string, err error) QueryAnalysis {
	a := QueryAnalysis{
		Domain:          DomainGeneral,
		Entities:        []string{},
		QueryExpansions: []string{query},
		Language:        LanguageEN,
	}
	if err != nil {
		a.Err = err.Error()
	}
	return a
}

// Analyze never fails: any classifier problem yields DefaultAnalysis with
// Err set.
func (a *QueryAnalyzer) Analyze(ctx context.Context, query string) QueryAnalysis {
	if a == nil || a.llm == nil {
		return DefaultAnalysis(query, errNoClassifier)
	}
	msgs := []models.Message{
		{Role: "system", Content: analyzeSystemPrompt},
		{Role: "user", Content: query},
	}
	call, err := a.llm.CallFunction(ctx, msgs, analyzeFunction, models.CompletionOptions{Temperature: models.Temperature(0.3)})
	if err != nil {
		a.logger.Warn("query analysis failed", zap.Error(err))
		return DefaultAnalysis(query, err)
	}
	out, err := parseAnalysis(query, call.Arguments)
	if err != nil {
		a.logger.Warn("query analysis unparsable", zap.Error(err))
		return DefaultAnalysis(query, err)
	}
	return out
}

type analysisArgs struct {
	Domain          *string  `json:"domain"`
	Location        *string  `json:"location"`
	Entities        []string `json:"entities"`
	QueryExpansions []string `json:"query_expansions"`
	Language        *string  `json:"language"`
}

func parseAnalysis(query string, raw json.RawMessage) (QueryAnalysis, error) {
	body, err := helpers.ExtractJSON(string(raw))
	if err != nil {
		return QueryAnalysis{}, fmt.Errorf("analyze_query arguments: %w", err)
	}
	var args analysisArgs
	if err := json.Unmarshal([]byte(body), &args); err != nil {
		return QueryAnalysis{}, fmt.Errorf("analyze_query arguments: %w", err)
	}
	if args.Domain == nil || args.Language == nil {
		return QueryAnalysis{}, errors.New("analyze_query: missing required field")
	}

	out := DefaultAnalysis(query, nil)
	var clamped []string
	if d := Domain(strings.ToLower(strings.TrimSpace(*args.Domain))); validDomain(d) {
		out.Domain = d
	} else {
		clamped = append(clamped, "domain "+*args.Domain)
	}
	switch l := Language(strings.ToLower(strings.TrimSpace(*args.Language))); l {
	case LanguageEN, LanguageZH, LanguageMixed:
		out.Language = l
	default:
		clamped = append(clamped, "language "+*args.Language)
	}
	if args.Location != nil {
		out.Location = strings.TrimSpace(*args.Location)
	}
	out.Entities = cleanList(args.Entities, 0)
	if exp := cleanList(args.QueryExpansions, maxExpansions); len(exp) > 0 {
		out.QueryExpansions = exp
	}
	if len(clamped) > 0 {
		out.Err = "out-of-range " + strings.Join(clamped, ", ")
	}
	return out, nil
}

func validDomain(d Domain) bool {
	for _, k := range knownDomains {
		if k == d {
			return true
		}
	}
	return false
}

// cleanList trims, drops empties and duplicates, and caps at limit when
// limit > 0.
func cleanList(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
