package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/telemetry"
	kmodels "github.com/mohammad-safakhou/ragrouter/knowledge/models"
	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/tools/finance"
	"github.com/mohammad-safakhou/ragrouter/tools/transport"
	"github.com/mohammad-safakhou/ragrouter/tools/weather"
	searchmodels "github.com/mohammad-safakhou/ragrouter/tools/web_search/models"
	"github.com/mohammad-safakhou/ragrouter/tools/worldclock"
	"go.uber.org/zap"
)

type toolScore struct{ credibility, final float64 }

var toolScores = map[models.SourceID]toolScore{
	models.SourceFinance:              {0.9, 0.85},
	models.SourceFinanceWebExtraction: {0.85, 0.8},
	models.SourceWeather:              {0.85, 0.8},
	models.SourceTransport:            {0.8, 0.75},
	models.SourceTime:                 {0.95, 0.9},
	models.SourceWebSearch:            {0.6, 0.7},
}

// trustedSources make evidence meaningful on their own and count as domain
// context when deciding whether to search the web.
var trustedSources = map[models.SourceID]bool{
	models.SourceFinance:              true,
	models.SourceFinanceWebExtraction: true,
	models.SourceWeather:              true,
	models.SourceTransport:            true,
	models.SourceTime:                 true,
}

var (
	regionPreferredDomains = []string{"gov.hk", "hkpl.gov.hk", "hko.gov.hk", "td.gov.hk", "info.gov.hk", "mtr.com.hk"}
	cuisinePreferredDomain = "openrice.com"
	lowQualityDomains      = []string{"reddit.com", "facebook.com", "quora.com"}
	factualDomains         = map[Domain]bool{DomainWeather: true, DomainFinance: true, DomainHKLocal: true, DomainCuisine: true}
)

// KBPayload is the tool result recorded for the local knowledge base.
type KBPayload struct {
	Count int                 `json:"count"`
	Docs  []kmodels.SearchHit `json:"docs"`
}

// ContextAggregator turns retrieval hits and tool results into ordered
// evidence, runs the web fallback and judges sufficiency.
type ContextAggregator struct {
	web       WebSearch
	cfg       config.EngineConfig
	telemetry *telemetry.Telemetry
	logger    *zap.Logger
}

func NewContextAggregator(web WebSearch, cfg config.EngineConfig, tel *telemetry.Telemetry, logger *zap.Logger) *ContextAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextAggregator{web: web, cfg: cfg.Normalize(), telemetry: tel, logger: logger.Named("aggregator")}
}

// RenderToolResult renders a successful tool payload as readable text.
func RenderToolResult(res models.ToolResult) (string, error) {
	switch res.Tool {
	case models.SourceFinance, models.SourceFinanceWebExtraction:
		var p finance.Payload
		if err := res.Decode(&p); err != nil {
			return "", err
		}
		return p.Text(), nil
	case models.SourceWeather:
		var r weather.Report
		if err := res.Decode(&r); err != nil {
			return "", err
		}
		return r.Text(), nil
	case models.SourceTransport:
		var d transport.Directions
		if err := res.Decode(&d); err != nil {
			return "", err
		}
		return d.Text(), nil
	case models.SourceTime:
		var c worldclock.Clock
		if err := res.Decode(&c); err != nil {
			return "", err
		}
		return c.Text(), nil
	}
	if !res.OK() {
		return "", res.Err()
	}
	return string(res.Data), nil
}

// ToolItems emits one item per successful tool result in run order.
func (a *ContextAggregator) ToolItems(run ToolRun) []ContextItem {
	var items []ContextItem
	for _, id := range run.Order {
		res := run.Results[id]
		if !res.OK() {
			continue
		}
		text, err := RenderToolResult(res)
		if err != nil || strings.TrimSpace(text) == "" {
			a.logger.Warn("tool result not renderable", zap.String("tool", string(id)), zap.Error(err))
			continue
		}
		item := ContextItem{Text: text, Source: id}
		if sc, ok := toolScores[id]; ok {
			item.CredibilityScore, item.FinalScore = ptr(sc.credibility), ptr(sc.final)
		}
		if id == models.SourceFinanceWebExtraction {
			var p finance.Payload
			if res.Decode(&p) == nil && p.Quote != nil {
				item.URL = p.Quote.URL
			}
		}
		items = append(items, item)
	}
	return items
}

// KBItems emits one item per retrieval hit.
func (a *ContextAggregator) KBItems(hits []kmodels.SearchHit) []ContextItem {
	items := make([]ContextItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, ContextItem{
			Text:       h.Text,
			Source:     models.SourceLocalKB,
			URL:        h.URL,
			Title:      h.Title,
			DocID:      h.DocID,
			Score:      ptr(h.Score),
			FinalScore: ptr(h.Relevance),
		})
	}
	return items
}

// ShouldSearchWeb applies the web fallback trigger: never in fast mode;
// otherwise when routing asked for it, a domain tool failed, or the
// knowledge base came back thin without specialized-tool evidence.
func (a *ContextAggregator) ShouldSearchWeb(fastMode bool, decision RoutingDecision, failed int, kbDocs int, items []ContextItem) bool {
	if fastMode {
		return false
	}
	if decision.Has(models.SourceWebSearch) || failed > 0 {
		return true
	}
	return kbDocs < a.cfg.KBMinDocs && !hasDomainContext(items)
}

func hasDomainContext(items []ContextItem) bool {
	for _, it := range items {
		if trustedSources[it.Source] {
			return true
		}
	}
	return false
}

// WebFilters derives site preferences from the analysis.
func WebFilters(analysis QueryAnalysis) searchmodels.Filters {
	var f searchmodels.Filters
	if analysis.IsRegionQuery || strings.Contains(strings.ToLower(analysis.Location), regionName) {
		f.PreferredDomains = append(f.PreferredDomains, regionPreferredDomains...)
		if analysis.Domain == DomainCuisine {
			f.PreferredDomains = append(f.PreferredDomains, cuisinePreferredDomain)
		}
	}
	if factualDomains[analysis.Domain] {
		f.BlockedDomains = append(f.BlockedDomains, lowQualityDomains...)
	}
	return f
}

// SearchWeb runs the web search for the first expansion and returns its
// evidence plus the tool result to record. A search failure yields no
// items.
func (a *ContextAggregator) SearchWeb(ctx context.Context, queryID, query string, analysis QueryAnalysis) ([]ContextItem, models.ToolResult) {
	if a.web == nil {
		return nil, models.Failure(models.SourceWebSearch, ErrToolUnavailable)
	}
	q := analysis.SearchQuery(query)
	start := time.Now()
	resp, err := a.web.Search(ctx, q, a.cfg.WebMaxResults, WebFilters(analysis))
	a.telemetry.RecordSourceEvent(ctx, telemetry.SourceEvent{
		ID:       queryID,
		Source:   string(models.SourceWebSearch),
		Duration: time.Since(start),
		Success:  err == nil,
		Error:    errString(err),
		Results:  len(resp.Results),
	})
	if err != nil {
		return nil, models.Failure(models.SourceWebSearch, fmt.Errorf("web search: %w", err))
	}

	sc := toolScores[models.SourceWebSearch]
	items := make([]ContextItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		items = append(items, ContextItem{
			Text:             r.Snippet,
			Source:           models.SourceWebSearch,
			URL:              r.URL,
			Title:            r.Title,
			DomainName:       r.Domain,
			CredibilityScore: ptr(sc.credibility),
			FinalScore:       ptr(sc.final),
		})
	}
	return items, models.Success(models.SourceWebSearch, resp)
}

// Meaningful reports whether the evidence can support an answer: any item
// from a trusted tool, or any item whose best score reaches the threshold.
func (a *ContextAggregator) Meaningful(items []ContextItem) bool {
	for _, it := range items {
		if trustedSources[it.Source] {
			return true
		}
		if s, ok := it.BestScore(); ok && s >= a.cfg.SufficiencyThreshold {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
