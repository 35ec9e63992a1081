package core

import (
	"time"

	"github.com/mohammad-safakhou/ragrouter/models"
)

// Query represents one user request to the engine
type Query struct {
	Text        string   `json:"query"`
	StrictLocal bool     `json:"strict_local"`
	FastMode    bool     `json:"fast_mode"`
	Files       []string `json:"files,omitempty"`
}

// Domain is the primary topic area assigned by the analyzer
type Domain string

const (
	DomainWeather   Domain = "weather"
	DomainFinance   Domain = "finance"
	DomainTransport Domain = "transport"
	DomainHKLocal   Domain = "hk_local"
	DomainCuisine   Domain = "cuisine"
	DomainHistory   Domain = "history"
	DomainGeneral   Domain = "general"
)

var knownDomains = []Domain{DomainWeather, DomainFinance, DomainTransport, DomainHKLocal, DomainCuisine, DomainHistory, DomainGeneral}

// Language is the answer language
type Language string

const (
	LanguageEN    Language = "en"
	LanguageZH    Language = "zh"
	LanguageMixed Language = "mixed"
)

// QueryAnalysis is the structured metadata extracted from a query
type QueryAnalysis struct {
	Domain          Domain   `json:"domain"`
	Location        string   `json:"location"`
	Entities        []string `json:"entities"`
	QueryExpansions []string `json:"query_expansions"`
	Language        Language `json:"language"`
	IsRegionQuery   bool     `json:"is_region_query"`
	Err             string   `json:"error,omitempty"`
}

// SearchQuery is the first expansion, or raw when there is none.
func (a QueryAnalysis) SearchQuery(raw string) string {
	for _, e := range a.QueryExpansions {
		if e != "" {
			return e
		}
	}
	return raw
}

// RoutingDecision is the ordered set of sources to consult for a query
type RoutingDecision struct {
	Sources   []models.SourceID `json:"sources"`
	Reasoning string            `json:"reasoning"`
	Query     string            `json:"query"`
}

// Has reports whether id was selected.
func (d RoutingDecision) Has(id models.SourceID) bool {
	for _, s := range d.Sources {
		if s == id {
			return true
		}
	}
	return false
}

func (d *RoutingDecision) add(id models.SourceID) {
	if !d.Has(id) {
		d.Sources = append(d.Sources, id)
	}
}

// ContextItem is one unit of evidence handed to synthesis. Order matters:
// citation numbers are positions in the evidence slice.
type ContextItem struct {
	Text             string          `json:"text"`
	Source           models.SourceID `json:"source"`
	URL              string          `json:"url,omitempty"`
	Title            string          `json:"title,omitempty"`
	DomainName       string          `json:"domain_name,omitempty"`
	DocID            string          `json:"doc_id,omitempty"`
	CredibilityScore *float64        `json:"credibility_score,omitempty"`
	FinalScore       *float64        `json:"final_score,omitempty"`
	Score            *float64        `json:"score,omitempty"`
}

// BestScore returns the first set value of FinalScore, Score and
// CredibilityScore.
func (c ContextItem) BestScore() (float64, bool) {
	for _, s := range []*float64{c.FinalScore, c.Score, c.CredibilityScore} {
		if s != nil {
			return *s, true
		}
	}
	return 0, false
}

// GroundingMode decides the synthesis instruction set
type GroundingMode string

const (
	GroundingStrict     GroundingMode = "strict"
	GroundingPermissive GroundingMode = "permissive"
)

// Answerability records why an answer was or was not synthesized
type Answerability string

const (
	Answerable                Answerability = "answerable"
	AnswerabilityInsufficient Answerability = "insufficient_context"
)

// FallbackAttempt is one step of a fallback chain. Failed attempts are kept
// so they can be logged and counted even though they never reach the user.
type FallbackAttempt struct {
	Tool   models.SourceID `json:"tool"`
	URL    string          `json:"url"`
	OK     bool            `json:"ok"`
	Reason string          `json:"reason,omitempty"`
}

// WorkflowResult is the full record of one query execution
type WorkflowResult struct {
	ID            string                                `json:"id"`
	Query         string                                `json:"query"`
	Answer        string                                `json:"answer"`
	Routing       RoutingDecision                       `json:"routing"`
	SourcesUsed   []models.SourceID                     `json:"sources_used"`
	ToolResults   map[models.SourceID]models.ToolResult `json:"tool_results"`
	FailedTools   []models.SourceID                     `json:"failed_tools"`
	ContextCount  int                                   `json:"context_count"`
	Citations     []string                              `json:"citations"`
	LatencyMS     int64                                 `json:"latency_ms"`
	Timestamp     time.Time                             `json:"timestamp"`
	FastPath      bool                                  `json:"fast_path"`
	Attachments   bool                                  `json:"attachments"`
	Answerability Answerability                         `json:"answerability,omitempty"`
	Grounding     GroundingMode                         `json:"grounding,omitempty"`
	Analysis      *QueryAnalysis                        `json:"query_analysis,omitempty"`
	Fallbacks     []FallbackAttempt                     `json:"fallback_attempts,omitempty"`
}

func ptr(f float64) *float64 { return &f }
