package core

import (
	"context"
	"testing"

	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAnalyzeParsesFunctionArguments(t *testing.T) {
	llm := newFakeLLM()
	llm.analysis = "```json\n" + `{"domain":"Weather","location":" Tokyo ","entities":["Tokyo","Tokyo",""],"query_expansions":["a","b","c","d"],"language":"en"}` + "\n```"
	a := NewQueryAnalyzer(llm, zaptest.NewLogger(t))

	got := a.Analyze(context.Background(), "weather in Tokyo")
	assert.Equal(t, DomainWeather, got.Domain)
	assert.Equal(t, "Tokyo", got.Location)
	assert.Equal(t, []string{"Tokyo"}, got.Entities)
	assert.Equal(t, []string{"a", "b", "c"}, got.QueryExpansions)
	assert.Equal(t, LanguageEN, got.Language)
	assert.Empty(t, got.Err)
}

func TestAnalyzeDegradesToDefaults(t *testing.T) {
	tests := []struct {
		name     string
		analysis string
		err      error
	}{
		{name: "call error", err: errDown},
		{name: "not json", analysis: `"just text"`},
		{name: "missing domain", analysis: `{"language":"en"}`},
		{name: "missing language", analysis: `{"domain":"general"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newFakeLLM()
			llm.analysis, llm.analyzeErr = tt.analysis, tt.err
			got := NewQueryAnalyzer(llm, nil).Analyze(context.Background(), "raw query")
			assert.Equal(t, DomainGeneral, got.Domain)
			assert.Equal(t, LanguageEN, got.Language)
			assert.Equal(t, []string{"raw query"}, got.QueryExpansions)
			assert.NotEmpty(t, got.Err)
		})
	}
}

func TestAnalyzeClampsUnknownValues(t *testing.T) {
	llm := newFakeLLM()
	llm.analysis = `{"domain":"sports","location":"","entities":[],"query_expansions":[],"language":"fr"}`
	got := NewQueryAnalyzer(llm, nil).Analyze(context.Background(), "who won")
	assert.Equal(t, DomainGeneral, got.Domain)
	assert.Equal(t, LanguageEN, got.Language)
	assert.Equal(t, []string{"who won"}, got.QueryExpansions)
	assert.Contains(t, got.Err, "domain sports")
	assert.Contains(t, got.Err, "language fr")
}

func TestAnalyzeWithoutModel(t *testing.T) {
	var a *QueryAnalyzer
	got := a.Analyze(context.Background(), "q")
	assert.Equal(t, errNoClassifier.Error(), got.Err)
}

func TestSearchQueryPrefersFirstExpansion(t *testing.T) {
	assert.Equal(t, "x", QueryAnalysis{QueryExpansions: []string{"", "x"}}.SearchQuery("raw"))
	assert.Equal(t, "raw", QueryAnalysis{}.SearchQuery("raw"))
}

func TestRouteParsesSources(t *testing.T) {
	llm := newFakeLLM()
	llm.routing = `{"sources":["Finance","web_search","finance","bogus"],"reasoning":" prices "}`
	r := NewSourceRouter(llm, 0.1, zaptest.NewLogger(t))

	d := r.Route(context.Background(), "NVDA news", false)
	assert.Equal(t, []models.SourceID{models.SourceFinance, models.SourceWebSearch}, d.Sources)
	assert.Equal(t, "prices", d.Reasoning)
	assert.Equal(t, "NVDA news", d.Query)
}

func TestRouteFallbacks(t *testing.T) {
	t.Run("strict local skips the model", func(t *testing.T) {
		llm := newFakeLLM()
		d := NewSourceRouter(llm, 0, nil).Route(context.Background(), "q", true)
		assert.Equal(t, StrictLocalDecision("q"), d)
		assert.Zero(t, llm.count("select_sources"))
	})
	t.Run("call error", func(t *testing.T) {
		llm := newFakeLLM()
		llm.routeErr = errDown
		d := NewSourceRouter(llm, 0, nil).Route(context.Background(), "q", false)
		assert.Equal(t, []models.SourceID{models.SourceLocalKB}, d.Sources)
		assert.Contains(t, d.Reasoning, "routing error: upstream down")
	})
	t.Run("unparsable", func(t *testing.T) {
		llm := newFakeLLM()
		llm.routing = `nothing here`
		d := NewSourceRouter(llm, 0, nil).Route(context.Background(), "q", false)
		assert.Equal(t, []models.SourceID{models.SourceLocalKB}, d.Sources)
		assert.Contains(t, d.Reasoning, "routing error")
	})
	t.Run("no valid sources", func(t *testing.T) {
		llm := newFakeLLM()
		llm.routing = `{"sources":["bogus"],"reasoning":"?"}`
		d := NewSourceRouter(llm, 0, nil).Route(context.Background(), "q", false)
		assert.Equal(t, []models.SourceID{models.SourceLocalKB}, d.Sources)
		assert.Equal(t, "?", d.Reasoning)
	})
	t.Run("nil router", func(t *testing.T) {
		var r *SourceRouter
		d := r.Route(context.Background(), "q", false)
		require.Equal(t, []models.SourceID{models.SourceLocalKB}, d.Sources)
	})
}

func TestSelectSourcesEnumIsRoutable(t *testing.T) {
	props := selectSourcesFunction.Parameters["properties"].(map[string]any)
	items := props["sources"].(map[string]any)["items"].(map[string]any)
	assert.ElementsMatch(t, []string{
		"local_knowledge_base", "web_search", "finance", "weather", "transport", "multimodal_ingest", "time",
	}, items["enum"])
}
