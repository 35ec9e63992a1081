package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinanceDecomposition(t *testing.T) {
	f := NewFeatures()
	tests := []struct {
		query string
		want  FinanceRequest
	}{
		{"price of nvda today", FinanceRequest{Kind: FinanceQuote, Symbols: []string{"NVDA"}, Intraday: true}},
		{"AAPL closing price", FinanceRequest{Kind: FinanceQuote, Symbols: []string{"AAPL"}}},
		{"compare NVDA and AMD, NVDA.", FinanceRequest{Kind: FinanceCompare, Symbols: []string{"NVDA", "AMD"}}},
		{"USD/HKD", FinanceRequest{Kind: FinanceFX, From: "USD", To: "HKD"}},
		{"hkd to jpy", FinanceRequest{Kind: FinanceFX, From: "HKD", To: "JPY"}},
		{"how many yen is one euro", FinanceRequest{Kind: FinanceFX, From: "JPY", To: "EUR"}},
		{"美元兌港元匯率", FinanceRequest{Kind: FinanceFX, From: "USD", To: "HKD"}},
		{"exchange rate for usd and jpy", FinanceRequest{Kind: FinanceFX, From: "USD", To: "JPY"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := f.Finance(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := f.Finance("tell me something nice")
	assert.ErrorIs(t, err, ErrNoTickers)
}

func TestCustomTickers(t *testing.T) {
	f := NewFeaturesWithTickers([]string{"0700.hk"})
	assert.Equal(t, []string{"0700.HK"}, f.Tickers("how is 0700.HK doing"))
	assert.Empty(t, f.Tickers("NVDA"))
}

func TestCurrencyNamesRespectWordBoundaries(t *testing.T) {
	f := NewFeatures()
	_, _, ok := f.FXPair("the yenta brought eurovision tickets")
	assert.False(t, ok)
	from, to, ok := f.FXPair("convert euros to dollars in us dollar")
	require.True(t, ok)
	assert.Equal(t, "EUR", from)
	assert.Equal(t, "USD", to)
}

func TestWeatherLocation(t *testing.T) {
	f := NewFeatures()
	loc, err := f.WeatherLocation("weather in Hong Kong tomorrow", "")
	require.NoError(t, err)
	assert.Equal(t, "Hong Kong", loc)

	loc, err = f.WeatherLocation("weather in Hong Kong", "Kowloon, Hong Kong")
	require.NoError(t, err)
	assert.Equal(t, "Kowloon, Hong Kong", loc)

	loc, err = f.WeatherLocation("forecast for Osaka this afternoon", "")
	require.NoError(t, err)
	assert.Equal(t, "Osaka", loc)
	assert.True(t, f.IsAfternoon("forecast for Osaka this afternoon"))
	assert.True(t, f.IsAfternoon("明天下午天氣"))

	_, err = f.WeatherLocation("what's the weather like", "")
	assert.ErrorIs(t, err, ErrNoLocation)
}

func TestRouteExtraction(t *testing.T) {
	f := NewFeatures()
	tests := []struct {
		query, origin, dest string
	}{
		{"from Central to Mong Kok", "Central", "Mong Kok"},
		{"I'm in Tsim Sha Tsui, how do I get to Central?", "Tsim Sha Tsui", "Central"},
		{"get to Stanley from Central", "Central", "Stanley"},
		{"從旺角去中環點去", "旺角", "中環"},
		{"Sha Tin to Tai Po by bus", "Sha Tin", "Tai Po"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			o, d, err := f.Route(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.origin, o)
			assert.Equal(t, tt.dest, d)
		})
	}

	_, _, err := f.Route("how do I get there")
	assert.ErrorIs(t, err, ErrNeedEndpoints)
}

func TestTimeQueries(t *testing.T) {
	f := NewFeatures()
	assert.True(t, f.IsTimeQuery("what time is it in London"))
	assert.True(t, f.IsTimeQuery("現在幾點"))
	assert.True(t, f.IsTimeQuery("current time in Paris"))
	assert.True(t, f.IsTimeQuery("local time in Sydney?"))
	assert.True(t, f.IsTimeQuery("what's the time in Tokyo"))
	assert.True(t, f.IsTimeQuery("What time in Berlin?"))
	assert.True(t, f.IsTimeQuery("what is the time?"))
	assert.False(t, f.IsTimeQuery("time management tips"))
	assert.False(t, f.IsTimeQuery("What's the best time in Tokyo to see cherry blossoms?"))
	assert.False(t, f.IsTimeQuery("How much time in total does the Peak Tram ride take?"))
	assert.False(t, f.IsTimeQuery("first time in Hong Kong, what should I eat"))
	assert.False(t, f.IsTimeQuery("what time does the Peak Tram open"))

	assert.Equal(t, "New York", f.TimeLocation("what time is it in New York?", ""))
	assert.Equal(t, "Tokyo", f.TimeLocation("what time is it in Osaka", "Tokyo"))
	assert.Equal(t, "", f.TimeLocation("what time is it", ""))
}

func TestLocationNormalizer(t *testing.T) {
	n := NewLocationNormalizer()

	got := n.Normalize(QueryAnalysis{Location: "九龍城"})
	assert.Equal(t, "Kowloon City, Hong Kong", got.Location)
	assert.True(t, got.IsRegionQuery)

	got = n.Normalize(QueryAnalysis{Location: "Hong Kong Island"})
	assert.Equal(t, "Hong Kong Island", got.Location)
	assert.True(t, got.IsRegionQuery)

	got = n.Normalize(QueryAnalysis{Location: "Paris"})
	assert.Equal(t, "Paris", got.Location)
	assert.False(t, got.IsRegionQuery)

	got = n.NormalizeQuery(QueryAnalysis{}, "銅鑼灣有咩食")
	assert.Equal(t, "Causeway Bay, Hong Kong", got.Location)
	assert.True(t, got.IsRegionQuery)

	got = n.NormalizeQuery(QueryAnalysis{Location: "Tokyo"}, "香港 vs Tokyo")
	assert.Equal(t, "Tokyo", got.Location)
	assert.False(t, got.IsRegionQuery)
}

func TestLocationTieBreakIsLexical(t *testing.T) {
	n := newLocationNormalizer(map[string]string{"AB": "first", "BC": "second", "A": "short"})
	got := n.Normalize(QueryAnalysis{Location: "ABC"})
	assert.Equal(t, "first", got.Location)
}

func TestFastPathDetector(t *testing.T) {
	d := NewFastPathDetector()
	simple := []string{
		"What is 2+2?",
		"12 * 7",
		"convert 5 km to miles",
		"translate hello into French",
		"What is photosynthesis?",
		"define entropy",
		"什麼是量子力學",
	}
	for _, q := range simple {
		assert.True(t, d.IsSimple(q), q)
	}
	notSimple := []string{
		"",
		"What is the price of NVDA?",
		"What is the weather today?",
		"Who is the current CEO of Apple",
		"What is the best dim sum in Hong Kong",
		"summarize the quarterly report and list every risk it mentions",
	}
	for _, q := range notSimple {
		assert.False(t, d.IsSimple(q), q)
	}
}

func TestDetectLanguage(t *testing.T) {
	d := NewFastPathDetector()
	assert.Equal(t, LanguageEN, d.DetectLanguage("hello there"))
	assert.Equal(t, LanguageZH, d.DetectLanguage("你好嗎"))
	assert.Equal(t, LanguageMixed, d.DetectLanguage("NVDA 股價"))
}
