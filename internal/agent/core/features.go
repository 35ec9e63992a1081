package core

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// Terminal per-tool errors. They are recorded as the tool's failure and
// never retried.
var (
	ErrNoTickers     = errors.New("No stock tickers found in query")
	ErrNoLocation    = errors.New("No location specified in query")
	ErrNeedEndpoints = errors.New("Need origin and destination for transport query")
)

// FinanceKind selects the finance tool operation.
type FinanceKind string

const (
	FinanceQuote   FinanceKind = "quote"
	FinanceCompare FinanceKind = "compare"
	FinanceFX      FinanceKind = "fx"
)

// FinanceRequest is the decomposed finance part of a query.
type FinanceRequest struct {
	Kind     FinanceKind
	Symbols  []string
	From, To string
	Intraday bool
}

var defaultTickers = []string{"NVDA", "AMD", "AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META"}

var currencyCodes = map[string]bool{
	"USD": true, "HKD": true, "JPY": true, "EUR": true, "GBP": true, "CNY": true, "AUD": true, "CAD": true,
	"SGD": true, "KRW": true, "TWD": true, "CHF": true, "THB": true, "NZD": true, "INR": true, "MOP": true,
}

// currencyNames maps lower-cased EN and ZH currency names to ISO codes.
var currencyNames = map[string]string{
	"us dollar": "USD", "u.s. dollar": "USD", "american dollar": "USD", "美元": "USD", "美金": "USD",
	"hong kong dollar": "HKD", "港元": "HKD", "港幣": "HKD", "港币": "HKD",
	"japanese yen": "JPY", "yen": "JPY", "日元": "JPY", "日圓": "JPY", "日圆": "JPY",
	"euro": "EUR", "歐元": "EUR", "欧元": "EUR",
	"british pound": "GBP", "pound sterling": "GBP", "sterling": "GBP", "英鎊": "GBP", "英镑": "GBP",
	"renminbi": "CNY", "chinese yuan": "CNY", "yuan": "CNY", "rmb": "CNY", "人民幣": "CNY", "人民币": "CNY",
	"australian dollar": "AUD", "澳元": "AUD", "澳幣": "AUD",
	"canadian dollar": "CAD", "加元": "CAD", "加幣": "CAD",
	"singapore dollar": "SGD", "新加坡元": "SGD", "新加坡幣": "SGD",
	"korean won": "KRW", "韓元": "KRW", "韩元": "KRW",
	"taiwan dollar": "TWD", "新台幣": "TWD", "新台币": "TWD",
	"swiss franc": "CHF", "瑞士法郎": "CHF",
	"thai baht": "THB", "baht": "THB", "泰銖": "THB", "泰铢": "THB",
	"pataca": "MOP", "澳門幣": "MOP", "澳门币": "MOP",
}

var (
	fxSlashPair  = regexp.MustCompile(`\b([A-Z]{3})\s*/\s*([A-Z]{3})\b`)
	fxToPair     = regexp.MustCompile(`\b([A-Z]{3})\s+(?:TO|IN|INTO|VS|AGAINST)\s+([A-Z]{3})\b`)
	fxKeyword    = regexp.MustCompile(`(?i)exchange rate|fx rate|匯率|汇率`)
	isoWord      = regexp.MustCompile(`\b[A-Z]{3}\b`)
	intradayWord = regexp.MustCompile(`(?i)\b(current|now|today|latest|real-time|realtime)\b`)
	afternoon    = regexp.MustCompile(`(?i)\bafternoon\b|下午`)
)

var timePhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhat(?:'s|\s+is)?\s+(?:the\s+)?time\b(?:\s+is\s+it)?(?:\s+(?:right\s+)?now)?(?:\s+in\b|\s*[?.!]*$)`),
	regexp.MustCompile(`(?i)\b(time is it|current time|local time|time now|time right now|what date is it|what day is it|today's date)\b`),
	regexp.MustCompile(`幾點|几点|現在時間|现在时间|什麼時間|什么时间|今天幾號|今天几号|今日幾號|星期幾|星期几`),
}

var timeLocation = regexp.MustCompile(`(?i)\btime\s+(?:is\s+it\s+)?(?:now\s+|right now\s+)?in\s+(.+?)\s*[?.!]*$`)

// time words that may trail a preposition-extracted location
var trailingTimeWords = map[string]bool{
	"today": true, "tomorrow": true, "tonight": true, "now": true, "right": true, "this": true,
	"morning": true, "afternoon": true, "evening": true, "weekend": true, "currently": true, "later": true,
}

var (
	routeGoTo   = regexp.MustCompile(`(?i)\b(?:in|at|from)\s+(.+?)\s*,?\s+(?:(?:how\s+(?:do|can|should)\s+(?:i|we)|how\s+to|i\s+(?:want|need)\s+to|(?:i|we)\s+want\s+to)\s+)?(?:go|get)\s+to\s+(.+?)\s*[?.!]*$`)
	routeFromTo = regexp.MustCompile(`(?i)\bfrom\s+(.+?)\s+to\s+(.+?)\s*[?.!]*$`)
	routeToFrom = regexp.MustCompile(`(?i)\b(?:go|get|travel)\s+to\s+(.+?)\s+from\s+(.+?)\s*[?.!]*$`)
	routeZHFrom = regexp.MustCompile(`(?:從|从)(.+?)(?:去|到)(.+?)(?:點去|怎麼去|怎么去|要幾耐|要多久)?[?？]?$`)
	routeBare   = regexp.MustCompile(`(?i)^(.+?)\s+to\s+(.+?)\s*[?.!]*$`)
	routeZHBare = regexp.MustCompile(`^(.+?)(?:點去|怎麼去|怎么去)(.+?)[?？]?$`)
	leadFiller  = regexp.MustCompile(`(?i)^(?:(?:how|do|does|can|should|i|i'm|we|want|need|would|like|to|get|go|travel|route|directions?|take|best|fastest|way|what's|what|is|mtr|bus|train|ferry|transit)(?:\s+|$))+`)
	trailBy     = regexp.MustCompile(`(?i)\s+by\s+(?:bus|mtr|train|ferry|tram|taxi|public transport|transit)$`)
)

// Features holds the pattern tables for query decomposition. The engine
// depends only on its method results, so tables can be swapped.
type Features struct {
	tickers    map[string]bool
	currencies []string
}

func NewFeatures() *Features {
	return NewFeaturesWithTickers(defaultTickers)
}

// NewFeaturesWithTickers uses a custom recognized-symbol set.
func NewFeaturesWithTickers(tickers []string) *Features {
	f := &Features{tickers: map[string]bool{}}
	for _, t := range tickers {
		f.tickers[strings.ToUpper(t)] = true
	}
	for name := range currencyNames {
		f.currencies = append(f.currencies, name)
	}
	sort.Slice(f.currencies, func(i, j int) bool {
		if len(f.currencies[i]) != len(f.currencies[j]) {
			return len(f.currencies[i]) > len(f.currencies[j])
		}
		return f.currencies[i] < f.currencies[j]
	})
	return f
}

// Finance decomposes a finance query. FX pairs are checked before tickers.
func (f *Features) Finance(query string) (FinanceRequest, error) {
	if from, to, ok := f.FXPair(query); ok {
		return FinanceRequest{Kind: FinanceFX, From: from, To: to}, nil
	}
	tickers := f.Tickers(query)
	switch len(tickers) {
	case 0:
		return FinanceRequest{}, ErrNoTickers
	case 1:
		return FinanceRequest{Kind: FinanceQuote, Symbols: tickers, Intraday: f.Intraday(query)}, nil
	default:
		return FinanceRequest{Kind: FinanceCompare, Symbols: tickers}, nil
	}
}

// Tickers returns recognized symbols in query order without duplicates.
func (f *Features) Tickers(query string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToUpper(query)) {
		w = strings.Trim(w, ".,!?;:")
		if f.tickers[w] && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func (f *Features) Intraday(query string) bool {
	return intradayWord.MatchString(query)
}

// FXPair finds a currency pair: an explicit XXX/YYY or "XXX to YYY", two
// currency names, or an exchange-rate keyword with two ISO codes.
func (f *Features) FXPair(query string) (string, string, bool) {
	upper := strings.ToUpper(query)
	for _, re := range []*regexp.Regexp{fxSlashPair, fxToPair} {
		for _, m := range re.FindAllStringSubmatch(upper, -1) {
			if currencyCodes[m[1]] && currencyCodes[m[2]] && m[1] != m[2] {
				return m[1], m[2], true
			}
		}
	}
	if codes := f.currencyMentions(query); len(codes) >= 2 {
		return codes[0], codes[1], true
	}
	if fxKeyword.MatchString(query) {
		var codes []string
		for _, w := range isoWord.FindAllString(upper, -1) {
			if currencyCodes[w] && !contains(codes, w) {
				codes = append(codes, w)
			}
		}
		if len(codes) >= 2 {
			return codes[0], codes[1], true
		}
	}
	return "", "", false
}

// currencyMentions lists distinct currency codes named in query, in order
// of appearance, longest name winning at each position.
func (f *Features) currencyMentions(query string) []string {
	lower := strings.ToLower(query)
	type hit struct {
		pos, end int
		code     string
	}
	var hits []hit
	for _, name := range f.currencies {
		for from := 0; ; {
			i := strings.Index(lower[from:], name)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(name)
			overlaps := false
			for _, h := range hits {
				if start < h.end && h.pos < end {
					overlaps = true
					break
				}
			}
			if !overlaps && wordBounded(lower, start, end) {
				hits = append(hits, hit{pos: start, end: end, code: currencyNames[name]})
			}
			from = end
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	var codes []string
	for _, h := range hits {
		if !contains(codes, h.code) {
			codes = append(codes, h.code)
		}
	}
	return codes
}

// wordBounded rejects ASCII names glued to other ASCII letters.
func wordBounded(s string, start, end int) bool {
	isLetter := func(b byte) bool { return b >= 'a' && b <= 'z' }
	if start > 0 && isLetter(s[start-1]) && isLetter(s[start]) {
		return false
	}
	if end < len(s) && isLetter(s[end]) && isLetter(s[end-1]) {
		// allow plurals such as "euros", "dollars"
		if s[end] == 's' && (end+1 == len(s) || !isLetter(s[end+1])) {
			return true
		}
		return false
	}
	return true
}

// WeatherLocation prefers the analyzed location and falls back to the
// words after in/at/for.
func (f *Features) WeatherLocation(query, analyzed string) (string, error) {
	if loc := strings.TrimSpace(analyzed); loc != "" {
		return loc, nil
	}
	words := strings.Fields(query)
	for i, w := range words {
		switch strings.ToLower(w) {
		case "in", "at", "for":
		default:
			continue
		}
		end := min(i+3, len(words))
		var picked []string
		for _, c := range words[i+1 : end] {
			c = strings.Trim(c, ".,!?;:'\"")
			if c == "" || trailingTimeWords[strings.ToLower(c)] {
				break
			}
			picked = append(picked, c)
		}
		if len(picked) > 0 {
			return strings.Join(picked, " "), nil
		}
	}
	return "", ErrNoLocation
}

func (f *Features) IsAfternoon(query string) bool {
	return afternoon.MatchString(query)
}

// Route extracts origin and destination. The first pattern that yields two
// non-empty endpoints wins: "in X, get to Y", then "from X to Y", then a
// bare "X to Y".
func (f *Features) Route(query string) (string, string, error) {
	q := strings.TrimSpace(query)
	try := func(re *regexp.Regexp, swap bool) (string, string, bool) {
		m := re.FindStringSubmatch(q)
		if m == nil {
			return "", "", false
		}
		origin, dest := m[1], m[2]
		if swap {
			origin, dest = dest, origin
		}
		origin, dest = cleanEndpoint(origin), cleanEndpoint(dest)
		return origin, dest, origin != "" && dest != ""
	}
	steps := []struct {
		re   *regexp.Regexp
		swap bool
	}{
		{routeGoTo, false},
		{routeFromTo, false},
		{routeToFrom, true},
		{routeZHFrom, false},
		{routeBare, false},
		{routeZHBare, false},
	}
	for _, s := range steps {
		if o, d, ok := try(s.re, s.swap); ok {
			return o, d, nil
		}
	}
	return "", "", ErrNeedEndpoints
}

func cleanEndpoint(s string) string {
	s = strings.TrimSpace(s)
	s = leadFiller.ReplaceAllString(s, "")
	s = trailBy.ReplaceAllString(s, "")
	words := strings.Fields(s)
	for len(words) > 0 && trailingTimeWords[strings.ToLower(strings.Trim(words[len(words)-1], "?.!,"))] {
		words = words[:len(words)-1]
	}
	return strings.Trim(strings.Join(words, " "), " ,?.!？，")
}

// IsTimeQuery matches the fixed time-asking phrases.
func (f *Features) IsTimeQuery(query string) bool {
	for _, re := range timePhrases {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

// TimeLocation returns the place a time query asks about, or "" for the
// clock's default zone.
func (f *Features) TimeLocation(query, analyzed string) string {
	if loc := strings.TrimSpace(analyzed); loc != "" {
		return loc
	}
	if m := timeLocation.FindStringSubmatch(query); m != nil {
		return cleanEndpoint(m[1])
	}
	return ""
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
