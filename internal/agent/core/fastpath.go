package core

import (
	"regexp"
	"strings"
	"unicode"
)

// simplePatterns match queries a model can answer from its own knowledge.
var simplePatterns = []*regexp.Regexp{
	// arithmetic
	regexp.MustCompile(`(?i)^\s*(what\s+is\s+|what's\s+|calculate\s+|compute\s+)?[\d\s.,]*\d\s*[-+*/x×÷^%]\s*[\d\s.,+\-*/x×÷^%()]*\??\s*$`),
	regexp.MustCompile(`(?i)\b(square root|sqrt|factorial|percent of|% of)\b`),
	// unit conversion
	regexp.MustCompile(`(?i)\b(convert|how many)\b.*\b(km|kilomet(er|re)s?|miles?|kg|kilograms?|pounds?|lbs?|celsius|fahrenheit|met(er|re)s?|feet|foot|inch(es)?|cm|lit(er|re)s?|gallons?|ounces?|grams?)\b`),
	// translation
	regexp.MustCompile(`(?i)^\s*(translate|how (do|would) you say)\b`),
	regexp.MustCompile(`(?i)\bin (english|chinese|cantonese|mandarin|japanese|korean|french|german|spanish)\s*\??\s*$`),
	regexp.MustCompile(`翻譯|翻译|英文點講|英文怎么说|英文怎麼說`),
	// short definitions
	regexp.MustCompile(`(?i)^\s*(define|definition of|meaning of)\b`),
	regexp.MustCompile(`(?i)^\s*(what|who)\s+(is|are|was|were)\s+(a|an|the)?\s*[\p{L}\p{N}'\- ]{1,60}\??\s*$`),
	regexp.MustCompile(`^\s*(什麼是|什么是).{1,20}$|^.{1,20}(是什麼|是什么)[？?]?\s*$`),
}

// liveMarkers flag queries that need a tool, retrieval or fresh data even
// when they look simple.
var liveMarkers = []*regexp.Regexp{
	// real-time and news
	regexp.MustCompile(`(?i)\b(current|currently|now|today|tonight|tomorrow|yesterday|latest|recent|live|real-?time|this (week|month|year)|news|headlines?|breaking)\b`),
	regexp.MustCompile(`現在|现在|今天|今日|明天|最新|新聞|新闻|即時|实时`),
	// local
	regexp.MustCompile(`(?i)\b(hong kong|hk|near me|nearby|local)\b`),
	regexp.MustCompile(`香港|九龍|九龙|新界`),
	// finance
	regexp.MustCompile(`(?i)\b(stocks?|shares?|price|ticker|market|exchange rate|forex|nasdaq|dow|s&p|usd|hkd|jpy|eur|gbp|cny|rmb)\b`),
	regexp.MustCompile(`股價|股价|股票|匯率|汇率|美元|港元|港幣`),
	// weather
	regexp.MustCompile(`(?i)\b(weather|forecast|temperature|rain|raining|typhoon|humid(ity)?|sunny)\b`),
	regexp.MustCompile(`天氣|天气|下雨|颱風|台风|氣溫|气温`),
	// transport
	regexp.MustCompile(`(?i)\b(bus|mtr|train|ferry|route|directions?|commute|(go|get) to|how (do i|to) get)\b`),
	regexp.MustCompile(`點去|怎么去|怎麼去|交通|巴士|地鐵|地铁`),
	// time
	regexp.MustCompile(`(?i)\b(what time|time is it|time zone|timezone|what day|date today)\b`),
	regexp.MustCompile(`幾點|几点|時間|时间|幾號|几号`),
}

var tickerWord = regexp.MustCompile(`\b(NVDA|AMD|AAPL|MSFT|GOOGL|AMZN|TSLA|META)\b`)

// FastPathDetector decides whether a query may skip retrieval entirely.
type FastPathDetector struct {
	simple []*regexp.Regexp
	live   []*regexp.Regexp
}

func NewFastPathDetector() *FastPathDetector {
	return &FastPathDetector{simple: simplePatterns, live: liveMarkers}
}

// IsSimple reports whether query is arithmetic, a unit conversion, a
// translation request or a short definition with no live-data marker.
func (d *FastPathDetector) IsSimple(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" || tickerWord.MatchString(strings.ToUpper(q)) {
		return false
	}
	for _, re := range d.live {
		if re.MatchString(q) {
			return false
		}
	}
	for _, re := range d.simple {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}

// DetectLanguage classifies query by its share of CJK characters among
// letters.
func (d *FastPathDetector) DetectLanguage(query string) Language {
	var cjk, latin int
	for _, r := range query {
		switch {
		case unicode.Is(unicode.Han, r):
			cjk++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	switch {
	case cjk == 0:
		return LanguageEN
	case latin == 0 || float64(cjk)/float64(cjk+latin) >= 0.5:
		return LanguageZH
	default:
		return LanguageMixed
	}
}
