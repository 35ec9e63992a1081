package finance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// QuotePageURLs lists the public quote pages tried, in order, when the
// market data API fails for a single symbol.
func QuotePageURLs(symbol string) []string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return []string{
		"https://finance.yahoo.com/quote/" + s,
		"https://www.cnbc.com/quotes/" + s,
		"https://www.marketwatch.com/investing/stock/" + strings.ToLower(s),
	}
}

// priceSelector reads a price from the first element matching sel. attr
// names the attribute holding the price; empty means the element text.
type priceSelector struct {
	sel  cascadia.Selector
	attr string
}

var pageSelectors = []priceSelector{
	// CNBC
	{sel: cascadia.MustCompile(`.QuoteStrip-lastPrice`)},
	// MarketWatch
	{sel: cascadia.MustCompile(`bg-quote[field="Last"]`)},
	// schema.org / meta price
	{sel: cascadia.MustCompile(`meta[itemprop="price"]`), attr: "content"},
	{sel: cascadia.MustCompile(`meta[name="price"]`), attr: "content"},
}

// Quote pages embed their state as JSON inside script bodies that carry
// no markup to select on.
var scriptPricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"regularMarketPrice"\s*:\s*\{\s*"raw"\s*:\s*([\d.]+)`),
	regexp.MustCompile(`"last"\s*:\s*"([\d.,]+)"`),
}

// ExtractPriceFromWeb scrapes a last price for symbol out of a quote page.
func ExtractPriceFromWeb(symbol, page, pageURL string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	found := func(p float64) Quote {
		return Quote{Symbol: symbol, Price: p, Source: "web_extraction", URL: pageURL}
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return Quote{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	// Yahoo streamer elements are keyed by symbol; pages list several.
	if sel, err := cascadia.Compile(fmt.Sprintf(`fin-streamer[data-field="regularMarketPrice"][data-symbol=%q]`, symbol)); err == nil {
		if n := sel.MatchFirst(doc); n != nil {
			if p := num(attrValue(n, "value")); p > 0 {
				return found(p), nil
			}
			if p := num(nodeText(n)); p > 0 {
				return found(p), nil
			}
		}
	}

	for _, ps := range pageSelectors {
		n := ps.sel.MatchFirst(doc)
		if n == nil {
			continue
		}
		raw := nodeText(n)
		if ps.attr != "" {
			raw = attrValue(n, ps.attr)
		}
		if p := num(raw); p > 0 {
			return found(p), nil
		}
	}

	for _, re := range scriptPricePatterns {
		m := re.FindStringSubmatch(page)
		if len(m) < 2 {
			continue
		}
		if p := num(m[1]); p > 0 {
			return found(p), nil
		}
	}
	return Quote{}, fmt.Errorf("%w on %s", ErrNoPrice, pageURL)
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
