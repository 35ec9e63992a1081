package finance

import (
	"fmt"
	"sort"
	"strings"
)

// Text renders a quote as a short block for synthesis.
func (q Quote) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stock quote for %s\n", q.Symbol)
	fmt.Fprintf(&b, "Price: %.2f USD\n", q.Price)
	if q.Change != 0 || q.ChangePercent != "" {
		fmt.Fprintf(&b, "Change: %+.2f (%s)\n", q.Change, q.ChangePercent)
	}
	if q.Open != 0 {
		fmt.Fprintf(&b, "Open: %.2f  High: %.2f  Low: %.2f\n", q.Open, q.High, q.Low)
	}
	if q.PreviousClose != 0 {
		fmt.Fprintf(&b, "Previous close: %.2f\n", q.PreviousClose)
	}
	if q.Volume != 0 {
		fmt.Fprintf(&b, "Volume: %d\n", q.Volume)
	}
	if q.AsOf != "" {
		fmt.Fprintf(&b, "As of: %s\n", q.AsOf)
	}
	if q.URL != "" {
		fmt.Fprintf(&b, "Source page: %s\n", q.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Text renders the comparison one line per symbol.
func (c Comparison) Text() string {
	var b strings.Builder
	b.WriteString("Stock comparison\n")
	for _, q := range c.Quotes {
		line := fmt.Sprintf("%s: %.2f USD", q.Symbol, q.Price)
		if q.ChangePercent != "" {
			line += " (" + q.ChangePercent + ")"
		}
		if q.AsOf != "" {
			line += " as of " + q.AsOf
		}
		b.WriteString(line + "\n")
	}
	missing := make([]string, 0, len(c.Errors))
	for s := range c.Errors {
		missing = append(missing, s)
	}
	sort.Strings(missing)
	for _, s := range missing {
		fmt.Fprintf(&b, "%s: unavailable\n", s)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Text renders the exchange rate.
func (f FXRate) Text() string {
	s := fmt.Sprintf("Exchange rate %s/%s: 1 %s = %.4f %s", f.From, f.To, f.From, f.Rate, f.To)
	if f.Bid != 0 && f.Ask != 0 {
		s += fmt.Sprintf("\nBid: %.4f  Ask: %.4f", f.Bid, f.Ask)
	}
	if f.AsOf != "" {
		s += "\nAs of: " + f.AsOf
	}
	return s
}

// Text renders whichever payload variant is set.
func (p Payload) Text() string {
	switch {
	case p.Quote != nil:
		return p.Quote.Text()
	case p.Comparison != nil:
		return p.Comparison.Text()
	case p.FX != nil:
		return p.FX.Text()
	}
	return ""
}
