package finance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

var (
	ErrDisabled      = errors.New("finance tool is disabled")
	ErrNoAPIKey      = errors.New("finance api key not configured")
	ErrNoPrice       = errors.New("no price found")
	ErrRateLimited   = errors.New("finance api rate limited")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Quote is a last-price snapshot for one instrument.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Open          float64 `json:"open,omitempty"`
	High          float64 `json:"high,omitempty"`
	Low           float64 `json:"low,omitempty"`
	PreviousClose float64 `json:"previous_close,omitempty"`
	Change        float64 `json:"change,omitempty"`
	ChangePercent string  `json:"change_percent,omitempty"`
	Volume        int64   `json:"volume,omitempty"`
	AsOf          string  `json:"as_of,omitempty"`
	Interval      string  `json:"interval,omitempty"`
	Source        string  `json:"source"`
	URL           string  `json:"url,omitempty"`
}

// Comparison holds quotes for several symbols; per-symbol failures are kept
// alongside the successes.
type Comparison struct {
	Quotes []Quote           `json:"quotes"`
	Errors map[string]string `json:"errors,omitempty"`
}

// FXRate is a currency pair conversion rate.
type FXRate struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
	Bid  float64 `json:"bid,omitempty"`
	Ask  float64 `json:"ask,omitempty"`
	AsOf string  `json:"as_of,omitempty"`
}

// Payload is what the finance tool stores as its result; exactly one of the
// fields is set.
type Payload struct {
	Quote      *Quote      `json:"quote,omitempty"`
	Comparison *Comparison `json:"comparison,omitempty"`
	FX         *FXRate     `json:"fx,omitempty"`
}

// Client talks to an Alpha Vantage compatible API.
type Client struct {
	apiKey  string
	baseURL string
	enabled bool
	http    *utils.HTTPClient
}

func NewClient(cfg config.FinanceConfig, timeout time.Duration) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		enabled: cfg.Enabled,
		http:    utils.NewHTTPClient(timeout, 1, 0),
	}
}

func (c *Client) ready() error {
	if !c.enabled {
		return ErrDisabled
	}
	if c.apiKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

func (c *Client) get(ctx context.Context, params url.Values, out *map[string]any) error {
	params.Set("apikey", c.apiKey)
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil, nil, out); err != nil {
		return err
	}
	for _, k := range []string{"Note", "Information"} {
		if msg, ok := (*out)[k].(string); ok && msg != "" {
			return fmt.Errorf("%w: %s", ErrRateLimited, msg)
		}
	}
	if msg, ok := (*out)["Error Message"].(string); ok && msg != "" {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, msg)
	}
	return nil
}

// Quote returns the latest price. intraday uses the 5-minute series for a
// fresher reading than the end-of-day quote.
func (c *Client) Quote(ctx context.Context, symbol string, intraday bool) (Quote, error) {
	if err := c.ready(); err != nil {
		return Quote{}, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if intraday {
		q, err := c.intraday(ctx, symbol)
		if err == nil {
			return q, nil
		}
		if errors.Is(err, ErrRateLimited) {
			return Quote{}, err
		}
	}
	return c.globalQuote(ctx, symbol)
}

func (c *Client) globalQuote(ctx context.Context, symbol string) (Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	var raw map[string]any
	if err := c.get(ctx, params, &raw); err != nil {
		return Quote{}, err
	}
	gq, _ := raw["Global Quote"].(map[string]any)
	if len(gq) == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	q := Quote{
		Symbol:        symbol,
		Price:         num(gq["05. price"]),
		Open:          num(gq["02. open"]),
		High:          num(gq["03. high"]),
		Low:           num(gq["04. low"]),
		PreviousClose: num(gq["08. previous close"]),
		Change:        num(gq["09. change"]),
		ChangePercent: utils.Str(gq["10. change percent"]),
		Volume:        int64(num(gq["06. volume"])),
		AsOf:          utils.Str(gq["07. latest trading day"]),
		Source:        "alpha_vantage",
	}
	if q.Price == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return q, nil
}

func (c *Client) intraday(ctx context.Context, symbol string) (Quote, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_INTRADAY")
	params.Set("symbol", symbol)
	params.Set("interval", "5min")
	var raw map[string]any
	if err := c.get(ctx, params, &raw); err != nil {
		return Quote{}, err
	}
	series, _ := raw["Time Series (5min)"].(map[string]any)
	if len(series) == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	stamps := make([]string, 0, len(series))
	for ts := range series {
		stamps = append(stamps, ts)
	}
	sort.Strings(stamps)
	latest := stamps[len(stamps)-1]
	bar, _ := series[latest].(map[string]any)
	q := Quote{
		Symbol:   symbol,
		Price:    num(bar["4. close"]),
		Open:     num(bar["1. open"]),
		High:     num(bar["2. high"]),
		Low:      num(bar["3. low"]),
		Volume:   int64(num(bar["5. volume"])),
		AsOf:     latest,
		Interval: "5min",
		Source:   "alpha_vantage_intraday",
	}
	if q.Price == 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return q, nil
}

// Compare quotes every symbol; it fails only when none succeed.
func (c *Client) Compare(ctx context.Context, symbols []string) (Comparison, error) {
	if err := c.ready(); err != nil {
		return Comparison{}, err
	}
	cmp := Comparison{Errors: map[string]string{}}
	for _, s := range symbols {
		q, err := c.globalQuote(ctx, strings.ToUpper(s))
		if err != nil {
			cmp.Errors[s] = err.Error()
			continue
		}
		cmp.Quotes = append(cmp.Quotes, q)
	}
	if len(cmp.Quotes) == 0 {
		return Comparison{}, fmt.Errorf("%w for %s", ErrNoPrice, strings.Join(symbols, ", "))
	}
	if len(cmp.Errors) == 0 {
		cmp.Errors = nil
	}
	return cmp, nil
}

// ExchangeRate returns the from→to conversion rate.
func (c *Client) ExchangeRate(ctx context.Context, from, to string) (FXRate, error) {
	if err := c.ready(); err != nil {
		return FXRate{}, err
	}
	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", strings.ToUpper(from))
	params.Set("to_currency", strings.ToUpper(to))
	var raw map[string]any
	if err := c.get(ctx, params, &raw); err != nil {
		return FXRate{}, err
	}
	r, _ := raw["Realtime Currency Exchange Rate"].(map[string]any)
	fx := FXRate{
		From: strings.ToUpper(from),
		To:   strings.ToUpper(to),
		Rate: num(r["5. Exchange Rate"]),
		Bid:  num(r["8. Bid Price"]),
		Ask:  num(r["9. Ask Price"]),
		AsOf: utils.Str(r["6. Last Refreshed"]),
	}
	if fx.Rate == 0 {
		return FXRate{}, fmt.Errorf("%w: %s/%s", ErrNoPrice, fx.From, fx.To)
	}
	return fx, nil
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), "%"), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
