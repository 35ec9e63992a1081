package web_fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/models"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

func NewWebFetcher(cfg config.WebFetchConfig, maxChars int) (WebFetcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch FetcherType(cfg.Driver) {
	case HTTPFetcherType, "":
		return httpfetch.Fetch{HTTP: utils.NewHTTPClient(timeout, 0, 0), MaxChars: maxChars, UserAgent: cfg.UserAgent}, nil
	case ChromedpFetcherType:
		return chromedp.Fetch{Timeout: timeout, MaxChars: maxChars, UserAgent: cfg.UserAgent, WaitFor: cfg.WaitFor}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", cfg.Driver)
	}
}
