package chromedp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/models"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/readable"
)

// Fetch renders pages in headless Chrome, for quote pages that build their
// price markup client-side.
type Fetch struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
	// WaitFor is a CSS selector that must be visible before the DOM is
	// captured; empty waits for body only.
	WaitFor string
}

func (f Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, err := f.fetchHTML(ctx, url)
	if err != nil {
		return models.Result{URL: url, RenderMS: int(time.Since(t0) / time.Millisecond)}, err
	}
	res := readable.Extract(url, html, f.MaxChars)
	res.RenderMS = int(time.Since(t0) / time.Millisecond)
	return res, nil
}

func (f Fetch) fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if f.WaitFor != "" {
		actions = append(actions, chromedp.WaitVisible(f.WaitFor, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(bctx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}
