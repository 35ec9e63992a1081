package httpfetch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/models"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/readable"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

// Fetch issues a plain GET with a browser user agent. No retries: quote
// page fallbacks move on to the next page instead.
type Fetch struct {
	HTTP      *utils.HTTPClient
	MaxChars  int
	UserAgent string
}

func (f Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	t0 := time.Now()
	headers := map[string]string{
		"User-Agent": f.UserAgent,
		"Accept":     "text/html,application/xhtml+xml",
	}
	body, err := f.HTTP.Do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		var se *utils.StatusError
		status := 0
		if errors.As(err, &se) {
			status = se.Code
		}
		return models.Result{URL: url, Status: status, RenderMS: int(time.Since(t0) / time.Millisecond)}, err
	}
	res := readable.Extract(url, string(body), f.MaxChars)
	res.RenderMS = int(time.Since(t0) / time.Millisecond)
	return res, nil
}
