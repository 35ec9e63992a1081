package serper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/ragrouter/tools/web_search/models"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

const defaultEndpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey   string
	Endpoint string
	HTTP     *utils.HTTPClient
}

func (s Search) Discover(ctx context.Context, q string, k int, sites []string) ([]models.Result, error) {
	// https://serper.dev/ docs
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	payload := map[string]any{"q": utils.SiteQuery(q, sites), "num": k}
	var raw map[string]any
	if err := s.HTTP.DoJSON(ctx, http.MethodPost, endpoint, map[string]string{"X-API-KEY": s.ApiKey}, payload, &raw); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}

	var out []models.Result
	if items, ok := raw["organic"].([]any); ok {
		for i, it := range items {
			if i >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, models.Result{
				Title: utils.Str(m["title"]), URL: utils.Str(m["link"]), Snippet: utils.Str(m["snippet"]),
			})
		}
	}
	return out, nil
}
