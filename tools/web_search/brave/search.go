package brave

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mohammad-safakhou/ragrouter/tools/web_search/models"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

type Search struct {
	ApiKey   string
	Endpoint string
	HTTP     *utils.HTTPClient
}

func (s Search) Discover(ctx context.Context, q string, k int, sites []string) ([]models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	params := url.Values{}
	params.Set("q", utils.SiteQuery(q, sites))
	params.Set("count", fmt.Sprint(k))
	headers := map[string]string{"Accept": "application/json", "X-Subscription-Token": s.ApiKey}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := s.HTTP.DoJSON(ctx, http.MethodGet, endpoint+"?"+params.Encode(), headers, nil, &raw); err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	var out []models.Result
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
