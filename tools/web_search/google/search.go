package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mohammad-safakhou/ragrouter/tools/web_search/models"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

const defaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// Search queries the Google Custom Search JSON API.
type Search struct {
	ApiKey   string
	CX       string
	Endpoint string
	HTTP     *utils.HTTPClient
}

func (s Search) Discover(ctx context.Context, q string, k int, sites []string) ([]models.Result, error) {
	// https://developers.google.com/custom-search/v1/reference/rest/v1/cse/list
	if k > 10 {
		k = 10
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	params := url.Values{}
	params.Set("key", s.ApiKey)
	params.Set("cx", s.CX)
	params.Set("q", utils.SiteQuery(q, sites))
	params.Set("num", fmt.Sprint(k))

	var raw struct {
		Items []struct {
			Title       string `json:"title"`
			Link        string `json:"link"`
			Snippet     string `json:"snippet"`
			DisplayLink string `json:"displayLink"`
		} `json:"items"`
	}
	if err := s.HTTP.DoJSON(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}
	out := make([]models.Result, 0, len(raw.Items))
	for i, it := range raw.Items {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet, Domain: it.DisplayLink})
	}
	return out, nil
}
