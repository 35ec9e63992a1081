package web_search

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/internal/helpers"
	"github.com/mohammad-safakhou/ragrouter/tools/web_search/brave"
	"github.com/mohammad-safakhou/ragrouter/tools/web_search/google"
	"github.com/mohammad-safakhou/ragrouter/tools/web_search/models"
	"github.com/mohammad-safakhou/ragrouter/tools/web_search/serper"
	"github.com/mohammad-safakhou/ragrouter/utils"
)

// WebSearcher is implemented by each search backend. sites restricts results
// to the given domains when non-empty.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int, sites []string) ([]models.Result, error)
}

type Provider string

const (
	GoogleProvider Provider = "google"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrNotConfigured       = errors.New("no web search provider configured")
)

func NewWebSearcher(cfg config.WebSearchConfig) (WebSearcher, error) {
	httpc := utils.NewHTTPClient(cfg.Timeout, 1, 0)
	switch Provider(cfg.Provider) {
	case GoogleProvider, "":
		if cfg.GoogleAPIKey == "" || cfg.GoogleCX == "" {
			return nil, fmt.Errorf("%w: set tools.web_search.google_api_key and google_cx", ErrNotConfigured)
		}
		return google.Search{ApiKey: cfg.GoogleAPIKey, CX: cfg.GoogleCX, HTTP: httpc}, nil
	case SerperProvider:
		if cfg.SerperAPIKey == "" {
			return nil, fmt.Errorf("%w: set tools.web_search.serper_api_key", ErrNotConfigured)
		}
		return serper.Search{ApiKey: cfg.SerperAPIKey, HTTP: httpc}, nil
	case BraveProvider:
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("%w: set tools.web_search.brave_api_key", ErrNotConfigured)
		}
		return brave.Search{ApiKey: cfg.BraveAPIKey, HTTP: httpc}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// Service applies domain filters on top of a WebSearcher.
type Service struct {
	searcher WebSearcher
	provider string
}

func NewService(searcher WebSearcher, provider string) *Service {
	return &Service{searcher: searcher, provider: provider}
}

// Search runs q restricted to the preferred domains first, falling back to an
// unrestricted search when that yields nothing. Blocked domains are dropped
// from whichever result set is returned.
func (s *Service) Search(ctx context.Context, q string, k int, filters models.Filters) (models.Response, error) {
	resp := models.Response{Query: q, Provider: s.provider, Filters: filters}
	if k <= 0 {
		k = 5
	}
	var (
		results []models.Result
		err     error
	)
	if len(filters.PreferredDomains) > 0 {
		results, err = s.searcher.Discover(ctx, q, k, filters.PreferredDomains)
		results = Block(results, filters.BlockedDomains)
	}
	if len(results) == 0 {
		results, err = s.searcher.Discover(ctx, q, k, nil)
		if err != nil {
			return resp, err
		}
		results = Block(results, filters.BlockedDomains)
	}
	if err != nil && len(results) == 0 {
		return resp, err
	}
	if len(results) > k {
		results = results[:k]
	}
	resp.Results = results
	return resp, nil
}

// Block removes results hosted on any blocked domain and repeats of the
// same canonical URL, and fills Domain.
func Block(results []models.Result, blocked []string) []models.Result {
	out := make([]models.Result, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		host := helpers.DomainOf(r.URL)
		if isBlocked(host, blocked) {
			continue
		}
		if canonical, err := helpers.CanonicalURL(r.URL); err == nil {
			if seen[canonical] {
				continue
			}
			seen[canonical] = true
		}
		if r.Domain == "" {
			r.Domain = host
		}
		r.Snippet = helpers.SanitizeHTMLStrict(r.Snippet)
		out = append(out, r)
	}
	return out
}

func isBlocked(host string, blocked []string) bool {
	for _, d := range blocked {
		if helpers.HostMatchesDomain(host, d) {
			return true
		}
	}
	return false
}
