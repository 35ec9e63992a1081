package readable

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/models"
)

// Extract fills a Result from raw HTML. Readability failures keep the raw
// HTML and hash so callers that scrape markup still have something to use.
func Extract(rawURL, html string, maxChars int) models.Result {
	sum := sha1.Sum([]byte(html))
	res := models.Result{
		URL:      rawURL,
		HTML:     html,
		HTMLHash: hex.EncodeToString(sum[:]),
		Status:   200,
	}
	article, err := readability.FromReader(strings.NewReader(html), parseURL(rawURL))
	if err != nil {
		return res
	}
	text := strings.TrimSpace(article.TextContent)
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	res.Title = strings.TrimSpace(article.Title)
	res.Byline = strings.TrimSpace(article.Byline)
	res.SiteName = strings.TrimSpace(article.SiteName)
	res.Text = text
	return res
}

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
