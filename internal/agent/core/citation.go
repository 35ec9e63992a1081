package core

import "github.com/mohammad-safakhou/ragrouter/internal/helpers"

// BuildCitations renders positional references for the first limit items.
// The same prefix of items is what synthesis receives.
func BuildCitations(items []ContextItem, limit int) []string {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	cs := make([]helpers.Citation, len(items))
	for i, it := range items {
		cs[i] = helpers.Citation{
			Index:  i + 1,
			Source: string(it.Source),
			Title:  it.Title,
			URL:    it.URL,
			DocID:  it.DocID,
		}
	}
	return helpers.FormatCitations(cs)
}
