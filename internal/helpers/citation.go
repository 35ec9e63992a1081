package helpers

import (
	"fmt"
	"strings"
)

// Citation binds a 1-based evidence position to the fields that decide how
// the reference is rendered.
type Citation struct {
	Index  int
	Source string
	Title  string
	URL    string
	DocID  string
}

const (
	sourceWebSearch = "web_search"
	sourceLocalKB   = "local_knowledge_base"
)

// FormatCitation renders one citation line:
//
//	web search:  [i] Web: Title - URL | [i] Web: URL | [i] Web Search
//	local KB:    [i] Local KB: URL | [i] Local KB: doc id | [i] Local Knowledge Base
//	other:       [i] source: URL | [i] source
func FormatCitation(c Citation) string {
	prefix := fmt.Sprintf("[%d] ", c.Index)
	title := strings.TrimSpace(c.Title)
	link := strings.TrimSpace(c.URL)
	source := strings.TrimSpace(c.Source)
	if source == "" {
		source = "Unknown"
	}

	switch source {
	case sourceWebSearch:
		switch {
		case link != "" && title != "":
			return prefix + "Web: " + title + " - " + link
		case link != "":
			return prefix + "Web: " + link
		default:
			return prefix + "Web Search"
		}
	case sourceLocalKB:
		if link != "" {
			return prefix + "Local KB: " + link
		}
		if id := strings.TrimSpace(c.DocID); id != "" {
			return prefix + "Local KB: " + id
		}
		return prefix + "Local Knowledge Base"
	}
	if link != "" {
		return prefix + source + ": " + link
	}
	return prefix + source
}

// FormatCitations renders citations in order, numbering them from 1 when
// Index is unset.
func FormatCitations(citations []Citation) []string {
	out := make([]string, 0, len(citations))
	for i, c := range citations {
		if c.Index == 0 {
			c.Index = i + 1
		}
		out = append(out, FormatCitation(c))
	}
	return out
}
