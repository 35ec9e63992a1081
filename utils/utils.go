package utils

import (
	"fmt"
	"strings"
)

func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// SiteQuery appends a site: disjunction for search backends without a native
// multi-site filter.
func SiteQuery(q string, sites []string) string {
	parts := make([]string, 0, len(sites))
	for _, s := range sites {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, "site:"+s)
		}
	}
	if len(parts) == 0 {
		return q
	}
	return q + " (" + strings.Join(parts, " OR ") + ")"
}
