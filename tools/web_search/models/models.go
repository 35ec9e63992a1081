package models

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain,omitempty"`
}

// Filters narrow a search. Preferred domains are tried first as a site
// restriction; blocked domains are always removed from the results.
type Filters struct {
	PreferredDomains []string `json:"preferred_domains,omitempty"`
	BlockedDomains   []string `json:"blocked_domains,omitempty"`
}

// Response is the payload stored as the web_search tool result.
type Response struct {
	Query    string   `json:"query"`
	Provider string   `json:"provider"`
	Results  []Result `json:"results"`
	Filters  Filters  `json:"filters"`
}
