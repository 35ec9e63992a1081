package helpers

import "testing"

func TestCanonicalURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"defaults https and cleans path", "Example.com/news/../tech/latest", "https://example.com/tech/latest"},
		{"removes default port and tracking params", "http://news.example.com:80/article?id=123&utm_source=rss#section", "http://news.example.com/article?id=123"},
		{"sorts query parameters and preserves trailing slash", "https://example.com/path/?b=2&a=1&fbclid=xyz", "https://example.com/path/?a=1&b=2"},
		{"handles schemeless url with double slash", "//blog.example.com/post/42?utm_medium=email", "https://blog.example.com/post/42"},
		{"normalises repeated slashes", "https://example.com//a//b///c", "https://example.com/a/b/c"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalURL(tt.in)
			if err != nil {
				t.Fatalf("CanonicalURL() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("CanonicalURL() got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonicalURLErrors(t *testing.T) {
	t.Parallel()
	if _, err := CanonicalURL(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestDomainMatching(t *testing.T) {
	t.Parallel()
	if got := DomainOf("https://www.hko.gov.hk/en/index.html"); got != "hko.gov.hk" {
		t.Fatalf("DomainOf = %q", got)
	}
	if !HostMatchesDomain("www.hko.gov.hk", "gov.hk") {
		t.Fatalf("subdomain should match")
	}
	if HostMatchesDomain("notgov.hk", "gov.hk") {
		t.Fatalf("suffix without dot must not match")
	}
	if !HostMatchesDomain("old.reddit.com", "reddit.com") {
		t.Fatalf("reddit subdomain should match")
	}
}
