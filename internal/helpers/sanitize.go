package helpers

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy returns a shared bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// SanitizeHTMLStrict reduces s to plain text: tags removed, entities
// decoded and whitespace collapsed. Block-level closers become spaces so
// adjacent fragments do not run together.
func SanitizeHTMLStrict(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = blockBreaks.Replace(s)
	out := html.UnescapeString(StrictHTMLPolicy().Sanitize(s))
	return strings.Join(strings.Fields(out), " ")
}

var blockBreaks = strings.NewReplacer("<div", " <div", "</div>", "</div> ", "<br>", " <br>", "<br/>", " <br/>", "</p>", "</p> ", "</li>", "</li> ")
