package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHTMLStrict(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"drops scripts", `<p>Hello <strong>world</strong><script>alert('x')</script></p>`, "Hello world"},
		{"directions markup", `Walk to <b>Sha Tin Station</b><div style="font-size:0.9em">Destination will be on the left</div>`, "Walk to Sha Tin Station Destination will be on the left"},
		{"search snippet entities", "Dim sum &amp; tea in <b>Mong Kok</b>&nbsp;...", "Dim sum & tea in Mong Kok ..."},
		{"list items stay apart", "<ul><li>MTR</li><li>Bus</li></ul>", "MTR Bus"},
		{"line breaks", "Line one<br>Line two", "Line one Line two"},
		{"blank", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeHTMLStrict(tc.in))
		})
	}
}

func TestStrictHTMLPolicyIsShared(t *testing.T) {
	assert.Same(t, StrictHTMLPolicy(), StrictHTMLPolicy())
}
