package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "Happy to mentor!", "Happy to mentor!"},
		{"trims whitespace", "   hello \n", "hello"},
		{"keeps safe markup", "<p><strong>Bold</strong> and <em>italic</em></p>", "<p><strong>Bold</strong> and <em>italic</em></p>"},
		{"removes script", "<p>Hello</p><script>alert('xss')</script>", "<p>Hello</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeHTML(tt.input))
		})
	}
}

func TestSanitizeHTML_Links(t *testing.T) {
	out := SanitizeHTML(`<a href="javascript:alert('xss')">Click</a>`)
	assert.NotContains(t, out, "javascript:")

	out = SanitizeHTML(`<a href="https://example.com">Link</a>`)
	assert.True(t, strings.Contains(out, "https://example.com"))
	assert.Contains(t, out, `rel="nofollow`)
}

func TestIsBlankHTML(t *testing.T) {
	assert.True(t, IsBlankHTML(""))
	assert.True(t, IsBlankHTML("   \t\n"))
	assert.True(t, IsBlankHTML("<p> </p>"))
	assert.True(t, IsBlankHTML("<p>&nbsp;</p>"))
	assert.False(t, IsBlankHTML("<p>hi</p>"))
	assert.False(t, IsBlankHTML("ok"))
}
