package utils

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy     *bluemonday.Policy
	ugcPolicyOnce sync.Once
	strictPolicy  = bluemonday.StrictPolicy()
)

func policy() *bluemonday.Policy {
	ugcPolicyOnce.Do(func() {
		ugcPolicy = bluemonday.UGCPolicy()
		ugcPolicy.RequireNoFollowOnLinks(true)
		ugcPolicy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return ugcPolicy
}

// SanitizeHTML strips unsafe markup from user-supplied message content
// and trims surrounding whitespace.
func SanitizeHTML(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(policy().Sanitize(s))
}

// IsBlankHTML reports whether sanitized content has no visible text,
// e.g. "<p> </p>" or "&nbsp;".
func IsBlankHTML(s string) bool {
	text := html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.TrimSpace(text) == ""
}
