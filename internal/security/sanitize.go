package security

import (
	"regexp"
	"strings"
)

var (
	scriptTagPattern = regexp.MustCompile(`(?is)<\s*script\b[^>]*>.*?<\s*/\s*script\s*>`)
	// an opening tag with no matching close would still execute in a
	// lenient renderer, so it goes too
	danglingScriptPattern = regexp.MustCompile(`(?is)<\s*script\b[^>]*>?`)
	javascriptScheme      = regexp.MustCompile(`(?i)javascript\s*:`)
)

// SanitizeString strips script blocks and javascript: schemes, then trims.
// It is a defence-in-depth filter for inbound text; it does not replace
// output encoding where the text is rendered.
func SanitizeString(s string) string {
	clean := scriptTagPattern.ReplaceAllString(s, "")
	clean = danglingScriptPattern.ReplaceAllString(clean, "")
	clean = javascriptScheme.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean)
}

// SanitizeValue walks a decoded JSON value and sanitizes every string in it.
func SanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return SanitizeString(val)
	case map[string]any:
		for k, item := range val {
			val[k] = SanitizeValue(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = SanitizeValue(item)
		}
		return val
	default:
		return v
	}
}
