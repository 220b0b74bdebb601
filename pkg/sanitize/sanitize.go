// Package sanitize strips markup from free-text form input before it is sent
// to the backend.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// Text removes every HTML element from raw and trims the result. Entities the
// policy escapes are decoded again so plain text such as "A & B" survives.
func Text(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	cleaned := textSanitizer().Sanitize(trimmed)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// Values returns a copy of values with Text applied to every field except
// the ones listed in keep, which are copied verbatim.
func Values(values map[string]string, keep ...string) map[string]string {
	skip := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		skip[k] = struct{}{}
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if _, ok := skip[k]; ok {
			out[k] = v
			continue
		}
		out[k] = Text(v)
	}
	return out
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
