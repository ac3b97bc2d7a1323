package validators

import "strings"

// SanitizeString trims whitespace and caps length. Checkout payloads come
// from an anonymous public form, so every free-text field passes through
// here before touching a query or an email template.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}
