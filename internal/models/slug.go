package models

import "strings"

// Slugify converts a title into a record-id-safe slug: lowercase ASCII
// letters, digits and dashes. Spaces and underscores become dashes,
// everything else is stripped.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteByte('-')
		}
	}
	return b.String()
}
