package service

import (
	"strings"
	"unicode"
)

// Slugify normalizes a title into a URL-safe slug: lowercased ASCII
// letters, digits and hyphens, with runs of anything else collapsed to a
// single hyphen. Returns "post" when nothing survives.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-', r == '_', unicode.IsSpace(r):
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "post"
	}
	return slug
}
