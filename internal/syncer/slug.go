// internal/syncer/slug.go
package syncer

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of non-alphanumeric characters into a
// single hyphen and trims hyphens from both ends.
func Slugify(name string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// normalizeURL is the form used to compare repository URLs.
func normalizeURL(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
