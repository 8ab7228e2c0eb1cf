package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
)

const maxStripPasses = 4

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// StripTags removes all markup and returns plain text with entities decoded.
// Entity-encoded markup is decoded and stripped again until nothing changes.
func StripTags(input string) string {
	s := input
	for i := 0; i < maxStripPasses; i++ {
		next := html.UnescapeString(stripper.Sanitize(s))
		if next == s {
			return s
		}
		s = next
	}
	// still nested deeper than maxStripPasses
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}
