package extract

import "regexp"

var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>"'\])]+`)

// FindURLs returns every http(s) URL in text, in order of appearance.
func FindURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}
