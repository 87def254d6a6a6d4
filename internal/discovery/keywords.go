package discovery

import "strings"

// directoryKeywords are URL segments and anchor words that signal a
// people-listing page.
var directoryKeywords = []string{
	"faculty",
	"people",
	"directory",
	"staff",
	"team",
	"members",
	"personnel",
	"our-people",
	"employees",
	"researchers",
}

// directoryScore counts keyword hits in a URL path or anchor text,
// normalized to 0..1. Two or more distinct keywords saturate the score.
func directoryScore(s string) float64 {
	lower := strings.ToLower(s)
	hits := 0
	for _, kw := range directoryKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	score := float64(hits) / 2.0
	if score > 1 {
		score = 1
	}
	return score
}

// looksLikeDirectory reports whether the string contains any directory
// keyword.
func looksLikeDirectory(s string) bool {
	return directoryScore(s) > 0
}
