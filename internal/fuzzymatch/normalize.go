package fuzzymatch

import (
	"regexp"
	"strings"
)

var (
	punctuationRe   = regexp.MustCompile(`[.'"-]`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	trailingParenRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	colorTokenRe    = regexp.MustCompile(`(?i)\b(red|blue|black|white|gold|silver|green|orange|navy|royal|gray|grey|purple|yellow|maroon|teal|pink)\b`)
)

// StripPunctuation implements Phase 2 transform (a): strip punctuation and
// collapse whitespace.
func StripPunctuation(s string) string {
	s = punctuationRe.ReplaceAllString(s, "")
	return collapseWhitespace(s)
}

// RemoveColorTokens implements Phase 2 transform (b).
func RemoveColorTokens(s string) string {
	s = colorTokenRe.ReplaceAllString(s, "")
	return collapseWhitespace(s)
}

// StripTrailingParenthetical implements Phase 2 transform (c).
func StripTrailingParenthetical(s string) string {
	return collapseWhitespace(trailingParenRe.ReplaceAllString(s, ""))
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Transforms returns the three Phase 2 normalization variants applied
// independently to input, in the order the spec lists them. Each is tried
// against the alias table; the first equality hit wins.
func Transforms(input string) []string {
	return []string{
		StripPunctuation(input),
		RemoveColorTokens(input),
		StripTrailingParenthetical(input),
	}
}
