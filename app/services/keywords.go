package services

import (
	"strings"
	"unicode"
)

// deriveKeywords extracts candidate keywords from free ad text. Used by
// translators when the mapped targeting is the broad default and carries no
// keywords of its own.
func deriveKeywords(text string, max int) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(words))
	var keywords []string
	for _, w := range words {
		if len(w) < 4 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
		if max > 0 && len(keywords) >= max {
			break
		}
	}
	return keywords
}
