package prompt

import (
	"strings"
	"unicode"
)

// splitSentences splits text into sentences on terminal punctuation and
// newlines. Korean sentences end with the same terminators, so no per-language
// handling is needed here.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if r == '\n' || i == len(text)-1 || (i+1 < len(text) && unicode.IsSpace(rune(text[i+1]))) {
				s := strings.TrimSpace(current.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// truncateExcerpt caps text at maxRunes, cutting at a sentence boundary where
// feasible so a citation-bearing sentence is never split mid-claim. Falls back
// to a hard rune cut when the first sentence alone exceeds the cap.
func truncateExcerpt(text string, maxRunes int) string {
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}

	var b strings.Builder
	used := 0
	for _, s := range splitSentences(text) {
		add := len([]rune(s))
		if used > 0 {
			add++ // joining space
		}
		if used+add > maxRunes {
			break
		}
		if used > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
		used += add
	}
	if used == 0 {
		return strings.TrimSpace(string(runes[:maxRunes]))
	}
	return b.String()
}
