// Package answer turns raw generator output into a structured Answer:
// it extracts citations, validates them against the presented sources, and
// scores confidence from retrieval quality.
package answer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/brownbiotech/longevita/engine/domain"
)

var citationPattern = regexp.MustCompile(`\[Source (\d+)\]`)

// ExtractCitations finds [Source N] markers in text and keeps those whose
// index falls within 1..sourceCount. Out-of-range markers are stripped from
// the text; the second return value counts how many were dropped.
func ExtractCitations(text string, sourceCount int) (string, []domain.Citation, int) {
	var citations []domain.Citation
	dropped := 0
	seen := make(map[int]bool)

	cleaned := citationPattern.ReplaceAllStringFunc(text, func(marker string) string {
		idx, err := strconv.Atoi(citationPattern.FindStringSubmatch(marker)[1])
		if err != nil || idx < 1 || idx > sourceCount {
			dropped++
			return ""
		}
		if !seen[idx] {
			seen[idx] = true
			citations = append(citations, domain.Citation{Marker: marker, SourceIndex: idx})
		}
		return marker
	})

	if dropped > 0 {
		cleaned = collapseSpaces(cleaned)
	}
	return cleaned, citations, dropped
}

// collapseSpaces tidies the gaps left by stripped markers.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
