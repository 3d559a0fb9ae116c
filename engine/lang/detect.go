// Package lang provides pluggable language detection for queries and answers.
// Additional languages are added by supplying a new Detector; ranking and
// formatting never inspect text themselves.
package lang

import (
	"unicode"

	"github.com/brownbiotech/longevita/engine/domain"
)

// Detector maps free text to a language tag.
type Detector interface {
	Detect(text string) domain.Language
}

// Heuristic detects language from character classes. Hangul syllables and
// jamo mark Korean; everything else falls back to English. The threshold is
// the fraction of letters that must be Hangul to call the text Korean, so a
// Korean question quoting an English paper title still detects as Korean.
type Heuristic struct {
	// HangulThreshold defaults to 0.15 when zero.
	HangulThreshold float64
}

const defaultHangulThreshold = 0.15

// Detect implements Detector.
func (h Heuristic) Detect(text string) domain.Language {
	threshold := h.HangulThreshold
	if threshold == 0 {
		threshold = defaultHangulThreshold
	}

	var letters, hangul int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Hangul, r) {
			hangul++
		}
	}
	if letters == 0 {
		return domain.LangEnglish
	}
	if float64(hangul)/float64(letters) >= threshold {
		return domain.LangKorean
	}
	return domain.LangEnglish
}

// Resolve returns the requested language, or the detected one when the query
// asks for auto-detection.
func Resolve(d Detector, q domain.Query) domain.Language {
	if q.Language != domain.LangAuto {
		return q.Language
	}
	if d == nil {
		return domain.LangEnglish
	}
	return d.Detect(q.Text)
}
