package answer

import "github.com/brownbiotech/longevita/engine/domain"

// Formatter assembles the final Answer from generator output and the sources
// it was shown.
type Formatter struct {
	opts ConfidenceOpts
}

// NewFormatter creates a Formatter. A zero-valued opts falls back to defaults.
func NewFormatter(opts ConfidenceOpts) *Formatter {
	if opts.RelevanceWeight == 0 && opts.CountWeight == 0 && opts.AuthorityWeight == 0 {
		opts = DefaultConfidenceOpts()
	}
	return &Formatter{opts: opts}
}

// Format validates citations against sources, scores confidence, and packs
// the result. Grounded is true only when at least one valid citation survives.
// dropped counts out-of-range markers the generator invented; callers surface
// it as a data-quality signal.
func (f *Formatter) Format(query string, generated string, sources []domain.RetrievalResult, language domain.Language) (ans domain.Answer, dropped int) {
	text, citations, dropped := ExtractCitations(generated, len(sources))

	return domain.Answer{
		Query:      query,
		Text:       text,
		Citations:  citations,
		Sources:    sources,
		Confidence: ScoreConfidence(sources, f.opts),
		Language:   language,
		Grounded:   len(citations) > 0,
	}, dropped
}

// Ungrounded builds the fallback answer for a query with no usable sources.
func (f *Formatter) Ungrounded(query, text string, language domain.Language) domain.Answer {
	return domain.Answer{
		Query:      query,
		Text:       text,
		Citations:  nil,
		Sources:    nil,
		Confidence: ScoreConfidence(nil, f.opts),
		Language:   language,
		Grounded:   false,
	}
}
