package answer

import "github.com/brownbiotech/longevita/engine/domain"

// ConfidenceOpts tunes the confidence score.
type ConfidenceOpts struct {
	// RelevanceWeight, CountWeight and AuthorityWeight must sum to 1.
	RelevanceWeight float64
	CountWeight     float64
	AuthorityWeight float64
	// TargetSourceCount is the source count at which the count and authority
	// factors saturate. One strong authoritative source is enough for a
	// high-confidence answer, so the default is 1.
	TargetSourceCount int
	// HighThreshold and MediumThreshold bucket the score into levels.
	HighThreshold   float64
	MediumThreshold float64
}

// DefaultConfidenceOpts returns the standard weighting.
func DefaultConfidenceOpts() ConfidenceOpts {
	return ConfidenceOpts{
		RelevanceWeight:   0.4,
		CountWeight:       0.3,
		AuthorityWeight:   0.3,
		TargetSourceCount: 1,
		HighThreshold:     0.8,
		MediumThreshold:   0.6,
	}
}

// ScoreConfidence estimates answer trustworthiness from the sources that
// backed it. No sources always yields low confidence with a zero score.
func ScoreConfidence(sources []domain.RetrievalResult, opts ConfidenceOpts) domain.Confidence {
	if opts.TargetSourceCount <= 0 {
		opts.TargetSourceCount = 1
	}

	factors := domain.ConfidenceFactors{SourceCount: len(sources)}
	if len(sources) == 0 {
		return domain.Confidence{Score: 0, Level: domain.ConfidenceLow, Factors: factors}
	}

	var sum float64
	for _, s := range sources {
		sum += s.Relevance
		if s.Record.Metadata.Authoritative() {
			factors.AuthorityCount++
		}
	}
	factors.AvgRelevance = sum / float64(len(sources))

	target := float64(opts.TargetSourceCount)
	countFactor := min1(float64(factors.SourceCount) / target)
	authorityFactor := min1(float64(factors.AuthorityCount) / target)

	score := opts.RelevanceWeight*factors.AvgRelevance +
		opts.CountWeight*countFactor +
		opts.AuthorityWeight*authorityFactor
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	level := domain.ConfidenceLow
	switch {
	case score > opts.HighThreshold:
		level = domain.ConfidenceHigh
	case score > opts.MediumThreshold:
		level = domain.ConfidenceMedium
	}

	return domain.Confidence{Score: score, Level: level, Factors: factors}
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
