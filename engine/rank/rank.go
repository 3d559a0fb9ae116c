// Package rank computes the composite relevance score that orders retrieval
// results: raw vector similarity blended with clinical weight, recency, source
// authority, and language match. Scoring is a pure function of its inputs.
package rank

import (
	"sort"
	"time"

	"github.com/brownbiotech/longevita/engine/domain"
	"github.com/brownbiotech/longevita/pkg/fn"
)

// Weights are the tunable blend coefficients. They are configuration, not a
// fixed law: the defaults were hand-calibrated, not learned, and callers may
// recalibrate them.
type Weights struct {
	Similarity   float64 `json:"similarity"`
	Clinical     float64 `json:"clinical"`
	Recency      float64 `json:"recency"`
	Authority    float64 `json:"authority"`
	SameLanguage float64 `json:"same_language"` // additive bonus, sum clamped to [0,1]
}

// DefaultWeights returns the calibrated defaults.
func DefaultWeights() Weights {
	return Weights{
		Similarity:   0.40,
		Clinical:     0.30,
		Recency:      0.20,
		Authority:    0.10,
		SameLanguage: 0.05,
	}
}

// Recency bonus steps by document age in years. Sources younger than a year
// get the full bonus, decaying to zero past the horizon.
const (
	recencyFullMaxAge = 1 // years
	recencyMidMaxAge  = 2
	recencyHorizon    = 3
	recencyMidBonus   = 0.6
	recencyLateBonus  = 0.3
)

// Authority bonus per source type. Primary expertise and clinical trials rank
// above generic research papers; a high-impact journal uplifts any type.
const (
	authorityPrimary       = 1.0 // clinical_trial, expertise
	authorityProtocol      = 0.5
	authorityPaper         = 0.3
	authorityJournalUplift = 0.4
)

// Score computes the relevance of one result. similarity is the raw cosine
// score in [-1,1]; now anchors the recency computation so callers control
// determinism. The result is always in [0,1].
func (w Weights) Score(similarity float64, meta domain.Metadata, queryLang domain.Language, now time.Time) float64 {
	// Map cosine [-1,1] onto [0,1] so negative similarity still orders
	// strictly instead of clamping to a shared floor.
	sim01 := clamp01((similarity + 1) / 2)

	score := w.Similarity*sim01 +
		w.Clinical*clamp01(meta.ClinicalRelevance) +
		w.Recency*recencyBonus(meta.Year, now) +
		w.Authority*authorityBonus(meta)

	if queryLang != domain.LangAuto && meta.Language == queryLang {
		score += w.SameLanguage
	}
	return clamp01(score)
}

func recencyBonus(year int, now time.Time) float64 {
	if year == 0 {
		return 0 // unknown age earns no bonus
	}
	age := now.Year() - year
	switch {
	case age <= recencyFullMaxAge:
		return 1
	case age <= recencyMidMaxAge:
		return recencyMidBonus
	case age <= recencyHorizon:
		return recencyLateBonus
	default:
		return 0
	}
}

func authorityBonus(meta domain.Metadata) float64 {
	var base float64
	switch meta.Type {
	case domain.SourceClinicalTrial, domain.SourceExpertise:
		base = authorityPrimary
	case domain.SourceProtocol:
		base = authorityProtocol
	default:
		base = authorityPaper
	}
	if domain.IsAuthorityJournal(meta.Journal) {
		base += authorityJournalUplift
	}
	if base > 1 {
		base = 1
	}
	return base
}

// Rank scores every result and returns them sorted by descending relevance.
// The sort is stable: equal scores keep the vector store's original order.
func Rank(results []domain.RetrievalResult, w Weights, queryLang domain.Language, now time.Time) []domain.RetrievalResult {
	ranked := make([]domain.RetrievalResult, len(results))
	copy(ranked, results)
	for i := range ranked {
		ranked[i].Relevance = w.Score(ranked[i].Similarity, ranked[i].Record.Metadata, queryLang, now)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})
	return ranked
}

// Cut drops results below the minimum relevance. minRelevance 0 keeps all.
func Cut(ranked []domain.RetrievalResult, minRelevance float64) []domain.RetrievalResult {
	if minRelevance <= 0 {
		return ranked
	}
	return fn.Filter(ranked, func(r domain.RetrievalResult) bool {
		return r.Relevance >= minRelevance
	})
}

// Diversify reorders a ranked list so that up to perType results of every
// source type appear before the remainder, preserving relative rank inside
// each group. Guarantees minority source types representation in a top-K cut.
func Diversify(ranked []domain.RetrievalResult, perType int) []domain.RetrievalResult {
	if perType <= 0 || len(ranked) == 0 {
		return ranked
	}
	taken := make([]bool, len(ranked))
	counts := make(map[domain.SourceType]int)
	out := make([]domain.RetrievalResult, 0, len(ranked))

	for i, r := range ranked {
		typ := r.Record.Metadata.Type
		if counts[typ] < perType {
			counts[typ]++
			taken[i] = true
			out = append(out, r)
		}
	}
	for i, r := range ranked {
		if !taken[i] {
			out = append(out, r)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
