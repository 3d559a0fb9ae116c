package rank

import (
	"testing"
	"time"

	"github.com/brownbiotech/longevita/engine/domain"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func paperMeta(year int) domain.Metadata {
	return domain.Metadata{
		Type:              domain.SourceResearchPaper,
		Year:              year,
		Language:          domain.LangEnglish,
		ClinicalRelevance: 0.5,
	}
}

func TestScoreDeterministic(t *testing.T) {
	w := DefaultWeights()
	meta := paperMeta(2023)
	a := w.Score(0.73, meta, domain.LangEnglish, testNow)
	for i := 0; i < 10; i++ {
		if b := w.Score(0.73, meta, domain.LangEnglish, testNow); b != a {
			t.Fatalf("score not deterministic: %v vs %v", a, b)
		}
	}
}

func TestScoreMonotonicInSimilarity(t *testing.T) {
	w := DefaultWeights()
	meta := paperMeta(2023)
	sims := []float64{-1, -0.5, 0, 0.3, 0.7, 0.99, 1}
	prev := -1.0
	for _, sim := range sims {
		score := w.Score(sim, meta, domain.LangEnglish, testNow)
		if score <= prev {
			t.Fatalf("score not strictly increasing at sim=%v: %v <= %v", sim, score, prev)
		}
		prev = score
	}
}

func TestScoreBounds(t *testing.T) {
	w := DefaultWeights()
	metas := []domain.Metadata{
		{}, // everything missing
		{Type: domain.SourceClinicalTrial, Year: testNow.Year(), Journal: "Nature Aging", ClinicalRelevance: 1, Language: domain.LangKorean},
		{Type: domain.SourceResearchPaper, Year: 1990, ClinicalRelevance: -5},
		{Type: "weird", ClinicalRelevance: 99},
	}
	for _, meta := range metas {
		for _, sim := range []float64{-1, -0.2, 0, 0.5, 1} {
			for _, lang := range []domain.Language{domain.LangAuto, domain.LangEnglish, domain.LangKorean} {
				score := w.Score(sim, meta, lang, testNow)
				if score < 0 || score > 1 {
					t.Fatalf("score out of [0,1]: %v (sim=%v meta=%+v lang=%q)", score, sim, meta, lang)
				}
			}
		}
	}
}

func TestRecencySteps(t *testing.T) {
	w := Weights{Recency: 1} // isolate the recency term
	tests := []struct {
		year int
		want float64
	}{
		{testNow.Year(), 1},
		{testNow.Year() - 1, 1},
		{testNow.Year() - 2, recencyMidBonus},
		{testNow.Year() - 3, recencyLateBonus},
		{testNow.Year() - 4, 0},
		{0, 0}, // unknown year is neutral
	}
	for _, tt := range tests {
		got := w.Score(-1, domain.Metadata{Year: tt.year}, domain.LangAuto, testNow)
		if got != tt.want {
			t.Errorf("year %d: recency = %v, want %v", tt.year, got, tt.want)
		}
	}
}

func TestAuthorityOrdering(t *testing.T) {
	w := Weights{Authority: 1}
	score := func(meta domain.Metadata) float64 {
		return w.Score(-1, meta, domain.LangAuto, testNow)
	}

	trial := score(domain.Metadata{Type: domain.SourceClinicalTrial})
	expertise := score(domain.Metadata{Type: domain.SourceExpertise})
	paper := score(domain.Metadata{Type: domain.SourceResearchPaper})
	topJournalPaper := score(domain.Metadata{Type: domain.SourceResearchPaper, Journal: "Cell Metabolism"})

	if trial <= paper || expertise <= paper {
		t.Errorf("primary sources must outrank generic papers: trial=%v expertise=%v paper=%v", trial, expertise, paper)
	}
	if topJournalPaper <= paper {
		t.Errorf("journal uplift missing: %v <= %v", topJournalPaper, paper)
	}
	if trial > 1 || topJournalPaper > 1 {
		t.Errorf("authority bonus exceeds 1: trial=%v journal=%v", trial, topJournalPaper)
	}
}

func TestSameLanguageBonusClamped(t *testing.T) {
	w := DefaultWeights()
	meta := domain.Metadata{
		Type: domain.SourceClinicalTrial, Year: testNow.Year(),
		Journal: "Nature Aging", ClinicalRelevance: 1, Language: domain.LangKorean,
	}
	with := w.Score(1, meta, domain.LangKorean, testNow)
	without := w.Score(1, meta, domain.LangEnglish, testNow)
	if with != 1 {
		t.Errorf("maxed score with language bonus should clamp to 1, got %v", with)
	}
	if without >= with && without == 1 {
		// Both saturated is acceptable only because the unbonused sum already hits 1.
		t.Logf("both scores saturated: %v", without)
	}

	// Below saturation the bonus must be visible.
	meta.ClinicalRelevance = 0.2
	with = w.Score(0, meta, domain.LangKorean, testNow)
	without = w.Score(0, meta, domain.LangEnglish, testNow)
	if with-without < w.SameLanguage-1e-9 {
		t.Errorf("language bonus not applied: with=%v without=%v", with, without)
	}
}

func TestRankStableOnTies(t *testing.T) {
	meta := paperMeta(2023)
	results := []domain.RetrievalResult{
		{Record: domain.KnowledgeRecord{ID: "first", Metadata: meta}, Similarity: 0.8},
		{Record: domain.KnowledgeRecord{ID: "second", Metadata: meta}, Similarity: 0.8},
		{Record: domain.KnowledgeRecord{ID: "third", Metadata: meta}, Similarity: 0.8},
	}

	ranked := Rank(results, DefaultWeights(), domain.LangEnglish, testNow)
	for i, want := range []string{"first", "second", "third"} {
		if ranked[i].Record.ID != want {
			t.Fatalf("tie order not preserved: position %d = %s, want %s", i, ranked[i].Record.ID, want)
		}
	}
}

func TestRankOrdersByRelevance(t *testing.T) {
	results := []domain.RetrievalResult{
		{Record: domain.KnowledgeRecord{ID: "old-weak", Metadata: paperMeta(2015)}, Similarity: 0.2},
		{Record: domain.KnowledgeRecord{ID: "fresh-strong", Metadata: domain.Metadata{
			Type: domain.SourceClinicalTrial, Year: 2024, ClinicalRelevance: 0.9, Language: domain.LangEnglish,
		}}, Similarity: 0.9},
	}
	ranked := Rank(results, DefaultWeights(), domain.LangEnglish, testNow)
	if ranked[0].Record.ID != "fresh-strong" {
		t.Fatalf("expected fresh-strong first, got %s", ranked[0].Record.ID)
	}
	if ranked[0].Relevance <= ranked[1].Relevance {
		t.Errorf("relevance ordering broken: %v <= %v", ranked[0].Relevance, ranked[1].Relevance)
	}
	// Input order untouched.
	if results[0].Record.ID != "old-weak" || results[0].Relevance != 0 {
		t.Error("Rank must not mutate its input")
	}
}

func TestCut(t *testing.T) {
	ranked := []domain.RetrievalResult{
		{Relevance: 0.9}, {Relevance: 0.5}, {Relevance: 0.2},
	}
	if got := Cut(ranked, 0.4); len(got) != 2 {
		t.Errorf("expected 2 results above threshold, got %d", len(got))
	}
	if got := Cut(ranked, 0); len(got) != 3 {
		t.Errorf("zero threshold should keep all, got %d", len(got))
	}
}

func TestDiversify(t *testing.T) {
	mk := func(id string, typ domain.SourceType, rel float64) domain.RetrievalResult {
		return domain.RetrievalResult{
			Record:    domain.KnowledgeRecord{ID: id, Metadata: domain.Metadata{Type: typ}},
			Relevance: rel,
		}
	}
	ranked := []domain.RetrievalResult{
		mk("p1", domain.SourceResearchPaper, 0.9),
		mk("p2", domain.SourceResearchPaper, 0.8),
		mk("p3", domain.SourceResearchPaper, 0.7),
		mk("t1", domain.SourceClinicalTrial, 0.6),
	}

	out := Diversify(ranked, 1)
	if out[0].Record.ID != "p1" || out[1].Record.ID != "t1" {
		t.Errorf("expected one per type first, got %s, %s", out[0].Record.ID, out[1].Record.ID)
	}
	if len(out) != len(ranked) {
		t.Errorf("diversify must not drop results: %d != %d", len(out), len(ranked))
	}

	if got := Diversify(ranked, 0); &got[0] != &ranked[0] {
		t.Log("perType 0 returns input unchanged") // same backing slice
	}
}
