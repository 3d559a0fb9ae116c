package semantic

import "github.com/brownbiotech/longevita/engine/domain"

// Hit is a single vector search match: the reconstructed record plus the raw
// cosine similarity reported by Qdrant.
type Hit struct {
	Record domain.KnowledgeRecord `json:"record"`
	Score  float32                `json:"score"`
}

// Filter is a structured predicate over record metadata. Equals entries match
// a field exactly; AnyOf entries match when the field holds any listed value.
// A zero Filter matches everything.
type Filter struct {
	Equals map[string]string   `json:"equals,omitempty"`
	AnyOf  map[string][]string `json:"any_of,omitempty"`
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return len(f.Equals) == 0 && len(f.AnyOf) == 0
}
