// Package domain defines core domain types, constants, and validation for the
// Longevita engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

// SourceType classifies a knowledge source.
type SourceType string

const (
	SourceResearchPaper SourceType = "research_paper"
	SourceClinicalTrial SourceType = "clinical_trial"
	SourceExpertise     SourceType = "expertise"
	SourceProtocol      SourceType = "protocol"
)

// ValidSourceTypes is the set of recognised source types.
var ValidSourceTypes = map[SourceType]bool{
	SourceResearchPaper: true, SourceClinicalTrial: true,
	SourceExpertise: true, SourceProtocol: true,
}

// Language is a BCP-47-ish language tag. Empty means "detect from text".
type Language string

const (
	LangAuto    Language = ""
	LangEnglish Language = "en"
	LangKorean  Language = "ko"
)

// MaxExtraKeys bounds the free-form extension maps on Metadata and Profile.
const MaxExtraKeys = 16

// Metadata describes a knowledge source. Missing optional fields default to
// neutral values in relevance scoring.
type Metadata struct {
	Type              SourceType        `json:"type"`
	Authors           []string          `json:"authors,omitempty"`
	Year              int               `json:"year,omitempty"`
	Journal           string            `json:"journal,omitempty"`
	Topics            []string          `json:"topics,omitempty"`
	Language          Language          `json:"language,omitempty"`
	ClinicalRelevance float64           `json:"clinical_relevance"`
	SampleSize        int               `json:"sample_size,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// KnowledgeRecord is one retrievable chunk in the vector store. Chunks keep a
// back-reference to their parent document; the parent holds no pointer to its
// chunks.
type KnowledgeRecord struct {
	ID          string    `json:"id"`
	DocID       string    `json:"doc_id"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"-"`
	Metadata    Metadata  `json:"metadata"`
}

// Document is the ingestion input: a full source document before chunking.
type Document struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Profile carries optional caller context for personalised answers.
type Profile struct {
	Age         int               `json:"age,omitempty"`
	Goals       []string          `json:"goals,omitempty"`
	Conditions  []string          `json:"conditions,omitempty"`
	Supplements []string          `json:"supplements,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Empty reports whether the profile carries no information.
func (p Profile) Empty() bool {
	return p.Age == 0 && len(p.Goals) == 0 && len(p.Conditions) == 0 &&
		len(p.Supplements) == 0 && len(p.Extra) == 0
}

// Query is a user question plus optional profile and language preference.
type Query struct {
	Text     string   `json:"text"`
	Profile  Profile  `json:"profile,omitempty"`
	Language Language `json:"language,omitempty"`
}

// RetrievalResult pairs a retrieved record with its raw similarity and the
// composite relevance score. Ephemeral, produced per query, never persisted.
type RetrievalResult struct {
	Record     KnowledgeRecord `json:"record"`
	Similarity float64         `json:"similarity"`
	Relevance  float64         `json:"relevance"`
}

// Citation binds an in-text marker to a 1-based source index.
type Citation struct {
	Marker      string `json:"marker"`
	SourceIndex int    `json:"source_index"`
}

// ConfidenceLevel buckets a confidence score.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// ConfidenceFactors are the inputs that produced a confidence score.
type ConfidenceFactors struct {
	AvgRelevance   float64 `json:"avg_relevance"`
	SourceCount    int     `json:"source_count"`
	AuthorityCount int     `json:"authority_count"`
}

// Confidence estimates answer trustworthiness from retrieval quality.
type Confidence struct {
	Score   float64           `json:"score"`
	Level   ConfidenceLevel   `json:"level"`
	Factors ConfidenceFactors `json:"factors"`
}

// Answer is the final structured response for one query. Sources are the
// ranked top-K results in presentation order, deduplicated by record ID;
// citation indices reference only positions present in Sources.
type Answer struct {
	Query      string            `json:"query"`
	Text       string            `json:"text"`
	Citations  []Citation        `json:"citations"`
	Sources    []RetrievalResult `json:"sources"`
	Confidence Confidence        `json:"confidence"`
	Language   Language          `json:"language"`
	Grounded   bool              `json:"grounded"`
}
