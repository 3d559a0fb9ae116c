package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brownbiotech/longevita/engine/domain"
)

func wordsDoc(id string, n int, typ domain.SourceType) domain.Document {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return domain.Document{
		ID:   id,
		Text: strings.Join(words, " "),
		Metadata: domain.Metadata{
			Type:              typ,
			ClinicalRelevance: 0.5,
			Language:          domain.LangEnglish,
		},
	}
}

func TestChunkDocumentWindows(t *testing.T) {
	doc := wordsDoc("d1", 950, domain.SourceResearchPaper)
	records := ChunkDocument(doc, 400)

	if len(records) != 3 {
		t.Fatalf("expected 3 chunks for 950 words at window 400, got %d", len(records))
	}
	for i, r := range records {
		if r.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, r.ChunkIndex)
		}
		if r.TotalChunks != 3 {
			t.Errorf("chunk %d total = %d, want 3", i, r.TotalChunks)
		}
		if r.DocID != "d1" {
			t.Errorf("chunk %d doc back-reference = %q", i, r.DocID)
		}
		if r.ID != fmt.Sprintf("d1#%d", i) {
			t.Errorf("chunk %d id = %q", i, r.ID)
		}
		if r.Metadata.ClinicalRelevance != 0.5 {
			t.Errorf("chunk %d did not inherit metadata", i)
		}
	}

	// Windows are exact word counts with no overlap.
	if got := len(strings.Fields(records[0].Text)); got != 400 {
		t.Errorf("first window has %d words", got)
	}
	if got := len(strings.Fields(records[2].Text)); got != 150 {
		t.Errorf("final window has %d words", got)
	}
	if strings.Fields(records[0].Text)[399] == strings.Fields(records[1].Text)[0] {
		t.Error("windows overlap")
	}
}

func TestChunkDocumentShortText(t *testing.T) {
	doc := wordsDoc("tiny", 12, domain.SourceExpertise)
	records := ChunkDocument(doc, 0)
	if len(records) != 1 {
		t.Fatalf("short document should become one chunk, got %d", len(records))
	}
	if records[0].TotalChunks != 1 || records[0].ChunkIndex != 0 {
		t.Errorf("bad indices: %+v", records[0])
	}
}

func TestChunkDocumentEmpty(t *testing.T) {
	if records := ChunkDocument(domain.Document{ID: "e", Text: "  \n "}, 0); records != nil {
		t.Errorf("expected nil for empty text, got %d chunks", len(records))
	}
}

func TestWindowForDocumentClass(t *testing.T) {
	if WindowFor(domain.SourceProtocol) != ProtocolWindowWords {
		t.Error("protocol window")
	}
	if WindowFor(domain.SourceResearchPaper) != DefaultWindowWords {
		t.Error("paper window")
	}

	doc := wordsDoc("p", ProtocolWindowWords, domain.SourceProtocol)
	if got := len(ChunkDocument(doc, 0)); got != 1 {
		t.Errorf("protocol-sized doc should fit one protocol window, got %d chunks", got)
	}
}
