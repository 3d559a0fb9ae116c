package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/brownbiotech/longevita/engine/domain"
)

// memStore is an in-memory VectorWriter keyed by record ID.
type memStore struct {
	mu      sync.Mutex
	records map[string]domain.KnowledgeRecord
	failFor map[string]error // doc IDs whose upsert fails
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.KnowledgeRecord), failFor: make(map[string]error)}
}

func (m *memStore) Upsert(_ context.Context, records []domain.KnowledgeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if err := m.failFor[r.DocID]; err != nil {
			return err
		}
		m.records[r.ID] = r
	}
	return nil
}

func (m *memStore) DeleteByDocID(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.DocID == docID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memStore) docIDs() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool)
	for _, r := range m.records {
		out[r.DocID] = true
	}
	return out
}

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) Dimensions() int { return 1 }
func (c *countingEmbedder) Model() string   { return "test" }

func testDoc(id, text string) domain.Document {
	return domain.Document{
		ID:   id,
		Text: text,
		Metadata: domain.Metadata{
			Type:              domain.SourceResearchPaper,
			ClinicalRelevance: 0.7,
			Language:          domain.LangEnglish,
		},
	}
}

func TestPipelineStoresEmbeddedChunks(t *testing.T) {
	store := newMemStore()
	deps := Deps{Embedder: &countingEmbedder{}, Store: store}
	pipeline := NewPipeline(deps)

	doc := testDoc("doc-1", strings.Repeat("longevity research word ", 300)) // 1200 words → 3 chunks
	result := pipeline(context.Background(), doc)

	status, err := result.Unwrap()
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if status.Chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", status.Chunks)
	}
	for id, r := range store.records {
		if len(r.Embedding) == 0 {
			t.Errorf("record %s stored without embedding", id)
		}
	}
}

func TestPipelineRejectsInvalidDocument(t *testing.T) {
	embedder := &countingEmbedder{}
	pipeline := NewPipeline(Deps{Embedder: embedder, Store: newMemStore()})

	result := pipeline(context.Background(), domain.Document{ID: "bad", Text: ""})
	if _, err := result.Unwrap(); !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("validation must precede embedding, got %d calls", embedder.calls)
	}
}

func TestReingestOverwritesByID(t *testing.T) {
	store := newMemStore()
	deps := Deps{Embedder: &countingEmbedder{}, Store: store}
	pipeline := NewPipeline(deps)

	long := testDoc("doc-x", strings.Repeat("alpha beta gamma delta ", 250)) // 1000 words → 3 chunks
	if _, err := pipeline(context.Background(), long).Unwrap(); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if len(store.records) != 3 {
		t.Fatalf("expected 3 records after first ingest, got %d", len(store.records))
	}

	short := testDoc("doc-x", "completely new and much shorter text")
	if _, err := pipeline(context.Background(), short).Unwrap(); err != nil {
		t.Fatalf("re-ingest: %v", err)
	}

	if len(store.records) != 1 {
		t.Fatalf("re-ingest left %d records, want 1 (no orphan chunks, no duplicates)", len(store.records))
	}
	rec := store.records["doc-x#0"]
	if !strings.HasPrefix(rec.Text, "completely new") {
		t.Errorf("text not updated: %q", rec.Text)
	}
}

func TestBatchIsolatesDocumentFailures(t *testing.T) {
	store := newMemStore()
	store.failFor["doc-1"] = errors.New("qdrant write refused")
	deps := Deps{Embedder: &countingEmbedder{}, Store: store}

	docs := []domain.Document{
		testDoc("doc-0", "healthy document zero"),
		testDoc("doc-1", "doomed document one"),
		testDoc("doc-2", "healthy document two"),
	}

	statuses := Batch(context.Background(), deps, docs, 2)
	if len(statuses) != 3 {
		t.Fatalf("expected a status per document, got %d", len(statuses))
	}
	if statuses[0].Err != nil || statuses[2].Err != nil {
		t.Errorf("healthy documents failed: %v, %v", statuses[0].Err, statuses[2].Err)
	}
	if statuses[1].Err == nil {
		t.Error("expected doc-1 to fail")
	}
	if statuses[1].DocID != "doc-1" {
		t.Errorf("status order must follow input order, got %s", statuses[1].DocID)
	}

	ids := store.docIDs()
	if !ids["doc-0"] || !ids["doc-2"] || ids["doc-1"] {
		t.Errorf("unexpected stored docs: %v", ids)
	}
}

func TestBatchConcurrentFiftyDocuments(t *testing.T) {
	store := newMemStore()
	deps := Deps{Embedder: &countingEmbedder{}, Store: store}

	docs := make([]domain.Document, 50)
	for i := range docs {
		docs[i] = testDoc(fmt.Sprintf("doc-%02d", i), fmt.Sprintf("document number %d about healthspan", i))
	}

	statuses := Batch(context.Background(), deps, docs, DefaultWorkers)
	for _, s := range statuses {
		if s.Err != nil {
			t.Fatalf("document %s failed: %v", s.DocID, s.Err)
		}
	}

	ids := store.docIDs()
	if len(ids) != 50 {
		t.Fatalf("expected 50 distinct documents stored, got %d", len(ids))
	}
}

func TestEmbedFailureAbortsDocument(t *testing.T) {
	store := newMemStore()
	deps := Deps{Embedder: &countingEmbedder{fail: errors.New("provider down")}, Store: store}
	pipeline := NewPipeline(deps)

	result := pipeline(context.Background(), testDoc("doc-f", "some words here"))
	if _, err := result.Unwrap(); err == nil {
		t.Fatal("expected embed failure to surface")
	}
	if len(store.records) != 0 {
		t.Errorf("failed document must not be partially stored, got %d records", len(store.records))
	}
}
