package ingest

import (
	"fmt"
	"strings"

	"github.com/brownbiotech/longevita/engine/domain"
)

// Chunk window sizes in words per document class. Dense protocol text tolerates
// larger windows than papers whose abstracts carry most of the signal.
const (
	DefaultWindowWords  = 400
	ProtocolWindowWords = 500
)

// WindowFor returns the chunk window size for a document class.
func WindowFor(typ domain.SourceType) int {
	if typ == domain.SourceProtocol {
		return ProtocolWindowWords
	}
	return DefaultWindowWords
}

// ChunkDocument splits a document into fixed-size word windows on whitespace
// boundaries, no overlap. Each chunk inherits the parent metadata and keeps a
// chunk_index/total_chunks back-reference to the parent document ID. Window 0
// falls back to the per-class default.
func ChunkDocument(doc domain.Document, window int) []domain.KnowledgeRecord {
	if window <= 0 {
		window = WindowFor(doc.Metadata.Type)
	}

	words := strings.Fields(doc.Text)
	if len(words) == 0 {
		return nil
	}

	total := (len(words) + window - 1) / window
	records := make([]domain.KnowledgeRecord, 0, total)
	for i := 0; i < total; i++ {
		start := i * window
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		records = append(records, domain.KnowledgeRecord{
			ID:          fmt.Sprintf("%s#%d", doc.ID, i),
			DocID:       doc.ID,
			ChunkIndex:  i,
			TotalChunks: total,
			Text:        strings.Join(words[start:end], " "),
			Metadata:    doc.Metadata,
		})
	}
	return records
}
