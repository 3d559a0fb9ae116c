// Package ingest transforms raw documents into knowledge records: validation,
// word-window chunking, embedding, and vector-store upsert. Batches run with
// bounded concurrency and per-document failure isolation.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brownbiotech/longevita/engine/domain"
	"github.com/brownbiotech/longevita/engine/embed"
	"github.com/brownbiotech/longevita/pkg/fn"
	"golang.org/x/time/rate"
)

// DefaultWorkers bounds concurrent document ingestion so batch runs respect
// provider rate limits.
const DefaultWorkers = 4

// VectorWriter is the slice of the vector store ingestion needs.
type VectorWriter interface {
	Upsert(ctx context.Context, records []domain.KnowledgeRecord) error
	DeleteByDocID(ctx context.Context, docID string) error
}

// Deps holds the external dependencies of the ingestion pipeline.
type Deps struct {
	Embedder embed.Embedder
	Store    VectorWriter
	// Limiter throttles embedding calls across all workers. Nil means no limit.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// ChunkedDoc is a document split into records, embeddings filled in by the
// embed stage.
type ChunkedDoc struct {
	Doc     domain.Document
	Records []domain.KnowledgeRecord
}

// DocStatus reports the outcome of ingesting one document.
type DocStatus struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`
}

// --- Pipeline stages ---

// Validate gates documents at pipeline entry.
var Validate fn.Stage[domain.Document, domain.Document] = func(_ context.Context, doc domain.Document) fn.Result[domain.Document] {
	if err := domain.ValidateDocument(doc); err != nil {
		return fn.Err[domain.Document](err)
	}
	return fn.Ok(doc)
}

// Chunk splits a document into word-window records.
var Chunk fn.Stage[domain.Document, ChunkedDoc] = func(_ context.Context, doc domain.Document) fn.Result[ChunkedDoc] {
	records := ChunkDocument(doc, 0)
	if len(records) == 0 {
		return fn.Err[ChunkedDoc](domain.NewValidationError("text", "", domain.ErrEmptyDocument))
	}
	return fn.Ok(ChunkedDoc{Doc: doc, Records: records})
}

// NewEmbed creates the embedding stage. The first failing chunk aborts the
// remaining chunks of that document; other documents are unaffected.
func NewEmbed(embedder embed.Embedder, limiter *rate.Limiter) fn.Stage[ChunkedDoc, ChunkedDoc] {
	return func(ctx context.Context, cd ChunkedDoc) fn.Result[ChunkedDoc] {
		for i := range cd.Records {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return fn.Err[ChunkedDoc](err)
				}
			}
			vec, err := embedder.Embed(ctx, cd.Records[i].Text)
			if err != nil {
				return fn.Err[ChunkedDoc](fmt.Errorf("embed chunk %d/%d: %w", i+1, len(cd.Records), err))
			}
			cd.Records[i].Embedding = vec
		}
		return fn.Ok(cd)
	}
}

// NewStore creates the upsert stage. Existing chunks of the document are
// removed first so a re-ingested revision with fewer chunks leaves no
// orphans; same-ID points are then overwritten by the upsert.
func NewStore(store VectorWriter) fn.Stage[ChunkedDoc, DocStatus] {
	return func(ctx context.Context, cd ChunkedDoc) fn.Result[DocStatus] {
		if err := store.DeleteByDocID(ctx, cd.Doc.ID); err != nil {
			return fn.Err[DocStatus](fmt.Errorf("clear previous revision: %w", err))
		}
		if err := store.Upsert(ctx, cd.Records); err != nil {
			return fn.Err[DocStatus](fmt.Errorf("vector upsert: %w", err))
		}
		return fn.Ok(DocStatus{DocID: cd.Doc.ID, Chunks: len(cd.Records)})
	}
}

// NewPipeline composes Validate → Chunk → Embed → Store.
func NewPipeline(deps Deps) fn.Stage[domain.Document, DocStatus] {
	chunked := fn.Then(Validate, Chunk)
	embedded := fn.Then(chunked, NewEmbed(deps.Embedder, deps.Limiter))
	return fn.Then(embedded, NewStore(deps.Store))
}

// Batch ingests documents with a bounded worker pool. Every document gets a
// status; one failing document never aborts the rest.
func Batch(ctx context.Context, deps Deps, docs []domain.Document, workers int) []DocStatus {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	pipeline := NewPipeline(deps)

	results := fn.ParMapResult(docs, workers, func(doc domain.Document) fn.Result[DocStatus] {
		return pipeline(ctx, doc)
	})

	statuses := make([]DocStatus, len(docs))
	for i, r := range results {
		status, err := r.Unwrap()
		if err != nil {
			status = DocStatus{DocID: docs[i].ID, Err: err, Error: err.Error()}
			log.Error("ingest: document failed", "doc_id", docs[i].ID, "err", err)
		} else {
			log.Info("ingest: document stored", "doc_id", status.DocID, "chunks", status.Chunks)
		}
		statuses[i] = status
	}
	return statuses
}
