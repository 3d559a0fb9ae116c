// Command ingest watches a directory for knowledge documents in JSON form and
// runs them through the ingestion pipeline into Qdrant.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/brownbiotech/longevita/engine/domain"
	"github.com/brownbiotech/longevita/engine/embed"
	"github.com/brownbiotech/longevita/engine/ingest"
	"github.com/brownbiotech/longevita/engine/semantic"
	"github.com/brownbiotech/longevita/pkg/metrics"
	"github.com/brownbiotech/longevita/pkg/ollama"
)

var met = metrics.New()

var (
	mDocsTotal      = func(source string) *metrics.Counter { return met.Counter(metrics.WithLabels("longevita_ingest_docs_total", "type", source), "Documents ingested by source type") }
	mErrorsTotal    = func(stage string) *metrics.Counter { return met.Counter(metrics.WithLabels("longevita_ingest_errors_total", "stage", stage), "Ingestion errors by stage") }
	mChunksTotal    = met.Counter("longevita_ingest_chunks_total", "Chunks written to the vector store")
	mFilesProcessed = met.Counter("longevita_ingest_files_processed_total", "Files processed")
	mBytesProcessed = met.Counter("longevita_ingest_bytes_processed_total", "Bytes of source files processed")
	mQueueDepth     = met.Gauge("longevita_ingest_queue_depth", "Files waiting to process")
	mLastScan       = met.Gauge("longevita_ingest_last_scan_timestamp", "Epoch of last directory scan")
	mBatchDur       = met.Histogram("longevita_ingest_batch_duration_seconds", "Per-file batch time", nil)
)

func main() {
	var (
		dataDir     = flag.String("dir", "/var/lib/longevita/inbox", "directory to watch for JSON documents")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		embedDims   = flag.Int("dims", 768, "embedding dimensions")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "longevita", "Qdrant collection name")
		interval    = flag.Duration("interval", 30*time.Second, "scan interval")
		workers     = flag.Int("workers", ingest.DefaultWorkers, "concurrent documents per file")
		embedRPS    = flag.Float64("embed-rps", 10, "embedding calls per second")
		stateFile   = flag.String("state", "/var/lib/longevita/.ingest-state.json", "processed files state")
		metricsPort = flag.Int("metrics-port", 9091, "Prometheus metrics port")
	)
	flag.Parse()

	met.CollectRuntime("longevita_ingest", 15*time.Second)
	met.ServeAsync(*metricsPort)

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, *embedDims); err != nil {
		log.Error("qdrant ensure collection failed", "err", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", *embedDims)

	var embedder embed.Embedder = ollama.NewEmbedClient(*ollamaURL, *ollamaModel, *embedDims)
	embedder = embed.NewResilient(embedder, embed.DefaultResilientOpts())
	log.Info("using Ollama embeddings", "model", *ollamaModel)

	deps := ingest.Deps{
		Embedder: embedder,
		Store:    vs,
		Limiter:  rate.NewLimiter(rate.Limit(*embedRPS), 1),
		Logger:   log,
	}

	processed := loadState(*stateFile)
	os.MkdirAll(*dataDir, 0o755)
	log.Info("watching for documents", "dir", *dataDir, "interval", *interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(*dataDir)
		if err != nil {
			mErrorsTotal("scan").Inc()
			log.Error("readdir failed", "err", err)
			return
		}

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name()[0] == '.' {
				continue
			}
			path := filepath.Join(*dataDir, e.Name())
			info, _ := e.Info()
			key := e.Name()
			if info != nil {
				key = fmt.Sprintf("%s:%d", e.Name(), info.Size())
			}
			if processed[key] {
				continue
			}

			mQueueDepth.Inc()
			if info != nil {
				mBytesProcessed.Add(info.Size())
			}
			start := time.Now()
			count, errs := processFile(ctx, path, deps, *workers, log)
			mBatchDur.Since(start)
			mQueueDepth.Dec()
			mFilesProcessed.Inc()
			log.Info("file done", "file", e.Name(), "ingested", count, "errors", errs)

			// Only mark fully processed when clean, so failures retry next scan.
			if errs == 0 {
				processed[key] = true
				saveState(*stateFile, processed)
			} else {
				log.Warn("file had errors, will retry on next scan", "file", e.Name(), "errors", errs)
			}
		}
	}

	scan()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

// processFile reads one JSON file holding a document, an array of documents,
// or a stream of concatenated documents, and ingests them as a batch.
func processFile(ctx context.Context, path string, deps ingest.Deps, workers int, log *slog.Logger) (count, errs int) {
	data, err := os.ReadFile(path)
	if err != nil {
		mErrorsTotal("read").Inc()
		log.Error("read failed", "file", path, "err", err)
		return 0, 1
	}

	docs := parseDocuments(data)
	if len(docs) == 0 {
		mErrorsTotal("parse").Inc()
		log.Error("no documents found", "file", path)
		return 0, 1
	}

	statuses := ingest.Batch(ctx, deps, docs, workers)
	for _, s := range statuses {
		if s.Err != nil {
			log.Error("document failed", "doc_id", s.DocID, "err", s.Err)
			mErrorsTotal("pipeline").Inc()
			errs++
			continue
		}
		mChunksTotal.Add(int64(s.Chunks))
		count++
	}
	for _, d := range docs {
		mDocsTotal(string(d.Metadata.Type)).Inc()
	}
	return count, errs
}

// parseDocuments accepts a single document, a JSON array, or a stream.
func parseDocuments(data []byte) []domain.Document {
	var docs []domain.Document
	if err := json.Unmarshal(data, &docs); err == nil {
		return docs
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	for {
		var doc domain.Document
		if err := dec.Decode(&doc); err != nil {
			break
		}
		if doc.ID != "" {
			docs = append(docs, doc)
		}
	}
	return docs
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) {
	data, _ := json.Marshal(m)
	os.WriteFile(path, data, 0o644)
}
