// Package main implements the Longevita API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/brownbiotech/longevita/engine/domain"
	"github.com/brownbiotech/longevita/engine/embed"
	"github.com/brownbiotech/longevita/engine/ingest"
	"github.com/brownbiotech/longevita/engine/rag"
	"github.com/brownbiotech/longevita/engine/semantic"
	"github.com/brownbiotech/longevita/pkg/metrics"
	"github.com/brownbiotech/longevita/pkg/mid"
	"github.com/brownbiotech/longevita/pkg/natsutil"
	"github.com/brownbiotech/longevita/pkg/ollama"
	"github.com/brownbiotech/longevita/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	OllamaURL     string
	EmbedModel    string
	EmbedDims     int
	GenerateModel string
	QdrantURL     string
	Collection    string
	NatsURL       string
	CORSOrigin    string
	CacheSize     int
	RateLimit     float64
	RateBurst     int
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:    envOr("EMBED_MODEL", "nomic-embed-text"),
		EmbedDims:     envInt("EMBED_DIMS", 768),
		GenerateModel: envOr("GENERATE_MODEL", "llama3.1"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "longevita"),
		NatsURL:       os.Getenv("NATS_URL"), // empty disables async ingestion
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		CacheSize:     envInt("EMBED_CACHE_SIZE", 4096),
		RateLimit:     float64(envInt("RATE_LIMIT_RPS", 20)),
		RateBurst:     envInt("RATE_LIMIT_BURST", 40),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
		return fmt.Errorf("qdrant ensure collection: %w", err)
	}

	// --- Build embedder: Ollama behind retry, breaker, and an LRU cache ---
	cache := embed.NewCache(cfg.CacheSize)
	var embedder embed.Embedder = ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedDims)
	embedder = embed.NewResilient(embedder, embed.DefaultResilientOpts())
	embedder = embed.NewCached(embedder, cache)
	sampleCacheStats(ctx, reg, cache)

	generator := ollama.NewGenerateClient(cfg.OllamaURL, cfg.GenerateModel)

	// --- Optional NATS for async ingestion ---
	var nc *nats.Conn
	if cfg.NatsURL != "" {
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
	}

	// --- Build RAG service ---
	ragSvc := rag.New(embedder, vectorStore, generator, rag.DefaultOptions(), logger, reg)

	ingestDeps := ingest.Deps{Embedder: embedder, Store: vectorStore, Logger: logger}

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth(ragSvc))
	mux.HandleFunc("POST /api/query", handleQuery(ragSvc, logger))
	mux.HandleFunc("POST /api/search", handleSearch(ragSvc, logger))
	mux.HandleFunc("POST /api/ingest", handleIngest(nc, ingestDeps, logger))
	mux.Handle("GET /metrics", reg.Handler())

	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RateLimit, Burst: cfg.RateBurst})
	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.RateLimit(limiter),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("longevita-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// sampleCacheStats copies embedding-cache counters into gauges every 15s.
func sampleCacheStats(ctx context.Context, reg *metrics.Registry, cache *embed.Cache) {
	hits := reg.Gauge("longevita_embed_cache_hits", "Embedding cache hits")
	misses := reg.Gauge("longevita_embed_cache_misses", "Embedding cache misses")
	size := reg.Gauge("longevita_embed_cache_entries", "Embedding cache entries")

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hits.Set(cache.Hits())
				misses.Set(cache.Misses())
				size.Set(int64(cache.Len()))
			}
		}
	}()
}

// --- Handlers ---

func handleHealth(svc *rag.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := svc.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !rag.Healthy(checks) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{"checks": checks})
	}
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string          `json:"question"`
	Profile  domain.Profile  `json:"profile,omitempty"`
	Language domain.Language `json:"language,omitempty"`
}

func handleQuery(svc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ans, err := svc.Query(r.Context(), domain.Query{
			Text:     req.Question,
			Profile:  req.Profile,
			Language: req.Language,
		})
		if err != nil {
			writeStageError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ans)
	}
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Question     string          `json:"question"`
	Language     domain.Language `json:"language,omitempty"`
	TopK         int             `json:"top_k,omitempty"`
	MinRelevance float64         `json:"min_relevance,omitempty"`
	SourceTypes  []string        `json:"source_types,omitempty"`
}

func handleSearch(svc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		opts := rag.SearchOpts{TopK: req.TopK, MinRelevance: req.MinRelevance}
		if len(req.SourceTypes) > 0 {
			opts.Filter.AnyOf = map[string][]string{"source_type": req.SourceTypes}
		}

		results, err := svc.Search(r.Context(), domain.Query{Text: req.Question, Language: req.Language}, opts)
		if err != nil {
			writeStageError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}
}

// handleIngest accepts a document. With NATS configured the document is
// queued and processed by the worker; otherwise it is ingested synchronously.
func handleIngest(nc *nats.Conn, deps ingest.Deps, logger *slog.Logger) http.HandlerFunc {
	pipeline := ingest.NewPipeline(deps)
	return func(w http.ResponseWriter, r *http.Request) {
		var doc domain.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := domain.ValidateDocument(doc); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if nc != nil {
			if err := natsutil.Publish(r.Context(), nc, ingest.IngestSubject, doc); err != nil {
				logger.Error("ingest publish failed", "doc_id", doc.ID, "err", err)
				writeError(w, http.StatusInternalServerError, "queue unavailable")
				return
			}
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"status": "queued", "doc_id": doc.ID})
			return
		}

		status, err := pipeline(r.Context(), doc).Unwrap()
		if err != nil {
			logger.Error("ingest failed", "doc_id", doc.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "ingestion failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}
}

func writeStageError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}
	logger.Error("pipeline error", "stage", domain.StageOf(err), "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
