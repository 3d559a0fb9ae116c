// Package rag orchestrates the question-answering pipeline: validate, detect
// language, embed, retrieve, rank, assemble context, generate, and format.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/brownbiotech/longevita/engine/answer"
	"github.com/brownbiotech/longevita/engine/domain"
	"github.com/brownbiotech/longevita/engine/embed"
	"github.com/brownbiotech/longevita/engine/lang"
	"github.com/brownbiotech/longevita/engine/prompt"
	"github.com/brownbiotech/longevita/engine/rank"
	"github.com/brownbiotech/longevita/engine/semantic"
	"github.com/brownbiotech/longevita/pkg/fn"
	"github.com/brownbiotech/longevita/pkg/metrics"
)

const tracerName = "engine/rag"

// Searcher is the retrieval capability the service needs from the vector
// store.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, filter semantic.Filter) ([]semantic.Hit, error)
	Ping(ctx context.Context) error
}

// Generator produces a completion from a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, userPrompt string) (string, error)
}

// Options tunes the pipeline.
type Options struct {
	// RetrieveK is how many candidates to fetch from the vector store before
	// ranking. Larger than the presented top-K so ranking has room to reorder.
	RetrieveK int
	// MinRelevance drops ranked results below this composite score.
	MinRelevance float64
	// DiversifyPerType guarantees minority source types representation in the
	// top-K cut. 0 disables diversification.
	DiversifyPerType int
	// Weights are the relevance blend coefficients.
	Weights rank.Weights
	// Prompt configures context assembly.
	Prompt prompt.Options
	// Confidence configures answer confidence scoring.
	Confidence answer.ConfidenceOpts
	// Now anchors recency scoring; defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the calibrated pipeline defaults.
func DefaultOptions() Options {
	return Options{
		RetrieveK:        20,
		MinRelevance:     0.35,
		DiversifyPerType: 2,
		Weights:          rank.DefaultWeights(),
		Prompt:           prompt.DefaultOptions(),
		Confidence:       answer.DefaultConfidenceOpts(),
	}
}

// Service is the question-answering pipeline.
type Service struct {
	embedder  embed.Embedder
	store     Searcher
	generator Generator
	detector  lang.Detector
	assembler *prompt.Assembler
	formatter *answer.Formatter
	opts      Options
	log       *slog.Logger
	stats     *stats
}

// stats are the service's pipeline metrics.
type stats struct {
	queries        *metrics.Counter
	failures       *metrics.Counter
	ungrounded     *metrics.Counter
	droppedMarkers *metrics.Counter
	latency        *metrics.Histogram
}

// New creates a Service. Zero option fields fall back to defaults.
func New(embedder embed.Embedder, store Searcher, generator Generator, opts Options, log *slog.Logger, reg *metrics.Registry) *Service {
	def := DefaultOptions()
	if opts.RetrieveK <= 0 {
		opts.RetrieveK = def.RetrieveK
	}
	if opts.Weights == (rank.Weights{}) {
		opts.Weights = def.Weights
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Service{
		embedder:  embedder,
		store:     store,
		generator: generator,
		detector:  lang.Heuristic{},
		assembler: prompt.New(opts.Prompt),
		formatter: answer.NewFormatter(opts.Confidence),
		opts:      opts,
		log:       log,
		stats: &stats{
			queries:        reg.Counter("rag_queries_total", "Total queries processed"),
			failures:       reg.Counter("rag_query_failures_total", "Queries that failed in some pipeline stage"),
			ungrounded:     reg.Counter("rag_ungrounded_answers_total", "Answers produced without any retrieved sources"),
			droppedMarkers: reg.Counter("rag_dropped_citations_total", "Out-of-range citation markers stripped from generated answers"),
			latency:        reg.Histogram("rag_query_duration_seconds", "End-to-end query latency", nil),
		},
	}
}

// Query runs the full pipeline and returns a structured, cited answer.
// An empty knowledge base is not an error: the answer comes back ungrounded
// with low confidence and generation is skipped entirely.
func (s *Service) Query(ctx context.Context, q domain.Query) (domain.Answer, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rag.query")
	defer span.End()
	s.stats.queries.Inc()

	ans, err := s.query(ctx, q)
	s.stats.latency.Since(start)
	if err != nil {
		s.stats.failures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("query failed", "stage", domain.StageOf(err), "err", err)
		return domain.Answer{}, err
	}
	s.log.Info("query answered",
		"language", ans.Language,
		"sources", len(ans.Sources),
		"citations", len(ans.Citations),
		"confidence", ans.Confidence.Level,
		"duration", time.Since(start),
	)
	return ans, nil
}

func (s *Service) query(ctx context.Context, q domain.Query) (domain.Answer, error) {
	if err := domain.ValidateQuery(q); err != nil {
		return domain.Answer{}, domain.NewStageError(domain.StageValidation, err)
	}
	language := lang.Resolve(s.detector, q)

	ranked, err := s.retrieve(ctx, q, semantic.Filter{})
	if err != nil {
		return domain.Answer{}, err
	}

	if len(ranked) == 0 {
		s.stats.ungrounded.Inc()
		return s.formatter.Ungrounded(q.Text, noSourcesText(language), language), nil
	}

	pctx := s.assembler.Build(q, ranked, language)

	if err := ctx.Err(); err != nil {
		return domain.Answer{}, domain.NewStageError(domain.StageGeneration, err)
	}
	generated, err := s.generator.Generate(ctx, pctx.System, pctx.User)
	if err != nil {
		return domain.Answer{}, &domain.StageError{
			Stage: domain.StageGeneration,
			Query: q.Text,
			Err:   fmt.Errorf("rag: generate: %w", err),
		}
	}

	ans, dropped := s.formatter.Format(q.Text, generated, pctx.Sources, language)
	if dropped > 0 {
		s.stats.droppedMarkers.Add(int64(dropped))
		s.log.Warn("generator cited nonexistent sources", "dropped", dropped, "sources", len(pctx.Sources))
	}
	return ans, nil
}

// SearchOpts narrows a retrieval-only search.
type SearchOpts struct {
	TopK   int
	Filter semantic.Filter
	// MinRelevance overrides the service default when > 0.
	MinRelevance float64
}

// Search runs retrieval and ranking without generation. Used by the search
// endpoint and as a debugging window into what the generator would see.
func (s *Service) Search(ctx context.Context, q domain.Query, opts SearchOpts) ([]domain.RetrievalResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rag.search")
	defer span.End()

	if err := domain.ValidateQuery(q); err != nil {
		return nil, domain.NewStageError(domain.StageValidation, err)
	}

	ranked, err := s.retrieve(ctx, q, opts.Filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if opts.MinRelevance > 0 {
		ranked = rank.Cut(ranked, opts.MinRelevance)
	}
	if opts.TopK > 0 && len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}
	return ranked, nil
}

// retrieve embeds the query, searches the vector store, and returns the
// ranked, thresholded, diversified results.
func (s *Service) retrieve(ctx context.Context, q domain.Query, filter semantic.Filter) ([]domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStageError(domain.StageEmbedding, err)
	}
	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, domain.NewStageError(domain.StageEmbedding, fmt.Errorf("rag: embed query: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.NewStageError(domain.StageRetrieval, err)
	}
	hits, err := s.store.Search(ctx, vec, s.opts.RetrieveK, filter)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRetrieval, fmt.Errorf("rag: search: %w", err))
	}

	results := make([]domain.RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = domain.RetrievalResult{Record: h.Record, Similarity: float64(h.Score)}
	}

	language := lang.Resolve(s.detector, q)
	ranked := rank.Rank(results, s.opts.Weights, language, s.opts.Now())
	ranked = rank.Cut(ranked, s.opts.MinRelevance)
	if s.opts.DiversifyPerType > 0 {
		ranked = rank.Diversify(ranked, s.opts.DiversifyPerType)
	}
	return ranked, nil
}

// noSourcesText is the fixed fallback answer when retrieval comes back empty.
func noSourcesText(language domain.Language) string {
	if language == domain.LangKorean {
		return "죄송합니다. 이 질문에 답할 수 있는 근거 자료를 찾지 못했습니다."
	}
	return "I could not find any sources in the knowledge base that address this question."
}

// Check is one dependency's health probe result.
type Check struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	Err  string `json:"error,omitempty"`
}

// Health probes the service's external dependencies concurrently. The
// embedder and generator are probed only if they expose a Ping method; HTTP
// providers without one are reported as configured.
func (s *Service) Health(ctx context.Context) []Check {
	return fn.FanOut(
		func() Check { return probe(ctx, "vector_store", s.store.Ping) },
		func() Check { return probeOptional(ctx, "embedder", s.embedder) },
		func() Check { return probeOptional(ctx, "generator", s.generator) },
	)
}

func probeOptional(ctx context.Context, name string, dep any) Check {
	if p, ok := dep.(interface{ Ping(context.Context) error }); ok {
		return probe(ctx, name, p.Ping)
	}
	return Check{Name: name, OK: true}
}

// Healthy reports whether every check passed.
func Healthy(checks []Check) bool {
	for _, c := range checks {
		if !c.OK {
			return false
		}
	}
	return true
}

func probe(ctx context.Context, name string, ping func(context.Context) error) Check {
	if err := ping(ctx); err != nil {
		return Check{Name: name, Err: err.Error()}
	}
	return Check{Name: name, OK: true}
}
