// Command worker consumes queued documents from NATS and runs them through
// the ingestion pipeline into Qdrant.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/brownbiotech/longevita/engine/embed"
	"github.com/brownbiotech/longevita/engine/ingest"
	"github.com/brownbiotech/longevita/engine/semantic"
	"github.com/brownbiotech/longevita/pkg/metrics"
	"github.com/brownbiotech/longevita/pkg/ollama"
)

func main() {
	var (
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		ollamaModel = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		embedDims   = flag.Int("dims", 768, "embedding dimensions")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "longevita", "Qdrant collection name")
		embedRPS    = flag.Float64("embed-rps", 10, "embedding calls per second")
		metricsPort = flag.Int("metrics-port", 9092, "Prometheus metrics port")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	met := metrics.New()
	met.CollectRuntime("longevita_worker", 15*time.Second)
	met.ServeAsync(*metricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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

	var embedder embed.Embedder = ollama.NewEmbedClient(*ollamaURL, *ollamaModel, *embedDims)
	embedder = embed.NewResilient(embedder, embed.DefaultResilientOpts())

	nc, err := nats.Connect(*natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	defer nc.Drain()

	deps := ingest.Deps{
		Embedder: embedder,
		Store:    vs,
		Limiter:  rate.NewLimiter(rate.Limit(*embedRPS), 1),
		Logger:   log,
	}

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		log.Error("subscribe failed", "err", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	log.Info("worker consuming", "subject", ingest.IngestSubject, "dlq", ingest.DLQSubject)
	<-ctx.Done()
	log.Info("shutting down")
}
