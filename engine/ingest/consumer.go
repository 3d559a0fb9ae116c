package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brownbiotech/longevita/engine/domain"
	"github.com/nats-io/nats.go"
)

const (
	// IngestSubject carries documents submitted for asynchronous ingestion.
	IngestSubject = "longevita.ingest"
	// DLQSubject receives documents that exhausted their retries.
	DLQSubject = "longevita.ingest.dlq"
	// MaxRetries before a document lands in the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Doc     domain.Document `json:"doc"`
	Error   string          `json:"error"`
	Retries int             `json:"retries"`
}

// StartConsumer subscribes to the ingest subject and runs each document
// through the pipeline, re-publishing failures with an incremented retry
// count until they hit the DLQ. Validation failures go straight to the DLQ:
// retrying an invalid document cannot succeed.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var doc domain.Document
		if err := json.Unmarshal(msg.Data, &doc); err != nil {
			log.Error("ingest: unmarshal failed", "err", err)
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(context.Background(), doc)
		if result.IsOk() {
			status, _ := result.Unwrap()
			log.Info("ingest: success", "doc_id", status.DocID, "chunks", status.Chunks)
			return
		}

		_, pipeErr := result.Unwrap()
		retries++
		log.Error("ingest: pipeline failed", "doc_id", doc.ID, "err", pipeErr, "retry", retries)

		var ve *domain.ValidationError
		terminal := retries >= MaxRetries || errors.As(pipeErr, &ve)

		if terminal {
			dlq := dlqMessage{Doc: doc, Error: pipeErr.Error(), Retries: retries}
			data, _ := json.Marshal(dlq)
			if err := nc.Publish(DLQSubject, data); err != nil {
				log.Error("ingest: DLQ publish failed", "err", err)
			}
			return
		}

		retryMsg := nats.NewMsg(IngestSubject)
		retryMsg.Data = msg.Data
		retryMsg.Header = nats.Header{}
		retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
		if err := nc.PublishMsg(retryMsg); err != nil {
			log.Error("ingest: retry publish failed", "err", err)
		}
	})
}
