package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// syncOps counts document sync operations by operation and outcome.
	syncOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_document_sync_operations_total",
			Help: "Document sync operations by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	// uploads counts payload writes, split by whether the object was new or
	// already present under its deterministic path.
	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_document_uploads_total",
			Help: "Payload uploads to the object store.",
		},
		[]string{"result"},
	)

	// generations counts generative-AI calls by artifact and outcome.
	generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_generations_total",
			Help: "Generative-AI requests by artifact and outcome.",
		},
		[]string{"artifact", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(syncOps, uploads, generations)
}

// Outcome labels an error for metrics: "ok", "not_found", "canceled" or
// "error".
func Outcome(err error, notFound error) string {
	switch {
	case err == nil:
		return "ok"
	case notFound != nil && errors.Is(err, notFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// ObserveSync records one sync operation.
func ObserveSync(op, outcome string) {
	syncOps.WithLabelValues(op, outcome).Inc()
}

// ObserveUpload records a payload write; adopted is true when the object
// already existed.
func ObserveUpload(adopted bool) {
	if adopted {
		uploads.WithLabelValues("adopted").Inc()
		return
	}
	uploads.WithLabelValues("created").Inc()
}

// ObserveGeneration records one generative-AI call.
func ObserveGeneration(artifact string, err error) {
	generations.WithLabelValues(artifact, Outcome(err, nil)).Inc()
}
