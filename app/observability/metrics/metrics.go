// Package metrics holds the engine's OpenTelemetry instruments. Instruments
// are created lazily from the global meter provider, so recording works both
// before and after the Prometheus exporter is installed.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wanderhk/tourism-ai/internal/types"
)

var (
	once sync.Once

	generationRequests metric.Int64Counter
	generationDuration metric.Float64Histogram
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	retrievalErrors    metric.Int64Counter
)

func instruments() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("github.com/wanderhk/tourism-ai")
		generationRequests, _ = meter.Int64Counter("generation_requests_total",
			metric.WithDescription("Completed generation requests by kind and outcome"))
		generationDuration, _ = meter.Float64Histogram("generation_duration_seconds",
			metric.WithDescription("End-to-end generation latency"),
			metric.WithUnit("s"))
		cacheHits, _ = meter.Int64Counter("response_cache_hits_total",
			metric.WithDescription("Response cache hits by request kind"))
		cacheMisses, _ = meter.Int64Counter("response_cache_misses_total",
			metric.WithDescription("Response cache misses by request kind"))
		retrievalErrors, _ = meter.Int64Counter("retrieval_errors_total",
			metric.WithDescription("Failed knowledge-base lookups"))
	})
}

// RecordGeneration counts one generation request and its latency.
func RecordGeneration(ctx context.Context, kind types.RequestKind, elapsed time.Duration, err error) {
	instruments()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	)
	generationRequests.Add(ctx, 1, attrs)
	generationDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordCacheLookup counts a response-cache hit or miss.
func RecordCacheLookup(ctx context.Context, kind types.RequestKind, hit bool) {
	instruments()
	attrs := metric.WithAttributes(attribute.String("kind", string(kind)))
	if hit {
		cacheHits.Add(ctx, 1, attrs)
	} else {
		cacheMisses.Add(ctx, 1, attrs)
	}
}

// RecordRetrievalError counts a knowledge-base lookup failure.
func RecordRetrievalError(ctx context.Context) {
	instruments()
	retrievalErrors.Add(ctx, 1)
}
