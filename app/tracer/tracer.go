package tracer

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitTracingAndMetrics installs the global tracer and meter providers and
// serves the Prometheus scrape endpoint on its own port.
func InitTracingAndMetrics(serviceName, prometheusPort string, logger *slog.Logger) error {
	tp := trace.NewTracerProvider(
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("creating prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		addr := ":" + prometheusPort
		logger.Info("Serving metrics", slog.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Metrics server stopped", slog.Any("error", err))
		}
	}()
	return nil
}
