package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// newTextfileReader returns a metric reader backed by a private Prometheus
// registry and a flush that writes the registry to path in the text
// exposition format, for the node_exporter textfile collector.
func newTextfileReader(path string) (sdkmetric.Reader, shutdownFunc, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	flush := func(_ context.Context) error {
		writeErr := prometheus.WriteToTextfile(path, registry)
		if writeErr != nil {
			return fmt.Errorf("write metrics file: %w", writeErr)
		}

		return nil
	}

	return exporter, flush, nil
}
