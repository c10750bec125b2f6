package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry bundles the OTel meter used by pipeline instruments with the
// Prometheus handler that scrapes them. Each Telemetry owns an independent
// registry so repeated construction (tests, restarts) never collides.
type Telemetry struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	handler  http.Handler
}

// NewTelemetry creates a Prometheus-backed OTel meter provider and the
// /metrics scrape handler wired to it.
func NewTelemetry() (*Telemetry, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return &Telemetry{
		meter:    provider.Meter(meterName),
		provider: provider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Meter returns the meter for creating pipeline instruments.
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// Handler returns the /metrics scrape handler.
func (t *Telemetry) Handler() http.Handler {
	return t.handler
}
