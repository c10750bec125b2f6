// Package observability provides structured logging, Prometheus-exported
// OpenTelemetry metrics, and the diagnostics HTTP endpoints for stormtrack.
package observability

import (
	"log/slog"
	"os"
)

// meterName is the OTel instrumentation scope for stormtrack instruments.
const meterName = "stormtrack"

// NewLogger builds the process-wide slog logger. JSON output is used for
// deployed instances; the text handler is for interactive runs.
func NewLogger(level slog.Level, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
