package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFetchesTotal     = "stormtrack.fetches.total"
	metricFetchDuration    = "stormtrack.fetch.duration.seconds"
	metricParseErrorsTotal = "stormtrack.parse.errors.total"
	metricLinesDropped     = "stormtrack.lines.dropped.total"
	metricTasksTotal       = "stormtrack.tasks.total"
	metricTaskDuration     = "stormtrack.task.duration.seconds"
	metricTasksInflight    = "stormtrack.tasks.inflight"
	metricZonesTotal       = "stormtrack.zones.generated.total"
	metricAdvisoriesTotal  = "stormtrack.advisories.ingested.total"

	attrOrigin  = "origin"
	attrOutcome = "outcome"
	attrSource  = "source"
	attrReason  = "reason"
	attrJob     = "job"
	attrResult  = "result"
	attrBasin   = "basin"
	attrZone    = "zone_type"
)

// fetchBucketBoundaries covers 50ms upstream hits through the 30s timeout.
var fetchBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// taskBucketBoundaries covers sub-second ticks through the 30 minute hard deadline.
var taskBucketBoundaries = []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800}

// PipelineMetrics holds the OTel instruments for the ingest and forecast
// pipeline: fetch outcomes, parse rejects, task runs, zone generations.
type PipelineMetrics struct {
	fetchesTotal     metric.Int64Counter
	fetchDuration    metric.Float64Histogram
	parseErrorsTotal metric.Int64Counter
	linesDropped     metric.Int64Counter
	tasksTotal       metric.Int64Counter
	taskDuration     metric.Float64Histogram
	tasksInflight    metric.Int64UpDownCounter
	zonesTotal       metric.Int64Counter
	advisoriesTotal  metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		fetchesTotal:     b.counter(metricFetchesTotal, "Upstream fetches by origin and outcome", "{fetch}"),
		fetchDuration:    b.histogram(metricFetchDuration, "Upstream fetch duration in seconds", "s", fetchBucketBoundaries...),
		parseErrorsTotal: b.counter(metricParseErrorsTotal, "Documents that failed to parse, by source", "{document}"),
		linesDropped:     b.counter(metricLinesDropped, "Lines dropped during parsing or semantic validation", "{line}"),
		tasksTotal:       b.counter(metricTasksTotal, "Scheduled task runs by job and result", "{task}"),
		taskDuration:     b.histogram(metricTaskDuration, "Scheduled task duration in seconds", "s", taskBucketBoundaries...),
		tasksInflight:    b.upDownCounter(metricTasksInflight, "Tasks currently executing", "{task}"),
		zonesTotal:       b.counter(metricZonesTotal, "Watch and warning zones generated", "{zone}"),
		advisoriesTotal:  b.counter(metricAdvisoriesTotal, "New advisories persisted, by basin", "{advisory}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordFetch records one upstream request with its origin host, outcome
// label, and duration.
func (pm *PipelineMetrics) RecordFetch(ctx context.Context, origin, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOrigin, origin),
		attribute.String(attrOutcome, outcome),
	)

	pm.fetchesTotal.Add(ctx, 1, attrs)
	pm.fetchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordParseError records a document that could not be parsed at all.
func (pm *PipelineMetrics) RecordParseError(ctx context.Context, source string) {
	pm.parseErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSource, source),
	))
}

// RecordDroppedLines records lines skipped during parsing or semantic
// validation, labelled by source and drop reason.
func (pm *PipelineMetrics) RecordDroppedLines(ctx context.Context, source, reason string, count int) {
	if count <= 0 {
		return
	}

	pm.linesDropped.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(attrSource, source),
		attribute.String(attrReason, reason),
	))
}

// RecordTask records a finished scheduled task with its job name, result
// label, and duration.
func (pm *PipelineMetrics) RecordTask(ctx context.Context, job, result string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrJob, job),
		attribute.String(attrResult, result),
	)

	pm.tasksTotal.Add(ctx, 1, attrs)
	pm.taskDuration.Record(ctx, duration.Seconds(), attrs)
}

// TrackInflight increments the in-flight task gauge and returns the matching
// decrement.
func (pm *PipelineMetrics) TrackInflight(ctx context.Context, job string) func() {
	attrs := metric.WithAttributes(attribute.String(attrJob, job))
	pm.tasksInflight.Add(ctx, 1, attrs)

	return func() {
		pm.tasksInflight.Add(ctx, -1, attrs)
	}
}

// RecordZone records a generated zone by type.
func (pm *PipelineMetrics) RecordZone(ctx context.Context, zoneType string) {
	pm.zonesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrZone, zoneType),
	))
}

// RecordAdvisories records newly persisted advisories for a basin.
func (pm *PipelineMetrics) RecordAdvisories(ctx context.Context, basin string, count int) {
	if count <= 0 {
		return
	}

	pm.advisoriesTotal.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(attrBasin, basin),
	))
}
