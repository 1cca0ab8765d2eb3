package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/slatedb/slatesink"

// Recorder records committer metrics.
// Use New() for OTel metrics or Noop{} when disabled.
type Recorder interface {
	// RecordCommit records one table transaction with the number of data and
	// delete files it carried.
	RecordCommit(ctx context.Context, operation string, dataFiles, deleteFiles int, duration time.Duration, err error)

	// RecordEmptySkip records a checkpoint whose empty transaction was skipped.
	RecordEmptySkip(ctx context.Context)

	// RecordManifestCleanupFailure records a manifest file that could not be
	// deleted after its checkpoint was committed.
	RecordManifestCleanupFailure(ctx context.Context)

	// RecordRecovery records the action taken by startup recovery.
	RecordRecovery(ctx context.Context, action string)
}

type otelRecorder struct {
	commits         metric.Int64Counter
	commitErrors    metric.Int64Counter
	commitLatency   metric.Float64Histogram
	committedFiles  metric.Int64Counter
	emptySkips      metric.Int64Counter
	cleanupFailures metric.Int64Counter
	recoveries      metric.Int64Counter
}

// New returns a Recorder backed by the given meter provider, or the global
// provider when mp is nil.
func New(mp metric.MeterProvider) (Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	commits, err := meter.Int64Counter("slatesink.commit.count",
		metric.WithDescription("Number of table transactions committed"),
	)
	if err != nil {
		return nil, err
	}

	commitErrors, err := meter.Int64Counter("slatesink.commit.errors",
		metric.WithDescription("Number of table transactions that failed"),
	)
	if err != nil {
		return nil, err
	}

	commitLatency, err := meter.Float64Histogram("slatesink.commit.latency_ms",
		metric.WithDescription("Table transaction latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	committedFiles, err := meter.Int64Counter("slatesink.commit.files",
		metric.WithDescription("Number of files committed, by content"),
	)
	if err != nil {
		return nil, err
	}

	emptySkips, err := meter.Int64Counter("slatesink.commit.empty_skipped",
		metric.WithDescription("Number of empty checkpoints that did not produce a snapshot"),
	)
	if err != nil {
		return nil, err
	}

	cleanupFailures, err := meter.Int64Counter("slatesink.manifest.cleanup_failures",
		metric.WithDescription("Number of manifest files that could not be deleted after commit"),
	)
	if err != nil {
		return nil, err
	}

	recoveries, err := meter.Int64Counter("slatesink.recovery.count",
		metric.WithDescription("Number of startup recoveries, by action"),
	)
	if err != nil {
		return nil, err
	}

	return &otelRecorder{
		commits:         commits,
		commitErrors:    commitErrors,
		commitLatency:   commitLatency,
		committedFiles:  committedFiles,
		emptySkips:      emptySkips,
		cleanupFailures: cleanupFailures,
		recoveries:      recoveries,
	}, nil
}

func (m *otelRecorder) RecordCommit(ctx context.Context, operation string, dataFiles, deleteFiles int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	m.commitLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.commitErrors.Add(ctx, 1, attrs)
		return
	}
	m.commits.Add(ctx, 1, attrs)
	m.committedFiles.Add(ctx, int64(dataFiles), metric.WithAttributes(
		attribute.String("operation", operation), attribute.String("content", "data")))
	m.committedFiles.Add(ctx, int64(deleteFiles), metric.WithAttributes(
		attribute.String("operation", operation), attribute.String("content", "deletes")))
}

func (m *otelRecorder) RecordEmptySkip(ctx context.Context) {
	m.emptySkips.Add(ctx, 1)
}

func (m *otelRecorder) RecordManifestCleanupFailure(ctx context.Context) {
	m.cleanupFailures.Add(ctx, 1)
}

func (m *otelRecorder) RecordRecovery(ctx context.Context, action string) {
	m.recoveries.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}
