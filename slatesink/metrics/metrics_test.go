package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupRecorder(t *testing.T) (Recorder, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	r, err := New(provider)
	require.NoError(t, err)
	return r, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordCommit(t *testing.T) {
	r, reader := setupRecorder(t)
	ctx := context.Background()

	r.RecordCommit(ctx, "append", 3, 0, 12*time.Millisecond, nil)
	r.RecordCommit(ctx, "delta", 1, 2, 5*time.Millisecond, nil)
	r.RecordCommit(ctx, "append", 1, 0, time.Millisecond, errors.New("conflict"))

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "slatesink.commit.count")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "slatesink.commit.errors")))
	assert.Equal(t, int64(6), sumOf(t, findMetric(rm, "slatesink.commit.files")))

	latency := findMetric(rm, "slatesink.commit.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestRecordCounters(t *testing.T) {
	r, reader := setupRecorder(t)
	ctx := context.Background()

	r.RecordEmptySkip(ctx)
	r.RecordEmptySkip(ctx)
	r.RecordManifestCleanupFailure(ctx)
	r.RecordRecovery(ctx, "rollback")

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "slatesink.commit.empty_skipped")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "slatesink.manifest.cleanup_failures")))

	recoveries := findMetric(rm, "slatesink.recovery.count")
	require.NotNil(t, recoveries)
	sum := recoveries.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	action, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("action"))
	require.True(t, ok)
	assert.Equal(t, "rollback", action.AsString())
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	ctx := context.Background()
	r.RecordCommit(ctx, "append", 1, 0, time.Second, nil)
	r.RecordEmptySkip(ctx)
	r.RecordManifestCleanupFailure(ctx)
	r.RecordRecovery(ctx, "none")
}
