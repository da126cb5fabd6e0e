package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecordsInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(provider)
	require.NoError(t, err)

	online := 3
	_, err = m.ObserveOnlineUsers(func() int { return online })
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRequest(ctx, "/api/users/login", "POST", 200, 5*time.Millisecond)
	m.RecordRequest(ctx, "/api/users/login", "POST", 401, 2*time.Millisecond)
	m.RecordError(ctx, "/api/users/login", "POST", "INVALID_CREDENTIALS")
	m.RecordPresenceExpired(ctx, 2)
	m.RecordPresenceExpired(ctx, 0)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["http.server.requests"]))
	assert.Equal(t, int64(1), sumOf(t, data["http.server.errors"]))
	assert.Equal(t, int64(2), sumOf(t, data["presence.expired"]))

	gauge, ok := data["presence.online"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordRequest(ctx, "/", "GET", 200, time.Millisecond)
		m.RecordError(ctx, "/", "GET", "X")
		m.RecordPresenceExpired(ctx, 1)
		_, _ = m.ObserveOnlineUsers(func() int { return 0 })
	})
}
