package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/spec-kit/presence-auth-service"

// Metrics holds the service's OpenTelemetry instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	meter           metric.Meter
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	errors          metric.Int64Counter
	presenceExpired metric.Int64Counter
}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Handled HTTP requests"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	errorsCounter, err := meter.Int64Counter("http.server.errors",
		metric.WithDescription("HTTP requests answered with an error body"))
	if err != nil {
		return nil, err
	}
	expired, err := meter.Int64Counter("presence.expired",
		metric.WithDescription("Presence entries removed by the staleness sweep"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:           meter,
		requests:        requests,
		requestDuration: duration,
		errors:          errorsCounter,
		presenceExpired: expired,
	}, nil
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(ctx context.Context, route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.String("http.status_code", strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
}

// RecordError counts an error response by code.
func (m *Metrics) RecordError(ctx context.Context, route, method, code string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.String("error.code", code),
	))
}

// RecordPresenceExpired counts entries dropped by a sweep.
func (m *Metrics) RecordPresenceExpired(ctx context.Context, removed int) {
	if m == nil || removed == 0 {
		return
	}
	m.presenceExpired.Add(ctx, int64(removed))
}

// ObserveOnlineUsers registers a gauge reporting count() at collection time.
func (m *Metrics) ObserveOnlineUsers(count func() int) (metric.Registration, error) {
	if m == nil {
		return nil, nil
	}
	gauge, err := m.meter.Int64ObservableGauge("presence.online",
		metric.WithDescription("Users currently considered online"))
	if err != nil {
		return nil, err
	}
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(count()))
		return nil
	}, gauge)
}
