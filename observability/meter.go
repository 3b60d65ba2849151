package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/chatstream/logger"
)

// Stream kinds used as the "kind" attribute.
const (
	KindSSE   = "sse"
	KindLines = "lines"
)

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.MetricInterval.String(),
	))

	return mp, nil
}

// Meter returns the module's meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// StreamMetrics holds the instruments updated by the stream decoders and the
// relay. All methods are safe on a nil receiver.
type StreamMetrics struct {
	bytesTotal    metric.Int64Counter
	linesTotal    metric.Int64Counter
	eventsTotal   metric.Int64Counter
	itemsTotal    metric.Int64Counter
	cancellations metric.Int64Counter
	errorTotal    metric.Int64Counter
	relayActive   metric.Int64UpDownCounter
	relayDuration metric.Float64Histogram
}

// NewStreamMetrics creates the stream instruments on the given meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	m := &StreamMetrics{}
	var err error

	if m.bytesTotal, err = meter.Int64Counter("chatstream.bytes",
		metric.WithDescription("Response bytes pulled from byte sources"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("creating chatstream.bytes counter: %w", err)
	}
	if m.linesTotal, err = meter.Int64Counter("chatstream.lines",
		metric.WithDescription("Lines produced by the line decoder"),
	); err != nil {
		return nil, fmt.Errorf("creating chatstream.lines counter: %w", err)
	}
	if m.eventsTotal, err = meter.Int64Counter("chatstream.events",
		metric.WithDescription("Server-sent events decoded"),
	); err != nil {
		return nil, fmt.Errorf("creating chatstream.events counter: %w", err)
	}
	if m.itemsTotal, err = meter.Int64Counter("chatstream.items",
		metric.WithDescription("Items yielded to stream consumers"),
	); err != nil {
		return nil, fmt.Errorf("creating chatstream.items counter: %w", err)
	}
	if m.cancellations, err = meter.Int64Counter("chatstream.cancellations",
		metric.WithDescription("Streams stopped before exhaustion"),
	); err != nil {
		return nil, fmt.Errorf("creating chatstream.cancellations counter: %w", err)
	}
	if m.errorTotal, err = meter.Int64Counter("chatstream.errors",
		metric.WithDescription("Stream errors by code"),
	); err != nil {
		return nil, fmt.Errorf("creating chatstream.errors counter: %w", err)
	}
	if m.relayActive, err = meter.Int64UpDownCounter("chatstream.relay.active",
		metric.WithDescription("Relays currently streaming to a client"),
	); err != nil {
		return nil, fmt.Errorf("creating chatstream.relay.active gauge: %w", err)
	}
	if m.relayDuration, err = meter.Float64Histogram("chatstream.relay.duration",
		metric.WithDescription("Duration of relayed streams in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating chatstream.relay.duration histogram: %w", err)
	}
	return m, nil
}

func kindAttr(kind string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("kind", kind))
}

// RecordBytes counts n response bytes.
func (m *StreamMetrics) RecordBytes(ctx context.Context, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTotal.Add(ctx, int64(n), kindAttr(kind))
}

// RecordLines counts n decoded lines.
func (m *StreamMetrics) RecordLines(ctx context.Context, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.linesTotal.Add(ctx, int64(n), kindAttr(kind))
}

// RecordEvent counts one decoded event by its type.
func (m *StreamMetrics) RecordEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
}

// RecordItem counts one item yielded to a consumer.
func (m *StreamMetrics) RecordItem(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.itemsTotal.Add(ctx, 1, kindAttr(kind))
}

// RecordCancellation counts a stream stopped before exhaustion.
func (m *StreamMetrics) RecordCancellation(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.cancellations.Add(ctx, 1, kindAttr(kind))
}

// RecordError counts a stream error by its code.
func (m *StreamMetrics) RecordError(ctx context.Context, kind, code string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("code", code),
	))
}

// RecordRelayStart increments the active relay count.
func (m *StreamMetrics) RecordRelayStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.relayActive.Add(ctx, 1)
}

// RecordRelayEnd decrements active relays and records the relay duration.
func (m *StreamMetrics) RecordRelayEnd(ctx context.Context, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.relayActive.Add(ctx, -1)
	m.relayDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}
