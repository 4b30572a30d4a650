package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level OTLP instruments.
type Metrics struct {
	webhookDeliveries    metric.Int64Counter
	directoryWrites      metric.Int64Counter
	sessionVerifications metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "fieldrunner"
	}
	meter := provider.Meter(name)

	webhookDeliveries, err := meter.Int64Counter("fieldrunner_webhook_deliveries_total")
	if err != nil {
		return nil, err
	}
	directoryWrites, err := meter.Int64Counter("fieldrunner_directory_writes_total")
	if err != nil {
		return nil, err
	}
	sessionVerifications, err := meter.Int64Counter("fieldrunner_session_verifications_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookDeliveries:    webhookDeliveries,
		directoryWrites:      directoryWrites,
		sessionVerifications: sessionVerifications,
	}, nil
}

// RecordWebhookDelivery counts a webhook delivery by its final outcome.
func (m *Metrics) RecordWebhookDelivery(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.webhookDeliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDirectoryWrite counts upserts and soft deletes per entity.
func (m *Metrics) RecordDirectoryWrite(ctx context.Context, entity, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity", strings.TrimSpace(entity)),
		attribute.String("operation", strings.TrimSpace(operation)),
	)
	m.directoryWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSessionVerification counts bearer token checks.
func (m *Metrics) RecordSessionVerification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.sessionVerifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Provider ids, user ids and org ids stay out of metric labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"event_type":  {},
	"outcome":     {},
	"entity":      {},
	"operation":   {},
	"status_code": {},
	"route":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
