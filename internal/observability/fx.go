package observability

import (
	"github.com/smallbiznis/fieldrunner/internal/observability/logger"
	"github.com/smallbiznis/fieldrunner/internal/observability/metrics"
	"github.com/smallbiznis/fieldrunner/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the zap logger, the otel tracer and meter providers, and
// the prometheus collectors for HTTP traffic and webhook ingestion.
var Module = fx.Module("observability",
	fx.Provide(NewConfig),
	fx.Provide(
		provideLoggerConfig,
		logger.New,
	),
	fx.Provide(
		provideTracingConfig,
		tracing.NewProvider,
	),
	fx.Provide(
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.WebhookWithConfig,
	),
	fx.Invoke(logTelemetry),
)

func provideLoggerConfig(cfg Config) logger.Config {
	debug := cfg.Debug()
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               debug,
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

// logTelemetry forces the tracer provider to be built at startup and
// records where spans and metrics are exported.
func logTelemetry(cfg Config, _ *sdktrace.TracerProvider, _ *metrics.WebhookMetrics, log *zap.Logger) {
	if !cfg.OtelEnabled {
		log.Info("otlp export disabled, serving prometheus metrics only")
		return
	}
	log.Info("otlp export enabled",
		zap.String("endpoint", cfg.OtelExporterEndpoint),
		zap.String("protocol", cfg.OtelExporterProtocol),
		zap.Float64("sampling_ratio", cfg.OtelSamplingRatio),
	)
}
