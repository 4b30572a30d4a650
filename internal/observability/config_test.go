package observability

import (
	"testing"

	"github.com/smallbiznis/fieldrunner/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigFromApplicationConfig(t *testing.T) {
	cfg := NewConfig(config.Config{
		Environment: "production",
		AppVersion:  "1.2.3",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "info",
			LogFormat:     "json",
			OTLPEnabled:   true,
			OTLPEndpoint:  "collector:4317",
			OTLPProtocol:  "grpc",
			SamplingRatio: 0.25,
		},
	})

	assert.Equal(t, "fieldrunner", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.25, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestNewConfigKeepsAppName(t *testing.T) {
	cfg := NewConfig(config.Config{AppName: "sync-worker"})
	assert.Equal(t, "sync-worker", cfg.ServiceName)
}

func TestDebug(t *testing.T) {
	for _, env := range []string{"dev", "Development", "local", "test"} {
		assert.True(t, Config{Environment: env}.Debug(), env)
	}
	assert.False(t, Config{Environment: "staging"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
}

func TestProvideLoggerConfigFollowsDebug(t *testing.T) {
	cfg := provideLoggerConfig(Config{ServiceName: "fieldrunner", Environment: "local", LogLevel: "info"})
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.IncludeStackOnError)

	cfg = provideLoggerConfig(Config{ServiceName: "fieldrunner", Environment: "production", LogLevel: "warn"})
	assert.False(t, cfg.Debug)
	assert.Equal(t, "warn", cfg.Level)
}
