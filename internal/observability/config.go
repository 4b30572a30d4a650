package observability

import (
	"strings"

	"github.com/smallbiznis/fieldrunner/internal/config"
)

const defaultServiceName = "fieldrunner"

// Config is the part of the application config the telemetry stack reads.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// NewConfig derives telemetry settings from the loaded application config.
func NewConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	telemetry := cfg.Telemetry

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             telemetry.LogLevel,
		LogFormat:            telemetry.LogFormat,
		OtelEnabled:          telemetry.OTLPEnabled,
		OtelExporterEndpoint: telemetry.OTLPEndpoint,
		OtelExporterProtocol: telemetry.OTLPProtocol,
		OtelSamplingRatio:    telemetry.SamplingRatio,
	}
}

// Debug turns on verbose logging and gin debug mode outside production
// environments or when the log level asks for it.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
