package observability

import (
	"testing"

	"github.com/smallbiznis/energyscope/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{AppName: " ", Environment: "local"})
	assert.Equal(t, "energyscope", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Zero(t, cfg.OtelSamplingRatio)
	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigNormalizes(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:           "kpi",
		Environment:       "production",
		LogLevel:          " DEBUG ",
		LogFormat:         "Console",
		OTLPEnabled:       true,
		OTLPProtocol:      "http/protobuf",
		OTLPSamplingRatio: 3,
	})
	assert.Equal(t, "kpi", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, float64(1), cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigUnknownValues(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "production", LogLevel: "loud", LogFormat: "xml", OTLPProtocol: "udp"})
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.False(t, cfg.Debug())
}
