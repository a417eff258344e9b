package observability

import (
	"time"
)

// Config holds the OpenTelemetry settings of one process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TracingEnabled bool
	MetricsEnabled bool
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	SamplingRate   float64
	// PIILevel is none, hashed or full; see pkg/telemetry.
	PIILevel string

	TraceBatchTimeout time.Duration
	MetricInterval    time.Duration
}

// DefaultConfig returns defaults with both signals disabled.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:       serviceName,
		ServiceVersion:    "dev",
		Environment:       "development",
		OTLPEndpoint:      "localhost:4318",
		SamplingRate:      1.0,
		PIILevel:          "hashed",
		TraceBatchTimeout: 5 * time.Second,
		MetricInterval:    15 * time.Second,
	}
}
