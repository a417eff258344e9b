package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/madgic/madgic-chat/internal/domain/transcript"
	"github.com/madgic/madgic-chat/pkg/telemetry"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds the environment driven configuration for madgic-chat.
//
// Values come from, highest priority first: the process environment, the .env
// files loaded by the CLI, the YAML file named by CONFIG_FILE, and the defaults
// in the struct tags.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"madgic-chat" yaml:"SERVICE_NAME"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development" yaml:"ENVIRONMENT"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8190" yaml:"HTTP_PORT"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info" yaml:"LOG_LEVEL" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false" yaml:"ENABLE_TRACING"`
	EnableMetrics   bool          `env:"ENABLE_OTEL_METRICS" envDefault:"false" yaml:"ENABLE_OTEL_METRICS"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"" yaml:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" yaml:"SHUTDOWN_TIMEOUT"`

	APIURL            string        `env:"API_URL" envDefault:"http://localhost:8000" yaml:"API_URL"`
	APIRequestTimeout time.Duration `env:"API_REQUEST_TIMEOUT" envDefault:"120s" yaml:"API_REQUEST_TIMEOUT"`
	APIStreamTimeout  time.Duration `env:"API_STREAM_TIMEOUT" envDefault:"0s" yaml:"API_STREAM_TIMEOUT"`

	DefaultMode       string `env:"DEFAULT_MODE" envDefault:"agent" yaml:"DEFAULT_MODE" jsonschema:"enum=agent,enum=chatbot"`
	DefaultStreamMode string `env:"DEFAULT_STREAM_MODE" envDefault:"stream" yaml:"DEFAULT_STREAM_MODE" jsonschema:"enum=stream,enum=normal"`
	SSEBufferFrames   bool   `env:"SSE_BUFFER_FRAMES" envDefault:"true" yaml:"SSE_BUFFER_FRAMES"`
	QueryModel        string `env:"QUERY_MODEL" envDefault:"" yaml:"QUERY_MODEL"`
	QueryTemperature  string `env:"QUERY_TEMPERATURE" envDefault:"" yaml:"QUERY_TEMPERATURE"`

	SessionStore   string        `env:"SESSION_STORE" envDefault:"memory" yaml:"SESSION_STORE" jsonschema:"enum=memory,enum=postgres"`
	DatabaseURL    string        `env:"DATABASE_URL" envDefault:"" yaml:"DATABASE_URL"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5" yaml:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15" yaml:"DB_MAX_OPEN_CONNS"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m" yaml:"DB_CONN_MAX_LIFETIME"`

	WorkerCount     int           `env:"WORKER_COUNT" envDefault:"4" yaml:"WORKER_COUNT"`
	WorkerQueueSize int           `env:"WORKER_QUEUE_SIZE" envDefault:"64" yaml:"WORKER_QUEUE_SIZE"`
	TurnTimeout     time.Duration `env:"TURN_TIMEOUT" envDefault:"10m" yaml:"TURN_TIMEOUT"`

	PIILevel string `env:"PII_LEVEL" envDefault:"hashed" yaml:"PII_LEVEL" jsonschema:"enum=none,enum=hashed,enum=full"`
}

// Load parses the process environment into Config.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"), environ())
}

// LoadFrom parses environ into Config, with values from the YAML file at path
// (if any) underneath it.
func LoadFrom(path string, environ map[string]string) (*Config, error) {
	merged := map[string]string{}
	if path != "" {
		fileValues, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileValues {
			merged[k] = v
		}
	}
	for k, v := range environ {
		merged[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if !transcript.Mode(c.DefaultMode).Valid() {
		return fmt.Errorf("DEFAULT_MODE must be agent or chatbot, got %q", c.DefaultMode)
	}
	if !transcript.StreamMode(c.DefaultStreamMode).Valid() {
		return fmt.Errorf("DEFAULT_STREAM_MODE must be stream or normal, got %q", c.DefaultStreamMode)
	}
	switch c.SessionStore {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when SESSION_STORE is postgres")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or postgres, got %q", c.SessionStore)
	}
	if _, err := c.Temperature(); err != nil {
		return err
	}
	if _, err := telemetry.ParseLevel(c.PIILevel); err != nil {
		return fmt.Errorf("PII_LEVEL: %w", err)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Temperature returns the parsed QUERY_TEMPERATURE, or nil when unset.
func (c *Config) Temperature() (*float64, error) {
	if strings.TrimSpace(c.QueryTemperature) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(c.QueryTemperature), 64)
	if err != nil {
		return nil, fmt.Errorf("QUERY_TEMPERATURE: %w", err)
	}
	return &v, nil
}

// YAML renders the effective configuration with env var names as keys.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

func environ() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}
