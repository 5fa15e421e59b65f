// Package config loads service configuration from the environment.
//
// Every service has a well-known default port; any of them can be moved
// with a {SERVICE}_PORT variable. A .env file in the working directory is
// honored when present so local multi-service development needs no shell
// setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default ports for every platform service. The gateway's gRPC listener
// sits at 50051; backends follow.
var servicePorts = map[string]int{
	"gateway":    50051,
	"sessions":   50052,
	"models":     50053,
	"data":       50054,
	"guardrails": 50055,
	"tools":      50056,
	"evaluation": 50057,
	"workflow":   50058,
}

// DefaultHTTPPort is the gateway's external HTTP listener.
const DefaultHTTPPort = 8080

// LoadEnvFile loads a .env file from the working directory if one exists.
// Variables already set in the environment win.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// FromFile overlays a YAML config file onto cfg. Fields present in the
// file replace the env-derived values; absent fields keep them.
func FromFile(path string, cfg any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Port returns the listen port for a named service, honoring a
// {SERVICE}_PORT override (e.g. SESSIONS_PORT=6000).
func Port(service string) (int, error) {
	def, ok := servicePorts[service]
	if !ok {
		return 0, fmt.Errorf("unknown service %q", service)
	}
	return envInt(strings.ToUpper(service)+"_PORT", def), nil
}

// ServerConfig is the listener and concurrency shape shared by every
// service binary.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Workers int    `yaml:"workers"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig configures OTLP span export. Export is disabled while
// Endpoint is empty.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
	Insecure    bool    `yaml:"insecure"`
}

// ProviderConfig holds credentials for one model vendor. A provider is
// configured when its APIKey is non-empty.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether the provider should be constructed.
func (c ProviderConfig) Configured() bool { return c.APIKey != "" }

// GatewayConfig configures the gateway's two listeners and the backend
// addresses it pre-registers.
type GatewayConfig struct {
	Server       ServerConfig      `yaml:"server"`
	HTTPPort     int               `yaml:"http_port"`
	SessionsAddr string            `yaml:"sessions_addr"`
	ModelsAddr   string            `yaml:"models_addr"`
	Workflows    map[string]string `yaml:"workflows"`
	Logging      LoggingConfig     `yaml:"logging"`
	Tracing      TracingConfig     `yaml:"tracing"`
}

// ModelsConfig configures the model service and its provider adapters.
type ModelsConfig struct {
	Server    ServerConfig   `yaml:"server"`
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Logging   LoggingConfig  `yaml:"logging"`
	Tracing   TracingConfig  `yaml:"tracing"`
}

// SessionsConfig configures the session service and its storage backend.
// Backend is "memory" or "postgres".
type SessionsConfig struct {
	Server      ServerConfig  `yaml:"server"`
	Backend     string        `yaml:"backend"`
	DatabaseURL string        `yaml:"database_url"`
	Logging     LoggingConfig `yaml:"logging"`
}

// GatewayFromEnv builds the gateway configuration.
func GatewayFromEnv() (*GatewayConfig, error) {
	port, err := Port("gateway")
	if err != nil {
		return nil, err
	}
	return &GatewayConfig{
		Server: ServerConfig{
			Host:    envString("GATEWAY_HOST", ""),
			Port:    port,
			Workers: envInt("GATEWAY_WORKERS", defaultWorkers),
		},
		HTTPPort:     envInt("GATEWAY_HTTP_PORT", DefaultHTTPPort),
		SessionsAddr: envString("SESSIONS_SERVICE_ADDR", "localhost:50052"),
		ModelsAddr:   envString("MODELS_SERVICE_ADDR", "localhost:50053"),
		Workflows:    parseWorkflows(os.Getenv("GATEWAY_WORKFLOWS")),
		Logging:      loggingFromEnv(),
		Tracing:      tracingFromEnv(),
	}, nil
}

// ModelsFromEnv builds the model service configuration. Provider API keys
// come from the vendors' conventional variables.
func ModelsFromEnv() (*ModelsConfig, error) {
	port, err := Port("models")
	if err != nil {
		return nil, err
	}
	return &ModelsConfig{
		Server: ServerConfig{
			Host:    envString("MODELS_HOST", ""),
			Port:    port,
			Workers: envInt("MODELS_WORKERS", defaultWorkers),
		},
		OpenAI: ProviderConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Anthropic: ProviderConfig{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		},
		Logging: loggingFromEnv(),
		Tracing: tracingFromEnv(),
	}, nil
}

// SessionsFromEnv builds the session service configuration.
func SessionsFromEnv() (*SessionsConfig, error) {
	port, err := Port("sessions")
	if err != nil {
		return nil, err
	}
	cfg := &SessionsConfig{
		Server: ServerConfig{
			Host:    envString("SESSIONS_HOST", ""),
			Port:    port,
			Workers: envInt("SESSIONS_WORKERS", defaultWorkers),
		},
		Backend:     envString("SESSIONS_BACKEND", "memory"),
		DatabaseURL: os.Getenv("SESSIONS_DATABASE_URL"),
		Logging:     loggingFromEnv(),
	}
	if cfg.Backend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("SESSIONS_BACKEND=postgres requires SESSIONS_DATABASE_URL")
	}
	return cfg, nil
}

const defaultWorkers = 16

func loggingFromEnv() LoggingConfig {
	return LoggingConfig{
		Level:  envString("LOG_LEVEL", "info"),
		Format: envString("LOG_FORMAT", "text"),
	}
}

func tracingFromEnv() TracingConfig {
	return TracingConfig{
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SampleRatio: envFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0),
		Insecure:    envString("OTEL_EXPORTER_OTLP_INSECURE", "") == "true",
	}
}

// parseWorkflows parses "path=addr,path=addr" pairs. Malformed pairs are
// skipped rather than fatal so one bad entry doesn't take the gateway down.
func parseWorkflows(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		path, addr, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || path == "" || addr == "" {
			continue
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		out[path] = addr
	}
	return out
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
