// Package config provides configuration loading for frontdesk.
//
// Configuration is assembled from defaults, an optional YAML file and
// environment variables. See LoadWithFile for precedence rules.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete frontdesk configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
	Escalation    EscalationConfig    `koanf:"escalation"`
	Router        RouterConfig        `koanf:"router"`
	Knowledge     KnowledgeConfig     `koanf:"knowledge"`
	LLM           LLMConfig           `koanf:"llm"`
	NATS          NATSConfig          `koanf:"nats"`
	Storage       StorageConfig       `koanf:"storage"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"` // grpc or http/protobuf
}

// LoggingConfig holds the subset of logging settings exposed through config files.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EscalationConfig controls the help request lifecycle.
type EscalationConfig struct {
	// TimeoutWindow is added to the creation time to produce a request deadline.
	TimeoutWindow time.Duration `koanf:"timeout_window"`
	// SweepInterval is how often expired pending requests are swept.
	SweepInterval time.Duration `koanf:"sweep_interval"`
	// Threshold is the confidence below which generative answers escalate.
	Threshold float64 `koanf:"threshold"`
}

// RouterConfig tunes the confidence router.
type RouterConfig struct {
	DirectMatchRatio   float64       `koanf:"direct_match_ratio"`
	DirectConfidence   float64       `koanf:"direct_confidence"`
	DegradedConfidence float64       `koanf:"degraded_confidence"`
	SearchLimit        int           `koanf:"search_limit"`
	GenerativeTimeout  time.Duration `koanf:"generative_timeout"`
}

// KnowledgeConfig tunes the knowledge feedback merger.
type KnowledgeConfig struct {
	DefaultConfidence float64 `koanf:"default_confidence"`
	ReinforcementStep float64 `koanf:"reinforcement_step"`
	Seed              bool    `koanf:"seed"`
}

// LLMConfig selects and configures the generative model client.
type LLMConfig struct {
	Provider    string  `koanf:"provider"` // none, openai, anthropic
	Model       string  `koanf:"model"`
	APIKey      Secret  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	RateLimit   float64 `koanf:"rate_limit"` // requests per second
	Burst       int     `koanf:"burst"`
}

// NATSConfig configures the real-time transport.
type NATSConfig struct {
	URL           string `koanf:"url"`
	Embedded      bool   `koanf:"embedded"`
	EmbeddedPort  int    `koanf:"embedded_port"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver     string `koanf:"driver"` // memory or sqlite
	SQLitePath string `koanf:"sqlite_path"`
}

// Supported LLM providers.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Supported storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            10000,
			ShutdownTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "frontdesk",
			OTLPEndpoint:    "localhost:4317",
			OTLPProtocol:    "grpc",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Escalation: EscalationConfig{
			TimeoutWindow: 10 * time.Minute,
			SweepInterval: 60 * time.Second,
			Threshold:     0.5,
		},
		Router: RouterConfig{
			DirectMatchRatio:   0.5,
			DirectConfidence:   0.9,
			DegradedConfidence: 0.7,
			SearchLimit:        3,
			GenerativeTimeout:  15 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			DefaultConfidence: 0.8,
			ReinforcementStep: 0.1,
			Seed:              true,
		},
		LLM: LLMConfig{
			Provider:    ProviderNone,
			Temperature: 0.3,
			MaxTokens:   1024,
			RateLimit:   5,
			Burst:       2,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Embedded:      true,
			EmbeddedPort:  -1,
			SubjectPrefix: "frontdesk",
		},
		Storage: StorageConfig{
			Driver:     DriverMemory,
			SQLitePath: "frontdesk.db",
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout, timeout window or sweep interval is not positive
//   - A confidence or ratio setting falls outside [0,1]
//   - Storage driver or LLM provider is unknown
//   - A remote LLM provider is selected without an API key
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if c.Escalation.TimeoutWindow <= 0 {
		return errors.New("escalation timeout window must be positive")
	}
	if c.Escalation.SweepInterval < time.Second {
		return fmt.Errorf("escalation sweep interval must be at least 1s, got %s", c.Escalation.SweepInterval)
	}

	unit := map[string]float64{
		"escalation.threshold":         c.Escalation.Threshold,
		"router.direct_match_ratio":    c.Router.DirectMatchRatio,
		"router.direct_confidence":     c.Router.DirectConfidence,
		"router.degraded_confidence":   c.Router.DegradedConfidence,
		"knowledge.default_confidence": c.Knowledge.DefaultConfidence,
		"knowledge.reinforcement_step": c.Knowledge.ReinforcementStep,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if c.Router.SearchLimit < 1 {
		return fmt.Errorf("router search limit must be positive, got %d", c.Router.SearchLimit)
	}
	if c.Router.GenerativeTimeout <= 0 {
		return errors.New("router generative timeout must be positive")
	}

	switch c.LLM.Provider {
	case "", ProviderNone:
	case ProviderOpenAI, ProviderAnthropic:
		if !c.LLM.APIKey.IsSet() {
			return fmt.Errorf("llm api key required for provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite path required for sqlite storage")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if !c.NATS.Embedded && c.NATS.URL == "" {
		return errors.New("nats url required when embedded server is disabled")
	}

	return nil
}
