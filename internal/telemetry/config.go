// Package telemetry wires OpenTelemetry trace and metric providers for
// frontdesk. Exporters speak OTLP over gRPC or HTTP.
package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string // grpc or http/protobuf
	ServiceName    string
	ServiceVersion string
	Insecure       bool
	SampleRate     float64
	ExportInterval time.Duration
	ShutdownWait   time.Duration
}

// NewDefaultConfig returns telemetry defaults. Telemetry is off unless the
// observability section enables it.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		ServiceName:    "frontdesk",
		ServiceVersion: "dev",
		Insecure:       true,
		SampleRate:     1.0,
		ExportInterval: 15 * time.Second,
		ShutdownWait:   5 * time.Second,
	}
}

// FromAppConfig maps the observability section onto a telemetry Config.
// Insecure transport is only used for local collectors.
func FromAppConfig(cfg *config.Config, version string) *Config {
	tc := NewDefaultConfig()
	obs := cfg.Observability
	tc.Enabled = obs.EnableTelemetry
	if obs.OTLPEndpoint != "" {
		tc.Endpoint = obs.OTLPEndpoint
	}
	if obs.OTLPProtocol != "" {
		tc.Protocol = obs.OTLPProtocol
	}
	if obs.ServiceName != "" {
		tc.ServiceName = obs.ServiceName
	}
	if version != "" {
		tc.ServiceVersion = version
	}
	tc.Insecure = isLocalEndpoint(stripScheme(tc.Endpoint))
	return tc
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required when telemetry is enabled")
	}
	switch c.Protocol {
	case "", "grpc", "http/protobuf":
	default:
		return fmt.Errorf("unknown otlp protocol %q", c.Protocol)
	}
	if c.Insecure && !isLocalEndpoint(stripScheme(c.Endpoint)) {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %f", c.SampleRate)
	}
	if c.ExportInterval <= 0 || c.ShutdownWait <= 0 {
		return fmt.Errorf("export interval and shutdown wait must be positive")
	}
	return nil
}

func isLocalEndpoint(endpoint string) bool {
	host := endpoint
	if h, _, err := net.SplitHostPort(endpoint); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https://; the OTLP exporters want host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
