package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	envEndpoint    = "FORGE_OTEL_ENDPOINT"
	envInsecure    = "FORGE_OTEL_INSECURE"
	envService     = "FORGE_OTEL_SERVICE"
	envDialTimeout = "FORGE_OTEL_DIAL_TIMEOUT"
	envHeaders     = "FORGE_OTEL_HEADERS"

	DefaultServiceName = "forge"
)

// Config describes the OTLP/gRPC exporter. An empty Endpoint disables tracing.
type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	DialTimeout time.Duration
	Headers     map[string]string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// ConfigFromEnv reads FORGE_OTEL_* variables through getenv. Malformed values
// fall back to defaults rather than failing startup.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{
		Endpoint:    strings.TrimSpace(getenv(envEndpoint)),
		ServiceName: strings.TrimSpace(getenv(envService)),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if raw := strings.TrimSpace(getenv(envInsecure)); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Insecure = v
		}
	}
	if raw := strings.TrimSpace(getenv(envDialTimeout)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.DialTimeout = d
		}
	}
	if headers, err := ParseHeaders(getenv(envHeaders)); err == nil {
		cfg.Headers = headers
	}
	return cfg
}

// ParseHeaders parses "k=v, k2=v2". Blank input yields nil.
func ParseHeaders(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header pair %q", part)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
