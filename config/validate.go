package config

import (
	"fmt"
	"net/url"
	"strings"
)

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	registry, err := cfg.Registry.Parse()
	if err != nil {
		return err
	}
	if err := registry.Validate(); err != nil {
		return err
	}
	if registry.Admin.IsZero() {
		return fmt.Errorf("registry: admin must not be zero")
	}
	switch cfg.StorageBackend {
	case "", "leveldb", "bolt":
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
	if strings.TrimSpace(cfg.RPC.ListenAddress) == "" {
		return fmt.Errorf("rpc: listen address required")
	}
	if cfg.RPC.RateLimitPerSec <= 0 || cfg.RPC.RateLimitBurst <= 0 {
		return fmt.Errorf("rpc: rate limit must be positive")
	}
	switch strings.ToLower(cfg.Logging.Env) {
	case "dev", "development", "test", "staging", "prod", "production":
	default:
		return fmt.Errorf("logging: unknown env %q", cfg.Logging.Env)
	}
	if ratio := cfg.Telemetry.TraceSampleRatio; ratio < 0 || ratio > 1 {
		return fmt.Errorf("telemetry: trace sample ratio %v outside [0, 1]", ratio)
	}
	if endpoint := strings.TrimSpace(cfg.Telemetry.OTLPEndpoint); endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return fmt.Errorf("telemetry: invalid otlp endpoint: %w", err)
		}
	}
	return nil
}
