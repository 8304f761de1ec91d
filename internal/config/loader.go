package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from various sources with priority order:
// 1. Environment variables
// 2. Configuration file (config.yaml, or the file named by CONFIG_PATH)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/dashboard-core/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("DASHBOARD")

	setDefaults(v)

	// Read configuration file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// ConfigFileUsed reports which file Load would read, or "" when none is
// found. The catalog watcher and the config watcher use it.
func ConfigFileUsed() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	for _, dir := range []string{"/etc/dashboard-core/", "./configs/", "./"} {
		p := dir + "config.yaml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// setDefaults sets reasonable default values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Store defaults
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.bolt_path", "dashboards.db")
	v.SetDefault("store.valkey.addr", "localhost:6379")
	v.SetDefault("store.valkey.db", 0)
	v.SetDefault("store.valkey.discovery.enabled", false)
	v.SetDefault("store.valkey.discovery.port", 6379)
	v.SetDefault("store.lock_ttl", "5s")
	v.SetDefault("store.auto_swap", false)

	// Catalog defaults
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.watch", false)

	v.SetDefault("layout.coalesce_window", "500ms")

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 3600)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.ping_interval", 30)
	v.SetDefault("websocket.max_message_size", 1048576) // 1MB

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "dashboard-core")
}

// overrideWithEnvVars explicitly handles environment variable overrides
func overrideWithEnvVars(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	// Valkey single node; setting it implies the valkey backend
	if addr := os.Getenv("VALKEY_ADDR"); addr != "" {
		v.Set("store.valkey.addr", addr)
		v.Set("store.backend", BackendValkey)
	}

	// Valkey cluster nodes
	if nodes := os.Getenv("VALKEY_NODES"); nodes != "" {
		list := strings.Split(nodes, ",")
		for i, node := range list {
			list[i] = strings.TrimSpace(node)
		}
		v.Set("store.valkey.nodes", list)
		v.Set("store.backend", BackendValkey)
	}

	if pw := os.Getenv("VALKEY_PASSWORD"); pw != "" {
		v.Set("store.valkey.password", pw)
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		v.Set("tracing.otlp_endpoint", strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://"))
		v.Set("tracing.enabled", true)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	switch config.Store.Backend {
	case BackendMemory:
	case BackendBolt:
		if strings.TrimSpace(config.Store.BoltPath) == "" {
			return fmt.Errorf("store.bolt_path is required for the bolt backend")
		}
	case BackendValkey:
		if d := config.Store.Valkey.Discovery; d.Enabled {
			if strings.TrimSpace(d.Service) == "" {
				return fmt.Errorf("store.valkey.discovery.service is required when discovery is enabled")
			}
			if !d.UseSRV && (d.Port < 1 || d.Port > 65535) {
				return fmt.Errorf("store.valkey.discovery.port must be between 1 and 65535, got %d", d.Port)
			}
		} else if len(config.Store.Valkey.Nodes) > 0 {
			for _, node := range config.Store.Valkey.Nodes {
				if err := ValidateRedisNode(node); err != nil {
					return err
				}
			}
		} else if err := ValidateRedisNode(config.Store.Valkey.Addr); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown store backend %q (want memory, bolt or valkey)", config.Store.Backend)
	}

	if config.Store.LockTTL <= 0 {
		return fmt.Errorf("store.lock_ttl must be positive")
	}
	if config.Layout.CoalesceWindow < 0 {
		return fmt.Errorf("layout.coalesce_window cannot be negative")
	}

	if config.Tracing.Enabled {
		if err := ValidateGRPCEndpoint(config.Tracing.OTLPEndpoint); err != nil {
			return fmt.Errorf("tracing.otlp_endpoint: %w", err)
		}
	}

	return nil
}
