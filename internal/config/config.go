package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Catalog    CatalogConfig    `mapstructure:"catalog" yaml:"catalog"`
	Layout     LayoutConfig     `mapstructure:"layout" yaml:"layout"`
	CORS       CORSConfig       `mapstructure:"cors" yaml:"cors"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket" yaml:"websocket"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendValkey = "valkey"
)

// StoreConfig selects and configures the dashboard record store
type StoreConfig struct {
	Backend  string        `mapstructure:"backend" yaml:"backend"` // memory | bolt | valkey
	BoltPath string        `mapstructure:"bolt_path" yaml:"bolt_path"`
	Valkey   ValkeyConfig  `mapstructure:"valkey" yaml:"valkey"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	// AutoSwap starts on the in-memory store and switches to Valkey once
	// it answers. Only meaningful with backend valkey.
	AutoSwap bool `mapstructure:"auto_swap" yaml:"auto_swap"`
}

// ValkeyConfig is either a single node (Addr) or a cluster (Nodes, or
// nodes resolved through Discovery).
type ValkeyConfig struct {
	Addr      string          `mapstructure:"addr" yaml:"addr"`
	Nodes     []string        `mapstructure:"nodes" yaml:"nodes"`
	Password  string          `mapstructure:"password" yaml:"password"`
	DB        int             `mapstructure:"db" yaml:"db"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
}

// DiscoveryConfig resolves cluster nodes from DNS at startup, e.g. a
// headless service listing the Valkey pods.
type DiscoveryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Service string `mapstructure:"service" yaml:"service"` // e.g. valkey.db.svc.cluster.local
	Port    int    `mapstructure:"port" yaml:"port"`
	UseSRV  bool   `mapstructure:"use_srv" yaml:"use_srv"` // query _redis._tcp.<service>
}

// CatalogConfig points at an optional chart template file layered over
// the built-in templates.
type CatalogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

type LayoutConfig struct {
	// CoalesceWindow is the quiet period after the last layout change
	// before it is persisted.
	CoalesceWindow time.Duration `mapstructure:"coalesce_window" yaml:"coalesce_window"`
}

// CORSConfig handles Cross-Origin Resource Sharing
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

type WebSocketConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	ReadBufferSize  int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PingInterval    int  `mapstructure:"ping_interval" yaml:"ping_interval"` // seconds
	MaxMessageSize  int  `mapstructure:"max_message_size" yaml:"max_message_size"`
}

// MonitoringConfig handles self-monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"` // host:port
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
}
