package config

import "time"

// Config is the root configuration structure for rotor.
type Config struct {
	// Proxy contains the inbound HTTP server configuration.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream describes the API that requests are forwarded to.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Auth lists the user keys that unlock the credential pool and the
	// admin API.
	Auth AuthConfig `yaml:"auth"`

	// Storage selects and configures the credential store.
	Storage StorageConfig `yaml:"storage"`

	// Bootstrap lists credentials registered or removed at startup.
	Bootstrap BootstrapConfig `yaml:"bootstrap"`

	// Telemetry contains logging, metrics, tracing and pool report settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// PathPrefix is the path under which upstream API calls are accepted.
	// It is stripped before forwarding.
	// Default: "/v1beta"
	PathPrefix string `yaml:"path_prefix"`

	// MaxBodyBytes bounds buffered request bodies.
	// Default: 10MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 60s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response. Zero disables it, which is
	// required for long event streams.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes bounds request headers.
	// Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS configures cross-origin access.
	CORS CORSConfig `yaml:"cors"`

	// TLS optionally terminates TLS on the listener.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures listener TLS.
type TLSConfig struct {
	// Enabled serves HTTPS instead of HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM certificate chain. It is reloaded on change.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// UpstreamConfig describes the upstream API.
type UpstreamConfig struct {
	// BaseURL is prepended to the forwarded path.
	// Default: "https://generativelanguage.googleapis.com/v1beta"
	BaseURL string `yaml:"base_url"`

	// AttemptTimeout bounds one upstream attempt up to its response
	// headers (streams) or its full body (buffered calls).
	// Default: 120s
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// MaxIdleConns is the size of the upstream connection pool.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost bounds idle connections to the upstream host.
	// Default: 32
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout closes idle upstream connections.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// AuthConfig holds the trusted user keys.
type AuthConfig struct {
	// UserKeys are the keys callers present to use the pool. The admin API
	// accepts any of them as the basic auth password.
	UserKeys []string `yaml:"user_keys"`
}

// StorageConfig selects the credential store backend.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig configures the SQLite credential store.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/keys.db"
	Path string `yaml:"path"`

	// Driver is "sqlite" (modernc.org/sqlite, pure Go) or "sqlite3"
	// (github.com/mattn/go-sqlite3, cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// BootstrapConfig lists credentials applied at startup.
type BootstrapConfig struct {
	// Keys are registered if absent.
	Keys []string `yaml:"keys"`

	// RemoveKeys are marked removed. Rows are never deleted.
	RemoveKeys []string `yaml:"remove_keys"`

	// KeysFile is an optional file with one key per line. A leading "-"
	// marks a removal and "#" starts a comment.
	KeysFile string `yaml:"keys_file"`

	// Watch re-applies KeysFile when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce coalesces bursts of file events.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	PoolReport PoolReportConfig `yaml:"pool_report"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks credentials in log output.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// File writes logs to a rotating file instead of stderr.
	File LogFileConfig `yaml:"file"`
}

// LogFileConfig configures log file rotation.
type LogFileConfig struct {
	// Path of the log file. Empty logs to stderr.
	Path string `yaml:"path"`

	// MaxSizeMB rotates the file at this size.
	// Default: 100
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	// Default: 5
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays removes rotated files older than this.
	// Default: 30
	MaxAgeDays int `yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `yaml:"compress"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls metric collection and the metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "rotor"
	Namespace string `yaml:"namespace"`

	// Subsystem is inserted between namespace and metric name.
	Subsystem string `yaml:"subsystem"`

	// AttemptDurationBuckets are the upstream attempt latency buckets in
	// seconds.
	AttemptDurationBuckets []float64 `yaml:"attempt_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled by the "ratio" sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter selects the span exporter. Only "otlp" (gRPC) is supported.
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service.name resource attribute.
	// Default: "rotor"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds span export calls.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// PoolReportConfig configures the periodic pool snapshot.
type PoolReportConfig struct {
	// Enabled turns the report on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor such as "@every 1m".
	// Default: "@every 1m"
	Schedule string `yaml:"schedule"`
}
