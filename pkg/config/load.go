package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every structured environment override.
const EnvPrefix = "ROTOR_"

// Environment variables kept for compatibility with existing deployments.
// List values are separated by "|".
const (
	EnvUserKeys   = "USER_KEYS"
	EnvGoogleKeys = "GOOGLE_KEYS"
	EnvRemoveKeys = "REMOVE_GOOGLE_KEYS"
	EnvLogLevel   = "LOG_LEVEL"
)

// Load builds the configuration from defaults, an optional YAML file, a
// .env file in the working directory and environment variables, in that
// order of precedence (later wins). An empty path or a missing file yields
// the defaults. The result is validated.
func Load(path string) (*Config, error) {
	// A .env file is optional; variables already set are not replaced.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ValidationError{Errors: []FieldError{{Field: ".env", Message: err.Error()}}}
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the YAML file at path over Default without consulting the
// environment and without validating. An empty path or a missing file
// yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Malformed
// values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid duration %q", v)})
			return
		}
		*dst = d
	}
	boolean := func(name string, dst *bool) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid boolean %q", v)})
			return
		}
		*dst = b
	}
	int64v := func(name string, dst *int64) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid integer %q", v)})
			return
		}
		*dst = n
	}

	// Proxy overrides
	str("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	str("PROXY_PATH_PREFIX", &cfg.Proxy.PathPrefix)
	int64v("PROXY_MAX_BODY_BYTES", &cfg.Proxy.MaxBodyBytes)
	dur("PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	dur("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	dur("PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	dur("PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	boolean("PROXY_CORS_ENABLED", &cfg.Proxy.CORS.Enabled)
	boolean("PROXY_TLS_ENABLED", &cfg.Proxy.TLS.Enabled)
	str("PROXY_TLS_CERT_FILE", &cfg.Proxy.TLS.CertFile)
	str("PROXY_TLS_KEY_FILE", &cfg.Proxy.TLS.KeyFile)

	// Upstream overrides
	str("UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	dur("UPSTREAM_ATTEMPT_TIMEOUT", &cfg.Upstream.AttemptTimeout)

	// Storage overrides
	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	str("STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	boolean("STORAGE_SQLITE_WAL_MODE", &cfg.Storage.SQLite.WALMode)

	// Bootstrap overrides
	str("BOOTSTRAP_KEYS_FILE", &cfg.Bootstrap.KeysFile)
	boolean("BOOTSTRAP_WATCH", &cfg.Bootstrap.Watch)

	// Telemetry overrides
	str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	str("TELEMETRY_LOGGING_FILE_PATH", &cfg.Telemetry.Logging.File.Path)
	boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	boolean("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	boolean("TELEMETRY_POOL_REPORT_ENABLED", &cfg.Telemetry.PoolReport.Enabled)
	str("TELEMETRY_POOL_REPORT_SCHEDULE", &cfg.Telemetry.PoolReport.Schedule)

	// Compatibility variables. ROTOR_TELEMETRY_LOGGING_LEVEL wins over
	// LOG_LEVEL when both are set.
	if v := os.Getenv(EnvLogLevel); v != "" && os.Getenv(EnvPrefix+"TELEMETRY_LOGGING_LEVEL") == "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.Auth.UserKeys = appendUnique(cfg.Auth.UserKeys, splitList(os.Getenv(EnvUserKeys))...)
	cfg.Bootstrap.Keys = appendUnique(cfg.Bootstrap.Keys, splitList(os.Getenv(EnvGoogleKeys))...)
	cfg.Bootstrap.RemoveKeys = appendUnique(cfg.Bootstrap.RemoveKeys, splitList(os.Getenv(EnvRemoveKeys))...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// splitList splits a "|" separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
