package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Default(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty listen address", func(c *Config) { c.Proxy.ListenAddress = "" }, "proxy.listen_address"},
		{"root prefix", func(c *Config) { c.Proxy.PathPrefix = "/" }, "proxy.path_prefix"},
		{"prefix trailing slash", func(c *Config) { c.Proxy.PathPrefix = "/v1beta/" }, "proxy.path_prefix"},
		{"prefix without slash", func(c *Config) { c.Proxy.PathPrefix = "v1beta" }, "proxy.path_prefix"},
		{"reserved prefix", func(c *Config) { c.Proxy.PathPrefix = "/admin" }, "proxy.path_prefix"},
		{"zero body limit", func(c *Config) { c.Proxy.MaxBodyBytes = 0 }, "proxy.max_body_bytes"},
		{"negative read timeout", func(c *Config) { c.Proxy.ReadTimeout = -1 }, "proxy.read_timeout"},
		{"huge header limit", func(c *Config) { c.Proxy.MaxHeaderBytes = 11 << 20 }, "proxy.max_header_bytes"},
		{"cors wildcard with credentials", func(c *Config) {
			c.Proxy.CORS.Enabled = true
			c.Proxy.CORS.AllowCredentials = true
		}, "proxy.cors.allowed_origins"},
		{"tls without cert", func(c *Config) { c.Proxy.TLS.Enabled = true }, "proxy.tls.cert_file"},
		{"tls old version", func(c *Config) { c.Proxy.TLS.MinVersion = "1.0" }, "proxy.tls.min_version"},
		{"upstream scheme", func(c *Config) { c.Upstream.BaseURL = "ftp://host/v1" }, "upstream.base_url"},
		{"upstream query", func(c *Config) { c.Upstream.BaseURL = "https://host/v1?key=x" }, "upstream.base_url"},
		{"upstream no host", func(c *Config) { c.Upstream.BaseURL = "https:///v1" }, "upstream.base_url"},
		{"zero attempt timeout", func(c *Config) { c.Upstream.AttemptTimeout = 0 }, "upstream.attempt_timeout"},
		{"blank user key", func(c *Config) { c.Auth.UserKeys = []string{"ok", " "} }, "auth.user_keys[1]"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"unknown driver", func(c *Config) { c.Storage.SQLite.Driver = "pg" }, "storage.sqlite.driver"},
		{"empty sqlite path", func(c *Config) { c.Storage.SQLite.Path = "" }, "storage.sqlite.path"},
		{"watch without file", func(c *Config) { c.Bootstrap.Watch = true }, "bootstrap.watch"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "loud" }, "telemetry.logging.level"},
		{"bad log format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"unsorted buckets", func(c *Config) { c.Telemetry.Metrics.AttemptDurationBuckets = []float64{1, 0.5} }, "telemetry.metrics.attempt_duration_buckets"},
		{"bad sampler", func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" }, "telemetry.tracing.sampler"},
		{"ratio out of range", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 }, "telemetry.tracing.sample_ratio"},
		{"bad exporter", func(c *Config) {
			c.Telemetry.Tracing.Enabled = true
			c.Telemetry.Tracing.Exporter = "zipkin"
		}, "telemetry.tracing.exporter"},
		{"bad schedule", func(c *Config) { c.Telemetry.PoolReport.Schedule = "every minute" }, "telemetry.pool_report.schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			fields := make([]string, 0, len(verr.Errors))
			for _, fe := range verr.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidate_MemoryBackendIgnoresSQLite(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "memory"
	cfg.Storage.SQLite.Driver = "unused"
	assert.NoError(t, Validate(cfg))
}

func TestValidate_DisabledPoolReportSkipsSchedule(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.PoolReport.Enabled = false
	cfg.Telemetry.PoolReport.Schedule = "nonsense"
	assert.NoError(t, Validate(cfg))
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "configuration validation failed", ValidationError{}.Error())

	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	assert.Equal(t, "configuration validation failed: a: bad", one.Error())

	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	assert.Contains(t, two.Error(), "with 2 errors")
	assert.Contains(t, two.Error(), "  - b: worse\n")
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)
	assert.Equal(t, first.Proxy, cfg.Proxy)
	assert.Equal(t, first.Telemetry.Tracing, cfg.Telemetry.Tracing)
	assert.False(t, cfg.Storage.SQLite.WALMode, "ApplyDefaults leaves booleans alone")
}
