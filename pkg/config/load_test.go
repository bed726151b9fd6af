package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rotor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// clearEnv unsets the compatibility variables for the duration of a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvUserKeys, EnvGoogleKeys, EnvRemoveKeys, EnvLogLevel} {
		t.Setenv(name, "")
	}
	t.Setenv(EnvPrefix+"TELEMETRY_LOGGING_LEVEL", "")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddress, cfg.Proxy.ListenAddress)
	assert.Equal(t, DefaultPathPrefix, cfg.Proxy.PathPrefix)
	assert.Equal(t, DefaultUpstreamBaseURL, cfg.Upstream.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.SQLite.WALMode)
	assert.True(t, cfg.Telemetry.Logging.RedactPII)
	assert.True(t, cfg.Telemetry.Metrics.Enabled)
	assert.False(t, cfg.Telemetry.Tracing.Enabled)
	assert.Equal(t, time.Duration(0), cfg.Proxy.WriteTimeout)
	assert.Empty(t, cfg.Auth.UserKeys)
}

func TestLoad_FileValues(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
proxy:
  listen_address: "0.0.0.0:9000"
  path_prefix: /gemini
  max_body_bytes: 2048
upstream:
  base_url: http://upstream.local/v1
  attempt_timeout: 5s
auth:
  user_keys: [alpha, beta]
storage:
  backend: memory
  sqlite:
    wal_mode: false
bootstrap:
  keys: [k1, k2]
  remove_keys: [k0]
telemetry:
  logging:
    level: debug
    format: text
    redact_pii: false
  metrics:
    enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Proxy.ListenAddress)
	assert.Equal(t, "/gemini", cfg.Proxy.PathPrefix)
	assert.Equal(t, int64(2048), cfg.Proxy.MaxBodyBytes)
	assert.Equal(t, "http://upstream.local/v1", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.AttemptTimeout)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Auth.UserKeys)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Bootstrap.Keys)
	assert.Equal(t, []string{"k0"}, cfg.Bootstrap.RemoveKeys)
	assert.Equal(t, "debug", cfg.Telemetry.Logging.Level)
	assert.Equal(t, "text", cfg.Telemetry.Logging.Format)

	// Explicit false survives loading.
	assert.False(t, cfg.Storage.SQLite.WALMode)
	assert.False(t, cfg.Telemetry.Logging.RedactPII)
	assert.False(t, cfg.Telemetry.Metrics.Enabled)

	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultShutdownTimeout, cfg.Proxy.ShutdownTimeout)
	assert.Equal(t, DefaultMetricsPath, cfg.Telemetry.Metrics.Path)
}

func TestLoad_CompatibilityEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvUserKeys, " u1 | u2 || u1 ")
	t.Setenv(EnvGoogleKeys, "g1|g2|")
	t.Setenv(EnvRemoveKeys, "g0")
	t.Setenv(EnvLogLevel, "WARNING")

	path := writeConfig(t, `
auth:
  user_keys: [u0, u1]
bootstrap:
  keys: [g1]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"u0", "u1", "u2"}, cfg.Auth.UserKeys)
	assert.Equal(t, []string{"g1", "g2"}, cfg.Bootstrap.Keys)
	assert.Equal(t, []string{"g0"}, cfg.Bootstrap.RemoveKeys)
	assert.Equal(t, "warning", cfg.Telemetry.Logging.Level)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv("ROTOR_TELEMETRY_LOGGING_LEVEL", "error")
	t.Setenv("ROTOR_PROXY_LISTEN_ADDRESS", ":7000")
	t.Setenv("ROTOR_UPSTREAM_ATTEMPT_TIMEOUT", "3s")
	t.Setenv("ROTOR_STORAGE_BACKEND", "memory")
	t.Setenv("ROTOR_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Telemetry.Logging.Level)
	assert.Equal(t, ":7000", cfg.Proxy.ListenAddress)
	assert.Equal(t, 3*time.Second, cfg.Upstream.AttemptTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.False(t, cfg.Telemetry.Metrics.Enabled)
}

func TestLoad_MalformedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROTOR_UPSTREAM_ATTEMPT_TIMEOUT", "soon")
	t.Setenv("ROTOR_BOOTSTRAP_WATCH", "maybe")

	_, err := Load("")
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 2)
	assert.Equal(t, "ROTOR_UPSTREAM_ATTEMPT_TIMEOUT", verr.Errors[0].Field)
}

func TestLoad_DotEnv(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "absent"},
		{name: "valid", content: "ROTOR_PROXY_LISTEN_ADDRESS=:7100\n"},
		{name: "malformed", content: "BAD-KEY=1\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ROTOR_PROXY_LISTEN_ADDRESS", "")
			require.NoError(t, os.Unsetenv("ROTOR_PROXY_LISTEN_ADDRESS"))
			dir := t.TempDir()
			if tt.content != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(tt.content), 0o600))
			}
			t.Chdir(dir)

			cfg, err := Load("")
			if tt.wantErr {
				require.Error(t, err)
				var verr ValidationError
				require.True(t, errors.As(err, &verr))
				require.Len(t, verr.Errors, 1)
				assert.Equal(t, ".env", verr.Errors[0].Field)
				return
			}
			require.NoError(t, err)
			if tt.content != "" {
				assert.Equal(t, ":7100", cfg.Proxy.ListenAddress)
			} else {
				assert.Equal(t, DefaultListenAddress, cfg.Proxy.ListenAddress)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "proxy: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse configuration file")
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  backend: postgres
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" | |"))
	assert.Equal(t, []string{"a", "b c"}, splitList(" a |b c|"))
}
