package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/rotor/pkg/config"
	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/proxy"
	"mercator-hq/rotor/pkg/security/auth"
	"mercator-hq/rotor/pkg/telemetry/health"
	"mercator-hq/rotor/pkg/telemetry/metrics"
	"mercator-hq/rotor/pkg/upstream"
)

const testUserKey = "user-key"

type testEnv struct {
	server   *Server
	store    *credentials.MemoryStore
	upstream *httptest.Server
}

func newTestEnv(t *testing.T, poolKeys ...string) *testEnv {
	t.Helper()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"path":"`+r.URL.Path+`","key":"`+r.URL.Query().Get("key")+`"}`)
	}))
	t.Cleanup(up.Close)

	cfg := config.Default()
	cfg.Upstream.BaseURL = up.URL + "/v1beta"
	cfg.Auth.UserKeys = []string{testUserKey}
	cfg.Proxy.ShutdownTimeout = 2 * time.Second

	client, err := upstream.NewClient(upstream.Config{BaseURL: cfg.Upstream.BaseURL, AttemptTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(client.CloseIdleConnections)

	store := credentials.NewMemoryStore()
	for _, k := range poolKeys {
		_, err := store.InsertIfAbsent(context.Background(), k)
		require.NoError(t, err)
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
	userKeys := auth.NewUserKeyValidator(cfg.Auth.UserKeys)

	checker := health.New(time.Second)
	checker.RegisterCheck("store", health.StoreCheck(store))
	checker.RegisterCheck("pool", health.PoolCheck(store))

	srv := New(cfg, Deps{
		Store:    store,
		Executor: proxy.NewExecutor(store, client, userKeys, collector),
		UserKeys: userKeys,
		Health:   checker,
		Metrics:  collector,
		Version:  health.VersionInfo{Version: "1.2.3", Commit: "abc", BuildTime: "now"},
	})
	return &testEnv{server: srv, store: store, upstream: up}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_ProxyRoute(t *testing.T) {
	env := newTestEnv(t, "pool-1")

	req := httptest.NewRequest(http.MethodPost, "/v1beta/models/m:generateContent?key="+testUserKey, strings.NewReader(`{}`))
	rec := env.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"path":"/v1beta/models/m:generateContent","key":"pool-1"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_ProxyRouteRejectsUnknownMethod(t *testing.T) {
	env := newTestEnv(t, "pool-1")

	rec := env.do(t, httptest.NewRequest(http.MethodOptions, "/v1beta/models", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v2/models", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AdminRequiresBasicAuth(t *testing.T) {
	env := newTestEnv(t, "pool-1")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/admin/keys", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="Login Required"`, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	req.SetBasicAuth("admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(t, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	req.SetBasicAuth("admin", testUserKey)
	rec = env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pool-1")
}

func TestServer_AdminAddAndToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/add_key", strings.NewReader(`{"key":"new-key"}`))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("", testUserKey)
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	req = httptest.NewRequest(http.MethodPost, "/toggle_key/new-key/disable", nil)
	req.SetBasicAuth("", testUserKey)
	require.Equal(t, http.StatusOK, env.do(t, req).Code)

	cred, err := env.store.Get(ctx, "new-key")
	require.NoError(t, err)
	assert.True(t, cred.Removed)
}

func TestServer_OperationalRoutes(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	// Empty pool is not ready.
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)
	_, err := env.store.InsertIfAbsent(context.Background(), "pool-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t, "pool-1")

	req := httptest.NewRequest(http.MethodGet, "/v1beta/models?key="+testUserKey, nil)
	require.Equal(t, http.StatusOK, env.do(t, req).Code)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rotor_requests_total")
	assert.Contains(t, rec.Body.String(), "rotor_upstream_attempts_total")
}

func TestServer_MetricsDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.server.metricsCfg.Enabled = false
	env.server.handler = env.server.routes()

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	env := newTestEnv(t, "pool-1")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, env.server.IsRunning())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, env.server.IsRunning())

	// A second shutdown is a no-op.
	assert.NoError(t, env.server.Shutdown(context.Background()))
}
