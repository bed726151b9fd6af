package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/proxy"
	"mercator-hq/rotor/pkg/security/auth"
	"mercator-hq/rotor/pkg/upstream"
)

const testUserKey = "user-key"

func newTestProxy(t *testing.T, upstreamHandler http.Handler, poolKeys ...string) (*ProxyHandler, *credentials.MemoryStore) {
	t.Helper()

	server := httptest.NewServer(upstreamHandler)
	t.Cleanup(server.Close)

	client, err := upstream.NewClient(upstream.Config{BaseURL: server.URL + "/v1beta", AttemptTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(client.CloseIdleConnections)

	store := credentials.NewMemoryStore()
	for _, k := range poolKeys {
		_, err := store.InsertIfAbsent(context.Background(), k)
		require.NoError(t, err)
	}

	exec := proxy.NewExecutor(store, client, auth.NewUserKeyValidator([]string{testUserKey}), nil)
	return NewProxyHandler(exec, nil, "/v1beta", 1024), store
}

func TestProxyHandler_Buffered(t *testing.T) {
	var gotPath, gotQuery string
	h, store := newTestProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "yes")
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}), "pool-1")

	req := httptest.NewRequest(http.MethodPost, "/v1beta/models/gemini-pro:generateContent?key="+testUserKey, strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"candidates":[]}`, w.Body.String())
	assert.Equal(t, "17", w.Header().Get("Content-Length"))
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))

	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", gotPath)
	assert.Equal(t, "key=pool-1", gotQuery)

	c, err := store.Get(context.Background(), "pool-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.SuccessCount)
}

func TestProxyHandler_Stream(t *testing.T) {
	h, _ := newTestProxy(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, part := range []string{"data: {\"text\":\"caf", "\xc3", "\xa9\"}\n\n"} {
			_, _ = io.WriteString(w, part)
			flusher.Flush()
		}
	}), "pool-1")

	req := httptest.NewRequest(http.MethodPost, "/v1beta/models/gemini-pro:streamGenerateContent?alt=sse", strings.NewReader(`{}`))
	req.Header.Set("X-Goog-Api-Key", testUserKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data: {\"text\":\"café\"}\n\n", w.Body.String())
	assert.Equal(t, "text/event-stream; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("Content-Length"))
	assert.True(t, w.Flushed)
}

func TestProxyHandler_Errors(t *testing.T) {
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429}}`)
	})

	tests := []struct {
		name       string
		poolKeys   []string
		target     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing key",
			poolKeys:   []string{"pool-1"},
			target:     "/v1beta/models/m:generateContent",
			wantStatus: http.StatusUnauthorized,
			wantBody:   proxy.MessageAPIKeyMissing,
		},
		{
			name:       "empty pool",
			target:     "/v1beta/models/m:generateContent?key=" + testUserKey,
			wantStatus: http.StatusInternalServerError,
			wantBody:   proxy.MessagePoolExhausted,
		},
		{
			name:       "all credentials failing",
			poolKeys:   []string{"pool-1", "pool-2"},
			target:     "/v1beta/models/m:generateContent?key=" + testUserKey,
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `{"error":{"code":429}}`,
		},
		{
			name:       "body too large",
			poolKeys:   []string{"pool-1"},
			target:     "/v1beta/models/m:generateContent?key=" + testUserKey,
			body:       strings.Repeat("x", 2048),
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestProxy(t, failing, tt.poolKeys...)

			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
