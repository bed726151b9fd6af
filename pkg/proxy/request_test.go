package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInboundRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost,
		"/v1beta/models/gemini-pro:generateContent?alt=json&key=user-1&x=%2F", strings.NewReader(`{"contents":[]}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept-Encoding", "gzip")
	r.Header.Set("Connection", "keep-alive, X-Hop")
	r.Header.Set("X-Hop", "1")
	r.Header.Set("X-Custom", "kept")

	in, err := NewInboundRequest(r, "/models/gemini-pro:generateContent", 0)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, in.Method)
	assert.Equal(t, "models/gemini-pro:generateContent", in.Path)
	assert.Equal(t, "alt=json&x=%2F", in.RawQuery)
	assert.Equal(t, `{"contents":[]}`, string(in.Body))
	assert.Equal(t, "user-1", in.Key)
	assert.Equal(t, QueryParam, in.Location)
	assert.False(t, in.Stream)

	assert.Equal(t, "kept", in.Header.Get("X-Custom"))
	assert.Equal(t, "application/json", in.Header.Get("Content-Type"))
	for _, h := range []string{"Accept-Encoding", "Connection", "X-Hop"} {
		assert.Empty(t, in.Header.Get(h), h)
	}
}

func TestNewInboundRequest_TooLarge(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/models", strings.NewReader(strings.Repeat("a", 11)))

	_, err := NewInboundRequest(r, "models", 10)

	var tooLarge *RequestTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.EqualValues(t, 10, tooLarge.Limit)

	r = httptest.NewRequest(http.MethodPost, "/models", strings.NewReader(strings.Repeat("a", 10)))
	in, err := NewInboundRequest(r, "models", 10)
	require.NoError(t, err)
	assert.Len(t, in.Body, 10)
}

func TestIsStreamingRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		accept string
		want   bool
	}{
		{"plain", "/models/m:generateContent", "", false},
		{"streaming operation", "/models/m:streamGenerateContent", "", true},
		{"alt sse", "/models/m:generateContent?alt=sse", "", true},
		{"accept event stream", "/models/m:generateContent", "application/json, text/event-stream;q=0.9", true},
		{"accept json", "/models/m:generateContent", "application/json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.target, nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, IsStreamingRequest(r, r.URL.Path))
		})
	}
}

func TestInboundRequest_Outbound(t *testing.T) {
	tests := []struct {
		name       string
		location   KeyLocation
		wantQuery  string
		wantHeader string
	}{
		{name: "bearer goes to query", location: BearerHeader, wantQuery: "alt=sse&key=pool-key"},
		{name: "query stays in query", location: QueryParam, wantQuery: "alt=sse&key=pool-key"},
		{name: "provider header", location: ProviderHeader, wantQuery: "alt=sse", wantHeader: ProviderKeyHeader},
		{name: "generic header", location: GenericHeader, wantQuery: "alt=sse", wantHeader: GenericKeyHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &InboundRequest{
				Method:   http.MethodPost,
				Path:     "models/m:streamGenerateContent",
				RawQuery: "alt=sse",
				Header:   http.Header{"X-Custom": {"v"}},
				Body:     []byte("{}"),
				Key:      "user-key",
				Location: tt.location,
				Stream:   true,
			}

			out := in.Outbound("pool-key")

			assert.Equal(t, tt.wantQuery, out.RawQuery)
			if tt.wantHeader != "" {
				assert.Equal(t, "pool-key", out.Header.Get(tt.wantHeader))
			}
			assert.Empty(t, out.Header.Get(AuthorizationHeader))
			assert.Equal(t, "v", out.Header.Get("X-Custom"))
			assert.True(t, out.Stream)
			assert.Equal(t, in.Body, out.Body)

			// Attempts never share header maps.
			assert.Empty(t, in.Header.Get(ProviderKeyHeader))
			assert.Empty(t, in.Header.Get(GenericKeyHeader))
		})
	}
}

func TestStripQueryParam(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"key=a", ""},
		{"key=a&alt=sse", "alt=sse"},
		{"b=2&key=a&a=1&key=c", "b=2&a=1"},
		{"%6Bey=a&x=1", "x=1"},
		{"keys=1&monkey=2", "keys=1&monkey=2"},
		{"x=a%20b&&y", "x=a%20b&y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripQueryParam(tt.in, KeyQueryParam), tt.in)
	}
}
