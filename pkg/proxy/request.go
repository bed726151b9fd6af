package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"mercator-hq/rotor/pkg/upstream"
)

// DefaultMaxBodyBytes limits buffered request bodies (10MB).
const DefaultMaxBodyBytes = 10 * 1024 * 1024

// StreamingOperation marks a streaming call in the request path.
const StreamingOperation = "streamGenerateContent"

// hopHeaders are connection-specific and never forwarded. Accept-Encoding
// is dropped so the upstream transport negotiates and decodes compression
// itself; Content-Length is recomputed from the buffered body.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Host",
	"Remote-Addr",
	"Content-Length",
	"Accept-Encoding",
}

// InboundRequest is a caller request prepared for replay against upstream.
// The body is buffered once so every attempt sends identical bytes.
type InboundRequest struct {
	Method string

	// Path is the suffix after the proxy prefix, e.g.
	// "models/gemini-pro:generateContent".
	Path string

	// RawQuery is the caller's query string without the key parameter,
	// in its original order and encoding.
	RawQuery string

	// Header is the caller's headers without hop-by-hop and credential
	// headers.
	Header http.Header

	Body []byte

	// Key is the credential the caller presented and Location the slot it
	// was found in.
	Key      string
	Location KeyLocation

	// Stream is true when the caller expects an event stream.
	Stream bool
}

// NewInboundRequest reads r into an InboundRequest. path is the suffix to
// forward. Bodies larger than maxBody bytes are rejected.
func NewInboundRequest(r *http.Request, path string, maxBody int64) (*InboundRequest, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if int64(len(b)) > maxBody {
			return nil, &RequestTooLargeError{Limit: maxBody}
		}
		body = b
	}

	key, location := ExtractKey(r)
	path = strings.TrimLeft(path, "/")

	return &InboundRequest{
		Method:   r.Method,
		Path:     path,
		RawQuery: stripQueryParam(r.URL.RawQuery, KeyQueryParam),
		Header:   forwardHeaders(r.Header),
		Body:     body,
		Key:      key,
		Location: location,
		Stream:   IsStreamingRequest(r, path),
	}, nil
}

// IsStreamingRequest reports whether the caller expects an event stream:
// it accepts text/event-stream, asks for alt=sse, or calls a streaming
// operation.
func IsStreamingRequest(r *http.Request, path string) bool {
	for _, accept := range r.Header.Values("Accept") {
		for _, mediaRange := range strings.Split(accept, ",") {
			mediaType, _, _ := strings.Cut(mediaRange, ";")
			if strings.EqualFold(strings.TrimSpace(mediaType), "text/event-stream") {
				return true
			}
		}
	}
	if r.URL.Query().Get("alt") == "sse" {
		return true
	}
	return strings.Contains(path, StreamingOperation)
}

// Outbound builds the upstream request for one attempt with credential
// placed at the caller's key location.
func (in *InboundRequest) Outbound(credential string) *upstream.Request {
	header := in.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	rawQuery := in.RawQuery

	if name := in.Location.OutboundHeader(); name != "" {
		header.Set(name, credential)
	} else {
		rawQuery = appendQueryParam(rawQuery, KeyQueryParam, credential)
	}

	return &upstream.Request{
		Method:   in.Method,
		Path:     in.Path,
		RawQuery: rawQuery,
		Header:   header,
		Body:     in.Body,
		Stream:   in.Stream,
	}
}

func forwardHeaders(src http.Header) http.Header {
	h := src.Clone()
	if h == nil {
		return make(http.Header)
	}

	// Headers named in Connection are hop-by-hop as well.
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
	for _, name := range credentialHeaders {
		h.Del(name)
	}
	return h
}

// stripQueryParam removes every occurrence of name from a raw query string
// and leaves the remaining pairs untouched.
func stripQueryParam(rawQuery, name string) string {
	if rawQuery == "" {
		return ""
	}

	kept := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, _, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(k); err == nil {
			k = unescaped
		}
		if k == name {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func appendQueryParam(rawQuery, name, value string) string {
	pair := url.QueryEscape(name) + "=" + url.QueryEscape(value)
	if rawQuery == "" {
		return pair
	}
	return rawQuery + "&" + pair
}
