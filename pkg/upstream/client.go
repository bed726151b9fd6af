package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config configures the upstream HTTP client.
type Config struct {
	// BaseURL is prefixed to every request path, e.g.
	// https://generativelanguage.googleapis.com/v1beta.
	BaseURL string

	// AttemptTimeout bounds a single attempt. For streamed responses it
	// covers the time until response headers arrive.
	AttemptTimeout time.Duration

	// Connection pool settings.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Request is one outbound call. Header and RawQuery are sent as given;
// the caller is responsible for placing the credential.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte

	// Stream releases the attempt deadline once headers are received so
	// a long-lived body is bounded only by the caller's context.
	Stream bool
}

// Response is an upstream response whose body is still open. Close must be
// called to release the connection and the attempt's context.
type Response struct {
	*http.Response

	cancel context.CancelFunc
	timer  *time.Timer
}

// Close closes the body and releases the attempt context.
func (r *Response) Close() error {
	if r.timer != nil {
		r.timer.Stop()
	}
	err := r.Body.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

// ReadBody reads and closes the body.
func (r *Response) ReadBody() ([]byte, error) {
	defer r.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return body, &TransportError{Cause: fmt.Errorf("failed to read response body: %w", err)}
	}
	return body, nil
}

// Client performs single upstream attempts over a pooled transport.
// It never retries; retry policy belongs to the caller.
type Client struct {
	config Config
	base   *url.URL
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a client with connection pooling.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base URL %q: missing host", cfg.BaseURL)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		// Responses are decompressed transparently, so forwarded bodies
		// never carry a Content-Encoding.
		DisableCompression: false,
		ForceAttemptHTTP2:  true,
	}

	return &Client{
		config: cfg,
		base:   base,
		// No client-wide Timeout: it would also cut off streamed bodies.
		client: &http.Client{Transport: transport},
		logger: slog.Default().With("component", "upstream"),
	}, nil
}

// URL returns the absolute upstream URL for a path suffix and raw query.
func (c *Client) URL(path, rawQuery string) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = rawQuery
	return u.String()
}

// Do performs one attempt. Any response with a status code is returned,
// whatever the code; classification is left to the caller. Failures that
// produce no response are returned as *TransportError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
		timer      *time.Timer
		timedOut   = make(chan struct{})
	)
	attemptCtx, cancel = context.WithCancel(ctx)
	if c.config.AttemptTimeout > 0 {
		timer = time.AfterFunc(c.config.AttemptTimeout, func() {
			close(timedOut)
			cancel()
		})
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, c.URL(req.Path, req.RawQuery), body)
	if err != nil {
		stopTimer(timer)
		cancel()
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	c.logger.DebugContext(ctx, "sending upstream request",
		"method", req.Method,
		"path", req.Path,
		"stream", req.Stream,
	)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		stopTimer(timer)
		cancel()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redactQuery(urlErr.URL)
		}

		terr := &TransportError{Cause: err}
		select {
		case <-timedOut:
			terr.Timeout = c.config.AttemptTimeout
		default:
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				terr.Timeout = c.config.AttemptTimeout
			}
		}
		return nil, terr
	}

	// A successful stream outlives the attempt deadline; error bodies stay
	// under it so a stalled error response still ends the attempt.
	if req.Stream && timer != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		timer.Stop()
		timer = nil
	}

	return &Response{Response: resp, cancel: cancel, timer: timer}, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// redactQuery hides query values, which may carry the credential, in a URL
// that ends up in an error message.
func redactQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	for name := range q {
		q.Set(name, "REDACTED")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
