package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"mercator-hq/rotor/pkg/proxy"
	"mercator-hq/rotor/pkg/relay"
)

// droppedResponseHeaders describe upstream body framing that no longer
// applies once the body has been buffered or decompressed.
var droppedResponseHeaders = []string{"Transfer-Encoding", "Content-Encoding", "Content-Length", "Connection"}

// ProxyHandler forwards requests under a path prefix to the upstream API
// through the failover executor.
type ProxyHandler struct {
	executor *proxy.Executor
	observer proxy.Observer
	prefix   string
	maxBody  int64
	logger   *slog.Logger
}

// NewProxyHandler creates the proxy handler. prefix is stripped from the
// request path before forwarding, e.g. "/v1beta".
func NewProxyHandler(executor *proxy.Executor, observer proxy.Observer, prefix string, maxBody int64) *ProxyHandler {
	if observer == nil {
		observer = proxy.NopObserver{}
	}
	return &ProxyHandler{
		executor: executor,
		observer: observer,
		prefix:   strings.TrimRight(prefix, "/"),
		maxBody:  maxBody,
		logger:   slog.Default().With("component", "proxy"),
	}
}

// ServeHTTP implements http.Handler.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := strings.TrimPrefix(r.URL.Path, h.prefix)

	in, err := proxy.NewInboundRequest(r, path, h.maxBody)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected inbound request", "path", r.URL.Path, "error", err)
		proxy.WriteError(w, proxy.HandleError(err))
		return
	}

	h.logger.InfoContext(ctx, "proxying request",
		"method", in.Method,
		"path", in.Path,
		"key_location", in.Location.String(),
		"stream", in.Stream,
	)

	result, err := h.executor.Handle(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.DebugContext(ctx, "client went away before upstream answered", "error", err)
			return
		}
		proxy.WriteError(w, proxy.HandleError(err))
		return
	}

	if result.Stream != nil {
		h.writeStream(ctx, w, result)
		return
	}
	h.writeBuffered(w, result)
}

func (h *ProxyHandler) writeBuffered(w http.ResponseWriter, result *proxy.Result) {
	dst := w.Header()
	for name, values := range result.Header {
		dst[name] = values
	}
	for _, name := range droppedResponseHeaders {
		dst.Del(name)
	}
	dst.Set("Content-Length", strconv.Itoa(len(result.Body)))

	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}

func (h *ProxyHandler) writeStream(ctx context.Context, w http.ResponseWriter, result *proxy.Result) {
	defer result.Stream.Close()

	stats, err := relay.Stream(ctx, w, result.Stream.Response)
	h.observer.ObserveStream(stats)

	args := []any{
		"attempts", result.Attempts,
		"route", result.Route,
		"chunks", stats.Chunks,
		"bytes_in", stats.BytesIn,
		"bytes_out", stats.BytesOut,
		"anomalies", stats.Anomalies,
	}

	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "stream relayed", args...)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		h.logger.InfoContext(ctx, "client disconnected during stream", args...)
	default:
		// Headers are already sent; all that is left is to stop.
		h.logger.ErrorContext(ctx, "stream relay failed", append(args, "error", err)...)
	}
}
