package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// EventStreamContentType is the Content-Type sent to clients for relayed
// streams. The body is always re-encoded as UTF-8.
const EventStreamContentType = "text/event-stream; charset=utf-8"

// framingHeaders describe the upstream body encoding and are invalid once
// the relay re-frames the body.
var framingHeaders = []string{"Content-Length", "Transfer-Encoding", "Content-Encoding"}

// Stats summarizes one relayed stream.
type Stats struct {
	BytesIn   int64
	BytesOut  int64
	Chunks    int
	Anomalies int
	// CharsetFallback is set when the upstream declared a charset that could
	// not be resolved and UTF-8 was used instead.
	CharsetFallback bool
}

// StreamHeaders returns a copy of the upstream headers suitable for a
// relayed event stream.
func StreamHeaders(upstream http.Header) http.Header {
	h := upstream.Clone()
	if h == nil {
		h = make(http.Header)
	}
	for _, name := range framingHeaders {
		h.Del(name)
	}
	h.Set("Content-Type", EventStreamContentType)
	return h
}

// Stream forwards resp to w as decoded text, flushing after every chunk.
// The upstream body is always closed. A cancelled ctx stops the relay
// without draining upstream and is returned as ctx.Err().
func Stream(ctx context.Context, w http.ResponseWriter, resp *http.Response) (Stats, error) {
	logger := slog.Default().With("component", "relay")

	dec, fallback := DecoderForContentType(resp.Header.Get("Content-Type"))
	if fallback {
		logger.WarnContext(ctx, "unknown upstream charset, decoding as utf-8",
			"content_type", resp.Header.Get("Content-Type"))
	}

	reader := NewReader(resp.Body, dec)
	defer reader.Close()

	// Unblock a pending body read as soon as the client goes away.
	stop := context.AfterFunc(ctx, func() { _ = resp.Body.Close() })
	defer stop()

	dst := w.Header()
	for name, values := range StreamHeaders(resp.Header) {
		dst[name] = values
	}
	w.WriteHeader(resp.StatusCode)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	stats := Stats{CharsetFallback: fallback}

	for {
		text, err := reader.Next(ctx)
		if text != "" {
			n, werr := io.WriteString(w, text)
			stats.BytesOut += int64(n)
			stats.Chunks++
			if werr != nil {
				return finish(&stats, reader), werr
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return finish(&stats, reader), ferr
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			if anomalies := reader.Anomalies(); anomalies > 0 {
				logger.WarnContext(ctx, "replaced malformed bytes in upstream stream",
					"anomalies", anomalies, "charset", dec.Charset())
			}
			return finish(&stats, reader), nil
		default:
			return finish(&stats, reader), err
		}
	}
}

func finish(stats *Stats, reader *Reader) Stats {
	stats.BytesIn = reader.BytesRead()
	stats.Anomalies = reader.Anomalies()
	return *stats
}
