package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ChunkSize is the number of bytes requested from upstream per read.
const ChunkSize = 1024

// StreamError reports a failure reading the upstream body mid-stream.
type StreamError struct {
	Cause error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("upstream stream read failed: %v", e.Cause)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Reader turns an upstream body into a sequence of decoded text chunks.
// It is lazy and cannot be restarted. Only one chunk buffer and the
// decoder's partial-character tail are held at any time.
type Reader struct {
	body     io.ReadCloser
	dec      *Decoder
	buf      []byte
	eof      bool
	closed   bool
	released bool
	bytesIn  int64
}

// NewReader wraps body. A nil decoder means UTF-8.
func NewReader(body io.ReadCloser, dec *Decoder) *Reader {
	if dec == nil {
		dec, _ = NewDecoder(DefaultCharset)
	}
	return &Reader{
		body: body,
		dec:  dec,
		buf:  make([]byte, ChunkSize),
	}
}

// Next returns the next non-empty piece of decoded text.
// Returns "", io.EOF once the upstream body is exhausted and the decoder
// has been flushed. Returns ctx.Err() when ctx is cancelled. A *StreamError
// may come with the text decoded before the failure.
func (r *Reader) Next(ctx context.Context) (string, error) {
	for {
		if r.closed {
			return "", io.EOF
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if r.eof {
			r.closed = true
			if tail := r.dec.Flush(); tail != "" {
				return tail, nil
			}
			return "", io.EOF
		}

		n, err := r.body.Read(r.buf)
		r.bytesIn += int64(n)

		var text string
		if n > 0 {
			text = r.dec.Decode(r.buf[:n])
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}
				return text, &StreamError{Cause: err}
			}
			r.eof = true
		}

		if text != "" {
			return text, nil
		}
	}
}

// BytesRead returns the number of raw bytes consumed from upstream.
func (r *Reader) BytesRead() int64 {
	return r.bytesIn
}

// Anomalies returns the number of malformed sequences replaced so far.
func (r *Reader) Anomalies() int {
	return r.dec.Anomalies()
}

// Close releases the upstream body without draining it.
func (r *Reader) Close() error {
	r.closed = true
	if r.released {
		return nil
	}
	r.released = true
	return r.body.Close()
}
