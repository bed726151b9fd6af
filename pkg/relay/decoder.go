package relay

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultCharset is assumed when the upstream does not declare one.
const DefaultCharset = "utf-8"

const replacementUTF8 = "\uFFFD"

// Decoder converts a byte stream in some charset to UTF-8 text one chunk at
// a time. A multi-byte sequence split across chunks is held back until the
// rest of it arrives. Malformed input becomes U+FFFD and decoding continues.
type Decoder struct {
	charset   string
	isUTF8    bool
	t         transform.Transformer
	pending   []byte
	dst       []byte
	anomalies int
}

// NewDecoder returns a decoder for the named charset. Names are resolved
// with the WHATWG encoding index, so labels such as "latin1" or "utf8" work.
func NewDecoder(charset string) (*Decoder, error) {
	if charset == "" {
		charset = DefaultCharset
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}

	name, _ := htmlindex.Name(enc)
	isUTF8 := name == "utf-8"
	if isUTF8 {
		// The UTF-8 decoder replaces invalid sequences with U+FFFD.
		enc = unicode.UTF8
	}

	return &Decoder{
		charset: name,
		isUTF8:  isUTF8,
		t:       enc.NewDecoder(),
		dst:     make([]byte, 4096),
	}, nil
}

// DecoderForContentType picks a decoder from a Content-Type header value.
// A missing or unknown charset falls back to UTF-8; the second return value
// reports whether the fallback was used for an unknown charset.
func DecoderForContentType(contentType string) (*Decoder, bool) {
	charset := DefaultCharset
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if cs := strings.TrimSpace(params["charset"]); cs != "" {
				charset = cs
			}
		}
	}

	d, err := NewDecoder(charset)
	if err != nil {
		d, _ = NewDecoder(DefaultCharset)
		return d, true
	}
	return d, false
}

// Charset returns the canonical name of the source charset.
func (d *Decoder) Charset() string {
	return d.charset
}

// Decode consumes chunk and returns the text that is complete so far.
// The result may be empty when chunk only holds part of a character.
func (d *Decoder) Decode(chunk []byte) string {
	d.pending = append(d.pending, chunk...)
	return d.run(false)
}

// Flush decodes whatever is still held back. An incomplete trailing
// sequence becomes U+FFFD. The decoder is reset and may be reused.
func (d *Decoder) Flush() string {
	out := d.run(true)
	d.t.Reset()
	d.pending = d.pending[:0]
	return out
}

// Anomalies returns how many malformed sequences were replaced so far.
func (d *Decoder) Anomalies() int {
	return d.anomalies
}

// Pending returns the number of bytes held back awaiting more input.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

func (d *Decoder) run(atEOF bool) string {
	var out strings.Builder

	for {
		nDst, nSrc, err := d.t.Transform(d.dst, d.pending, atEOF)
		out.Write(d.dst[:nDst])
		d.countAnomalies(d.pending[:nSrc], d.dst[:nDst])
		d.pending = d.pending[:copy(d.pending, d.pending[nSrc:])]

		switch err {
		case transform.ErrShortDst:
			continue
		case nil, transform.ErrShortSrc:
			return out.String()
		default:
			// Decoders only fail on short buffers. Anything else means the
			// remaining bytes cannot be decoded at all; replace and drop them.
			if len(d.pending) > 0 {
				out.WriteString(replacementUTF8)
				d.anomalies++
				d.pending = d.pending[:0]
			}
			d.t.Reset()
			return out.String()
		}
	}
}

// countAnomalies counts replacement characters that the transformer
// produced rather than copied from the input.
func (d *Decoder) countAnomalies(src, dst []byte) {
	produced := bytes.Count(dst, []byte(replacementUTF8))
	if produced == 0 {
		return
	}
	if d.isUTF8 {
		if utf8.Valid(src) {
			return
		}
		produced -= bytes.Count(src, []byte(replacementUTF8))
	}
	if produced > 0 {
		d.anomalies += produced
	}
}
