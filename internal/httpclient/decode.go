package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is advertised on every request that does not set its own.
const AcceptEncoding = "br, zstd, gzip"

var zstdPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil
		}
		return d
	},
}

// DecodingTransport advertises br/zstd/gzip and transparently decodes the response body.
// Setting Accept-Encoding ourselves disables net/http's built-in gzip handling, so all three are handled here.
type DecodingTransport struct {
	Base http.RoundTripper
}

// NewDecodingTransport wraps base (http.DefaultTransport when nil).
func NewDecodingTransport(base http.RoundTripper) *DecodingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DecodingTransport{Base: base}
}

func (t *DecodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}
	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if enc == "" || enc == "identity" || req.Method == http.MethodHead {
		return resp, nil
	}
	body, err := decodeBody(enc, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("decode %s body: %w", enc, err)
	}
	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

func decodeBody(enc string, body io.ReadCloser) (io.ReadCloser, error) {
	switch enc {
	case "br":
		return &readCloser{Reader: brotli.NewReader(body), close: body.Close}, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return body.Close()
		}}, nil
	case "zstd":
		d, _ := zstdPool.Get().(*zstd.Decoder)
		if d == nil {
			return nil, fmt.Errorf("zstd decoder unavailable")
		}
		if err := d.Reset(body); err != nil {
			zstdPool.Put(d)
			return nil, err
		}
		return &readCloser{Reader: d, close: func() error {
			_ = d.Reset(nil)
			zstdPool.Put(d)
			return body.Close()
		}}, nil
	}
	return nil, fmt.Errorf("unsupported content encoding %q", enc)
}

type readCloser struct {
	io.Reader
	close func() error
	once  sync.Once
	err   error
}

func (r *readCloser) Close() error {
	r.once.Do(func() { r.err = r.close() })
	return r.err
}
