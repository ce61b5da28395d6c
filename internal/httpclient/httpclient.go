package httpclient

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

const (
	DefaultTimeout         = 10 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: NewDecodingTransport(newTransport()),
	}
}

// newTransport returns the tuned base transport. Proxy settings come from HTTP_PROXY / HTTPS_PROXY /
// NO_PROXY, read once at startup.
func newTransport() *http.Transport {
	proxy := httpproxy.FromEnvironment().ProxyFunc()
	return &http.Transport{
		Proxy: func(r *http.Request) (*url.URL, error) {
			return proxy(r.URL)
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// Default returns the shared tuned HTTP client for the catalog and metadata clients.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and a fresh copy of the default transport.
func WithTimeout(timeout time.Duration) *http.Client {
	dt, ok := defaultClient.Transport.(*DecodingTransport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	base, ok := dt.Base.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout, Transport: dt}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: NewDecodingTransport(base.Clone()),
	}
}
