// Package xtream talks to an Xtream-Codes style player_api.php panel and builds playback URLs.
package xtream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/snapetech/strmsync/internal/httpclient"
	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/metrics"
)

// Actions understood by player_api.php.
const (
	ActionLiveCategories = "get_live_categories"
	ActionLiveStreams    = "get_live_streams"
	ActionVODStreams     = "get_vod_streams"
	ActionSeries         = "get_series"
	ActionSeriesInfo     = "get_series_info"
)

const maxBodyBytes = 256 << 20

// ErrStatus matches any *StatusError.
var ErrStatus = errors.New("unexpected status")

// StatusError is a non-2xx reply from the panel.
type StatusError struct {
	Action string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Action, e.Code)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Options tunes a Client. Zero values select defaults.
type Options struct {
	HTTPClient        *http.Client
	Timeout           time.Duration // per request; default 10s
	RequestsPerSecond float64       // 0 = unlimited
	UserAgent         string
	HostSem           *httpclient.HostSemaphore
	Logger            logger.Logger
}

// Client is a player_api.php client. Safe for concurrent use.
type Client struct {
	apiURL     string // .../player_api.php
	streamBase string // root for /movie, /live, /series
	user, pass string

	http      *http.Client
	timeout   time.Duration
	limiter   *rate.Limiter
	sem       *httpclient.HostSemaphore
	userAgent string
	log       logger.Logger
}

// New returns a client for the panel at baseURL. baseURL is the server root (http://host:port);
// when it already ends in .php it is used as the API endpoint and its directory becomes the playback root.
func New(baseURL, user, pass string, opts Options) *Client {
	apiURL, streamBase := splitBase(baseURL)
	c := &Client{
		apiURL:     apiURL,
		streamBase: streamBase,
		user:       user,
		pass:       pass,
		http:       opts.HTTPClient,
		timeout:    opts.Timeout,
		sem:        opts.HostSem,
		userAgent:  opts.UserAgent,
		log:        opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = httpclient.DefaultTimeout
	}
	if c.http == nil {
		c.http = httpclient.Default()
		if c.timeout != httpclient.DefaultTimeout {
			c.http = httpclient.WithTimeout(c.timeout)
		}
	}
	if c.sem == nil {
		c.sem = httpclient.GlobalHostSem
	}
	if c.userAgent == "" {
		c.userAgent = "strmsync/1.0"
	}
	if c.log == nil {
		c.log = logger.Default
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

func splitBase(base string) (apiURL, streamBase string) {
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	if strings.HasSuffix(strings.ToLower(base), ".php") {
		if i := strings.LastIndex(base, "/"); i > len("https://") {
			return base, base[:i]
		}
		return base, base
	}
	return base + "/player_api.php", base
}

// StreamBase returns the playback URL root.
func (c *Client) StreamBase() string { return c.streamBase }

func (c *Client) endpoint(action string, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("username", c.user)
	q.Set("password", c.pass)
	if action != "" {
		q.Set("action", action)
	}
	return c.apiURL + "?" + q.Encode()
}

// get performs one GET. No retry: a failed request is reported and the pass moves on.
func (c *Client) get(ctx context.Context, action string, params url.Values) ([]byte, error) {
	label := action
	if label == "" {
		label = "auth"
	}
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() { metrics.ObserveRequest(label, outcome, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit: %w", label, err)
		}
	}
	release, err := c.sem.Acquire(ctx, c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(action, params), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		outcome = metrics.OutcomeStatus
		return nil, &StatusError{Action: label, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", label, err)
	}
	outcome = metrics.OutcomeOK
	return body, nil
}

// Fetch calls action and returns the elements of the JSON list it replies with.
// Panels that answer with an object keyed by id get their values returned in key order.
// Any failure (transport, status, decode) is logged and yields an empty result.
func (c *Client) Fetch(ctx context.Context, action string, params url.Values) []json.RawMessage {
	body, err := c.get(ctx, action, params)
	if err != nil {
		c.log.Warnf("xtream: fetch %s failed: %v", action, err)
		return nil
	}
	items, err := decodeList(body)
	if err != nil {
		metrics.Requests.WithLabelValues(action, metrics.OutcomeDecode).Inc()
		c.log.Warnf("xtream: fetch %s: undecodable body: %v", action, err)
		return nil
	}
	return items
}

func decodeList(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if trimmed[0] == '{' {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]json.RawMessage, 0, len(keys))
		for _, k := range keys {
			out = append(out, m[k])
		}
		return out, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}
	return list, nil
}
