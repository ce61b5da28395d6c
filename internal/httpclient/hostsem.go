package httpclient

import (
	"context"
	"net/url"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"
)

// HostSemaphore caps in-flight requests per upstream origin (scheme://host), independent of how
// many workers a pass runs.
type HostSemaphore struct {
	origins *xsync.MapOf[string, *semaphore.Weighted]
	limit   int
}

// GlobalHostSem is shared by every catalog client in the process: 4 requests per origin.
var GlobalHostSem = NewHostSemaphore(4)

// NewHostSemaphore returns a limiter allowing n concurrent requests per origin (minimum 1).
func NewHostSemaphore(n int) *HostSemaphore {
	if n < 1 {
		n = 1
	}
	return &HostSemaphore{origins: xsync.NewMapOf[string, *semaphore.Weighted](), limit: n}
}

// Acquire waits for a slot on rawURL's origin and returns its release func.
func (h *HostSemaphore) Acquire(ctx context.Context, rawURL string) (func(), error) {
	sem, _ := h.origins.LoadOrCompute(origin(rawURL), func() *semaphore.Weighted {
		return semaphore.NewWeighted(int64(h.limit))
	})
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

// Limit returns the per-origin cap.
func (h *HostSemaphore) Limit() int { return h.limit }

func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
