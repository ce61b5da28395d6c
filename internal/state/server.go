package state

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/strmsync/internal/health"
	"github.com/snapetech/strmsync/internal/reconcile"
)

// TimeFormat is the last_update layout.
const TimeFormat = "2006-01-02 15:04:05"

// Snapshot is the /state document.
type Snapshot struct {
	LastUpdate string            `json:"last_update"`
	RunID      string            `json:"run_id,omitempty"`
	Added      map[string]int    `json:"added"`
	Running    bool              `json:"running"`
	Report     *reconcile.Report `json:"report,omitempty"`
}

// Tracker holds the latest pass for the HTTP endpoint.
type Tracker struct {
	mu      sync.RWMutex
	last    *reconcile.Report
	running bool
}

// SetRunning marks a pass as in progress (or not).
func (t *Tracker) SetRunning(v bool) {
	t.mu.Lock()
	t.running = v
	t.mu.Unlock()
}

// Set records a finished pass.
func (t *Tracker) Set(rep reconcile.Report) {
	t.mu.Lock()
	t.last = &rep
	t.mu.Unlock()
}

// Snapshot returns the current state. LastUpdate is empty until a pass has finished.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Snapshot{Added: map[string]int{}, Running: t.running}
	if t.last != nil {
		rep := *t.last
		s.LastUpdate = rep.Finished.Local().Format(TimeFormat)
		s.RunID = rep.RunID
		s.Added = rep.Added()
		s.Report = &rep
	}
	return s
}

// Handler serves /state, /metrics and /healthz. root is the output folder checked by /healthz.
func Handler(t *Tracker, root string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(t.Snapshot())
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health.CheckDir(root); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve runs the HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
