package state

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/strmsync/internal/reconcile"
)

func report(id string, finished time.Time, movies int) reconcile.Report {
	return reconcile.Report{
		RunID:    id,
		Started:  finished.Add(-time.Minute),
		Finished: finished,
		Layout:   "basic",
		Movies:   reconcile.DomainStats{Seen: movies, Added: movies},
		Live:     reconcile.DomainStats{Added: 2, Failed: 1},
	}
}

func TestLedger_recordRecent(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "db", "state.db"))
	require.NoError(t, err)
	defer l.Close()
	ctx := context.Background()

	_, ok, err := l.Last(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, l.Record(ctx, report("a", now.Add(-2*time.Hour), 1)))
	require.NoError(t, l.Record(ctx, report("b", now.Add(-time.Hour), 2)))
	require.NoError(t, l.Record(ctx, report("c", now, 3)))
	require.NoError(t, l.Record(ctx, report("c", now, 4)), "re-recording replaces")

	reps, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, "c", reps[0].RunID)
	assert.Equal(t, 4, reps[0].Movies.Added)
	assert.Equal(t, "b", reps[1].RunID)
	assert.True(t, reps[0].Finished.Equal(now))

	last, ok, err := l.Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", last.RunID)

	n, err := l.Prune(ctx, now.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	all, err := l.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTracker_snapshot(t *testing.T) {
	var tr Tracker
	s := tr.Snapshot()
	assert.Empty(t, s.LastUpdate)
	assert.NotNil(t, s.Added)

	fin := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
	tr.Set(report("run-1", fin, 3))
	tr.SetRunning(true)
	s = tr.Snapshot()
	assert.Equal(t, "2026-03-04 05:06:07", s.LastUpdate)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 3, s.Added["movies"])
	assert.True(t, s.Running)
}

func TestHandler(t *testing.T) {
	var tr Tracker
	tr.Set(report("run-1", time.Now(), 1))
	root := t.TempDir()
	srv := httptest.NewServer(Handler(&tr, root))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.Added["live"])

	resp2, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)

	resp4, err := http.Post(srv.URL+"/state", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp4.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp4.StatusCode)
}

func TestHandler_unhealthy(t *testing.T) {
	srv := httptest.NewServer(Handler(&Tracker{}, filepath.Join(t.TempDir(), "missing")))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServe_stopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
