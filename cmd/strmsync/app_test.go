package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/strmsync/internal/config"
	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/xtream"
)

func fakePanel(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "":
			w.Write([]byte(`{"user_info":{"username":"u","status":"Active","auth":1,"exp_date":null},"server_info":{"timezone":"UTC"}}`))
		case xtream.ActionVODStreams:
			w.Write([]byte(`[{"stream_id":5,"name":"Movie L","year":"2021","container_extension":"mkv"}]`))
		case xtream.ActionLiveCategories:
			w.Write([]byte(`[{"category_id":"1","category_name":"News"}]`))
		case xtream.ActionLiveStreams:
			w.Write([]byte(`[{"stream_id":7,"name":"CNN","category_id":1}]`))
		case xtream.ActionSeries:
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, apiURL, layoutName string) *config.Config {
	root := t.TempDir()
	return &config.Config{
		APIURL:         apiURL,
		Username:       "u",
		Password:       "p",
		StrmFolder:     root,
		Layout:         layoutName,
		HistoryFile:    filepath.Join(root, "history.json"),
		StateDB:        filepath.Join(root, ".strmsync.db"),
		MetadataCache:  filepath.Join(root, ".metadata.db"),
		Workers:        2,
		RequestTimeout: 2 * time.Second,
		UpdateTime:     "03:00",
	}
}

func TestApp_passRecordsLedger(t *testing.T) {
	srv := fakePanel(t)
	cfg := testConfig(t, srv.URL, config.LayoutBasic)
	a, err := newApp(cfg, logger.New(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	for _, d := range []string{"series", "movies", "live"} {
		assert.DirExists(t, filepath.Join(cfg.StrmFolder, d))
	}

	rep, err := a.pass(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Movies.Added)
	assert.Equal(t, 1, rep.Live.Added)

	b, err := os.ReadFile(filepath.Join(cfg.StrmFolder, "movies", "Movie L.strm"))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/movie/u/p/5.mp4", string(b))

	snap := a.tracker.Snapshot()
	assert.Equal(t, rep.RunID, snap.RunID)
	assert.False(t, snap.Running)

	last, ok, err := a.ledger.Last(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rep.RunID, last.RunID)

	again, err := a.pass(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, again.TotalAdded())
}

func TestApp_extendedDryRun(t *testing.T) {
	srv := fakePanel(t)
	cfg := testConfig(t, srv.URL, config.LayoutExtended)
	a, err := newApp(cfg, logger.New(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	rep, err := a.pass(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 1, rep.Movies.Added)
	assert.NoFileExists(t, cfg.HistoryFile)
	entries, err := os.ReadDir(filepath.Join(cfg.StrmFolder, "Movies"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApp_reloadsLastPass(t *testing.T) {
	srv := fakePanel(t)
	cfg := testConfig(t, srv.URL, config.LayoutBasic)
	a, err := newApp(cfg, logger.New(io.Discard))
	require.NoError(t, err)
	rep, err := a.pass(context.Background(), false)
	require.NoError(t, err)
	a.Close()

	b, err := newApp(cfg, logger.New(io.Discard))
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, rep.RunID, b.tracker.Snapshot().RunID)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestApp_extendedLayout(t *testing.T) {
	srv := fakePanel(t)
	cfg := testConfig(t, srv.URL, config.LayoutExtended)
	a, err := newApp(cfg, logger.New(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.pass(context.Background(), false)
	require.NoError(t, err)

	name := "Movie (2021) - Legendado"
	b, err := os.ReadFile(filepath.Join(cfg.StrmFolder, "Movies", name, name+".strm"))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/movie/u/p/5.mkv", string(b))
	assert.FileExists(t, filepath.Join(cfg.StrmFolder, "Live", "News", "CNN.strm"))
}
