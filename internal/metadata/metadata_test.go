package metadata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/strmsync/internal/logger"
)

type fakeLookup struct {
	calls atomic.Int32
	delay time.Duration
	years map[string]string
	err   error
}

func (f *fakeLookup) Year(ctx context.Context, title string, kind Kind) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	if y, ok := f.years[title]; ok {
		return y, nil
	}
	return "", ErrNoMatch
}

func quiet() logger.Logger { return logger.New(io.Discard) }

func TestResolve_catalogYearWins(t *testing.T) {
	f := &fakeLookup{years: map[string]string{"Movie": "1999"}}
	r, err := Open("", f, quiet())
	require.NoError(t, err)
	assert.Equal(t, "2020", r.Resolve(context.Background(), "2020", "Movie", KindMovie))
	assert.Equal(t, "2021", r.Resolve(context.Background(), "2021-03-04", "Movie", KindMovie))
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestResolve_placeholderLooksUp(t *testing.T) {
	f := &fakeLookup{years: map[string]string{"Movie": "1999"}}
	r, err := Open("", f, quiet())
	require.NoError(t, err)
	for _, placeholder := range []string{"", "0", "0000", "N/A"} {
		assert.Equal(t, "1999", r.Resolve(context.Background(), placeholder, "Movie", KindMovie))
	}
	assert.Equal(t, int32(1), f.calls.Load(), "cached after first lookup")
}

func TestYear_unknownOnMissAndError(t *testing.T) {
	r, err := Open("", &fakeLookup{}, quiet())
	require.NoError(t, err)
	assert.Equal(t, "Unknown", r.Year(context.Background(), "Nothing", KindTV))

	r, err = Open("", &fakeLookup{err: errors.New("boom")}, quiet())
	require.NoError(t, err)
	assert.Equal(t, "Unknown", r.Year(context.Background(), "Nothing", KindTV))

	r, err = Open("", nil, quiet())
	require.NoError(t, err)
	assert.Equal(t, "Unknown", r.Year(context.Background(), "Anything", KindMovie))
}

func TestYear_singleflight(t *testing.T) {
	f := &fakeLookup{delay: 50 * time.Millisecond, years: map[string]string{"Show": "2010"}}
	r, err := Open("", f, quiet())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "2010", r.Year(context.Background(), "Show", KindTV))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestYear_persistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta", "years.db")
	f := &fakeLookup{years: map[string]string{"Show": "2010"}}
	r, err := Open(path, f, quiet())
	require.NoError(t, err)
	assert.Equal(t, "2010", r.Year(context.Background(), "Show", KindTV))
	require.NoError(t, r.Close())

	f2 := &fakeLookup{}
	r2, err := Open(path, f2, quiet())
	require.NoError(t, err)
	defer r2.Close()
	assert.Equal(t, "2010", r2.Year(context.Background(), "show ", KindTV))
	assert.Equal(t, int32(0), f2.calls.Load())
	assert.Equal(t, "Unknown", r2.Year(context.Background(), "Show", KindMovie), "kind is part of the key")
}

func TestTMDB_Year(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/search/movie":
			if q.Get("query") == "Matrix" {
				w.Write([]byte(`{"results":[{"title":"The Matrix","release_date":""},{"title":"The Matrix","release_date":"1999-03-31"}]}`))
				return
			}
			w.Write([]byte(`{"results":[]}`))
		case "/search/tv":
			w.Write([]byte(`{"results":[{"name":"Dark","first_air_date":"2017-12-01","release_date":"1900-01-01"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tm := &TMDB{APIKey: "k", BaseURL: srv.URL, Client: srv.Client()}
	ctx := context.Background()

	y, err := tm.Year(ctx, "Matrix", KindMovie)
	require.NoError(t, err)
	assert.Equal(t, "1999", y)

	y, err = tm.Year(ctx, "Dark", KindTV)
	require.NoError(t, err)
	assert.Equal(t, "2017", y)

	_, err = tm.Year(ctx, "Nope", KindMovie)
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = tm.Year(ctx, "  ", KindMovie)
	assert.ErrorIs(t, err, ErrNoMatch)

	bad := &TMDB{APIKey: "wrong", BaseURL: srv.URL, Client: srv.Client()}
	_, err = bad.Year(ctx, "Matrix", KindMovie)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoMatch)
}
