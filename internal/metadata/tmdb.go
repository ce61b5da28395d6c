// Package metadata resolves release years for titles whose catalog entry carries none.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/snapetech/strmsync/internal/httpclient"
	"github.com/snapetech/strmsync/internal/sanitize"
)

// ErrNoMatch is returned when the lookup service knows no year for a title.
var ErrNoMatch = errors.New("no metadata match")

// Kind is the media kind searched for.
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// Lookup finds the release year ("2019") of a title.
type Lookup interface {
	Year(ctx context.Context, title string, kind Kind) (string, error)
}

// DefaultTMDBURL is the TMDB v3 API root.
const DefaultTMDBURL = "https://api.themoviedb.org/3"

// TMDB looks years up with the TMDB search endpoints.
type TMDB struct {
	APIKey   string
	Language string
	BaseURL  string
	Client   *http.Client
}

// NewTMDB returns a TMDB lookup using the shared HTTP client.
func NewTMDB(apiKey, language string, timeout time.Duration) *TMDB {
	client := httpclient.Default()
	if timeout > 0 {
		client = httpclient.WithTimeout(timeout)
	}
	return &TMDB{APIKey: apiKey, Language: language, BaseURL: DefaultTMDBURL, Client: client}
}

type searchResponse struct {
	Results []struct {
		Title        string `json:"title"`
		Name         string `json:"name"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"results"`
}

func (t *TMDB) Year(ctx context.Context, title string, kind Kind) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", ErrNoMatch
	}
	q := url.Values{}
	q.Set("api_key", t.APIKey)
	q.Set("query", title)
	if t.Language != "" {
		q.Set("language", t.Language)
	}
	endpoint := strings.TrimSuffix(t.BaseURL, "/") + "/search/" + string(kind) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	client := t.Client
	if client == nil {
		client = httpclient.Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tmdb search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("tmdb search: HTTP %d", resp.StatusCode)
	}
	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("tmdb search: decode: %w", err)
	}
	for _, r := range sr.Results {
		date := r.ReleaseDate
		if kind == KindTV {
			date = r.FirstAirDate
		}
		if y := sanitize.YearFrom(date); y != "" {
			return y, nil
		}
	}
	return "", ErrNoMatch
}
