// Package history persists which catalog ids already have pointer files.
//
// On disk the document is
//
//	{"movies": ["5"], "live": {"News": ["7"]}, "series": {"9": {"1": ["10", "11"]}}}
//
// Entries are never removed: a pass only ever unions new ids in.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
)

// ErrCorrupt is reported by Load when the file exists but cannot be decoded.
var ErrCorrupt = errors.New("history file is corrupt")

// Domains.
const (
	Movies = "movies"
	Live   = "live"
	Series = "series"
)

// Set is a set of ids.
type Set map[string]struct{}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func setOf(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Store is the in-memory history. It is not safe for concurrent mutation: the reconcile engine
// reads it from workers during a domain's fan-out and writes it only after the join.
type Store struct {
	movies Set
	live   map[string]Set            // category -> ids
	series map[string]map[string]Set // series id -> season label -> episode ids
}

// New returns an empty store.
func New() *Store {
	return &Store{
		movies: make(Set),
		live:   make(map[string]Set),
		series: make(map[string]map[string]Set),
	}
}

// HasMovie reports whether movie id is recorded.
func (s *Store) HasMovie(id string) bool { return s.movies.Has(id) }

// HasLive reports whether channel id is recorded under category.
func (s *Store) HasLive(category, id string) bool { return s.live[category].Has(id) }

// HasEpisode reports whether episode id is recorded under series/season.
func (s *Store) HasEpisode(seriesID, season, id string) bool {
	return s.series[seriesID][season].Has(id)
}

// Entry addresses one recorded id. Partition is empty for movies, the category for live,
// and Key is the season label for series (Partition is then the series id).
type Entry struct {
	Domain    string
	Partition string
	Key       string
	ID        string
}

// Has reports whether e is recorded.
func (s *Store) Has(e Entry) bool {
	switch e.Domain {
	case Movies:
		return s.HasMovie(e.ID)
	case Live:
		return s.HasLive(e.Partition, e.ID)
	case Series:
		return s.HasEpisode(e.Partition, e.Key, e.ID)
	}
	return false
}

// Add records e, creating intermediate sets on first use. It reports whether e was new.
func (s *Store) Add(e Entry) bool {
	if e.ID == "" {
		return false
	}
	var set Set
	switch e.Domain {
	case Movies:
		set = s.movies
	case Live:
		set = s.live[e.Partition]
		if set == nil {
			set = make(Set)
			s.live[e.Partition] = set
		}
	case Series:
		seasons := s.series[e.Partition]
		if seasons == nil {
			seasons = make(map[string]Set)
			s.series[e.Partition] = seasons
		}
		set = seasons[e.Key]
		if set == nil {
			set = make(Set)
			seasons[e.Key] = set
		}
	default:
		return false
	}
	if set.Has(e.ID) {
		return false
	}
	set[e.ID] = struct{}{}
	return true
}

// Merge adds every entry and returns how many were new.
func (s *Store) Merge(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if s.Add(e) {
			n++
		}
	}
	return n
}

// Counts returns the number of recorded ids per domain.
func (s *Store) Counts() map[string]int {
	live := 0
	for _, set := range s.live {
		live += len(set)
	}
	episodes := 0
	for _, seasons := range s.series {
		for _, set := range seasons {
			episodes += len(set)
		}
	}
	return map[string]int{Movies: len(s.movies), Live: live, Series: episodes}
}

type document struct {
	Movies []string                       `json:"movies"`
	Live   map[string][]string            `json:"live"`
	Series map[string]map[string][]string `json:"series"`
}

func (s *Store) document() document {
	doc := document{
		Movies: s.movies.sorted(),
		Live:   make(map[string][]string, len(s.live)),
		Series: make(map[string]map[string][]string, len(s.series)),
	}
	for cat, set := range s.live {
		doc.Live[cat] = set.sorted()
	}
	for sid, seasons := range s.series {
		m := make(map[string][]string, len(seasons))
		for season, set := range seasons {
			m[season] = set.sorted()
		}
		doc.Series[sid] = m
	}
	return doc
}

// MarshalJSON writes sets as sorted arrays.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.document())
}

// UnmarshalJSON replaces the store's contents. Missing sections decode as empty.
func (s *Store) UnmarshalJSON(b []byte) error {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	fresh := New()
	fresh.movies = setOf(doc.Movies)
	for cat, ids := range doc.Live {
		fresh.live[cat] = setOf(ids)
	}
	for sid, seasons := range doc.Series {
		m := make(map[string]Set, len(seasons))
		for season, ids := range seasons {
			m[season] = setOf(ids)
		}
		fresh.series[sid] = m
	}
	*s = *fresh
	return nil
}

// Load reads path. A missing file yields an empty store and no error. A malformed file yields
// an empty store and an error wrapping ErrCorrupt; the caller may proceed with the store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return New(), fmt.Errorf("history load: %w", err)
	}
	s := New()
	if err := json.Unmarshal(data, s); err != nil {
		return New(), fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return s, nil
}

// Save writes the whole store to path with a temp-file-then-rename so readers never
// see a partially written file.
func (s *Store) Save(path string) error {
	data, err := json.MarshalIndent(s.document(), "", "    ")
	if err != nil {
		return fmt.Errorf("history save: %w", err)
	}
	dir := filepath.Dir(filepath.Clean(path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history save: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json.tmp")
	if err != nil {
		return fmt.Errorf("history save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if writeErr != nil || syncErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("history save: write: %w", writeErr)
		}
		if syncErr != nil {
			return fmt.Errorf("history save: sync: %w", syncErr)
		}
		return fmt.Errorf("history save: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history save: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history save: rename: %w", err)
	}
	return nil
}
