package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/singleflight"

	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/sanitize"
)

var bucketYears = []byte("years")

const (
	hitTTL  = 24 * time.Hour
	missTTL = 6 * time.Hour
)

// Resolver answers year questions for the extended layout. Found years are kept in memory and,
// when a path is given, in a bolt file so restarts do not repeat lookups. Misses are only
// remembered in memory. Concurrent lookups of one title share a single request.
type Resolver struct {
	lookup Lookup
	mem    *gocache.Cache
	db     *bolt.DB
	group  singleflight.Group
	log    logger.Logger
}

// Open returns a Resolver. lookup may be nil (catalog years only); path may be empty (memory only).
func Open(path string, lookup Lookup, log logger.Logger) (*Resolver, error) {
	if log == nil {
		log = logger.Default
	}
	r := &Resolver{
		lookup: lookup,
		mem:    gocache.New(hitTTL, time.Hour),
		log:    log,
	}
	if path == "" {
		return r, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("metadata cache: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("metadata cache: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketYears)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata cache: %w", err)
	}
	r.db = db
	return r, nil
}

func (r *Resolver) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func cacheKey(title string, kind Kind) string {
	return string(kind) + ":" + strings.ToLower(strings.TrimSpace(title))
}

// Resolve returns catalogYear when it is a real year, else the looked-up year, else "Unknown".
func (r *Resolver) Resolve(ctx context.Context, catalogYear, title string, kind Kind) string {
	if y := sanitize.YearFrom(catalogYear); y != "" {
		return y
	}
	return r.Year(ctx, title, kind)
}

// Year looks title up, never failing: any miss or error yields "Unknown".
func (r *Resolver) Year(ctx context.Context, title string, kind Kind) string {
	key := cacheKey(title, kind)
	if v, ok := r.mem.Get(key); ok {
		return v.(string)
	}
	if y := r.stored(key); y != "" {
		r.mem.Set(key, y, hitTTL)
		return y
	}
	if r.lookup == nil || strings.TrimSpace(title) == "" {
		return sanitize.Unknown
	}
	v, _, _ := r.group.Do(key, func() (any, error) {
		y, err := r.lookup.Year(ctx, title, kind)
		if err != nil {
			if !errors.Is(err, ErrNoMatch) {
				r.log.Debugf("metadata: %s %q: %v", kind, title, err)
			}
			if ctx.Err() == nil {
				r.mem.Set(key, sanitize.Unknown, missTTL)
			}
			return sanitize.Unknown, nil
		}
		r.mem.Set(key, y, hitTTL)
		r.store(key, y)
		return y, nil
	})
	return v.(string)
}

func (r *Resolver) stored(key string) string {
	if r.db == nil {
		return ""
	}
	var y string
	_ = r.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketYears); b != nil {
			if v := b.Get([]byte(key)); v != nil {
				y = string(v)
			}
		}
		return nil
	})
	return y
}

func (r *Resolver) store(key, year string) {
	if r.db == nil {
		return
	}
	if err := r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketYears).Put([]byte(key), []byte(year))
	}); err != nil {
		r.log.Debugf("metadata: persist %s: %v", key, err)
	}
}
