// Package reconcile diffs the remote catalog against history and writes pointer files for new items.
package reconcile

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/strmsync/internal/catalog"
	"github.com/snapetech/strmsync/internal/history"
	"github.com/snapetech/strmsync/internal/layout"
	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/metadata"
	"github.com/snapetech/strmsync/internal/metrics"
	"github.com/snapetech/strmsync/internal/sanitize"
	"github.com/snapetech/strmsync/internal/strm"
)

// Catalog is the subset of the panel client the engine needs.
type Catalog interface {
	LiveCategories(ctx context.Context) []catalog.Category
	LiveStreams(ctx context.Context) []catalog.LiveChannel
	VODStreams(ctx context.Context) []catalog.Movie
	SeriesList(ctx context.Context) []catalog.Series
	SeriesInfo(ctx context.Context, seriesID string) (catalog.SeriesInfo, bool)

	MovieURL(id, ext string) string
	LiveURL(id string) string
	EpisodeURL(id, ext string) string
}

// YearResolver supplies years for the extended layout.
type YearResolver interface {
	Resolve(ctx context.Context, catalogYear, title string, kind metadata.Kind) string
}

// Engine runs reconciliation passes. Fields are read-only once a pass starts.
type Engine struct {
	Catalog Catalog
	Writer  strm.Writer
	Layout  layout.Layout
	Root    string       // strm_folder
	Workers int          // per-domain pool size; default 2*NumCPU via config
	Years   YearResolver // extended layout only; nil = catalog years or "Unknown"
	Log     logger.Logger
}

// DomainStats counts what happened to the items of one domain.
type DomainStats struct {
	Seen    int `json:"seen"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Report summarizes one pass.
type Report struct {
	RunID    string      `json:"run_id"`
	Started  time.Time   `json:"started"`
	Finished time.Time   `json:"finished"`
	Layout   string      `json:"layout"`
	DryRun   bool        `json:"dry_run"`
	Movies   DomainStats `json:"movies"`
	Live     DomainStats `json:"live"`
	Series   DomainStats `json:"series"`
	// HistoryWarning is set when the history file was unreadable and the pass started from empty.
	HistoryWarning string `json:"history_warning,omitempty"`
	Canceled       bool   `json:"canceled,omitempty"`
}

// Added returns added counts keyed by domain.
func (r Report) Added() map[string]int {
	return map[string]int{history.Movies: r.Movies.Added, history.Live: r.Live.Added, history.Series: r.Series.Added}
}

// TotalAdded sums added items across domains.
func (r Report) TotalAdded() int {
	return r.Movies.Added + r.Live.Added + r.Series.Added
}

// outcome is what one job produced. Only the aggregating goroutine reads these.
type outcome struct {
	entries []history.Entry
	skipped int
	failed  int
}

type pass struct {
	*Engine
	ctx    context.Context
	hist   *history.Store
	claims *xsync.MapOf[string, struct{}]
	log    logger.Logger
}

// claim reports whether key is seen for the first time in this pass.
func (p *pass) claim(domain, partition, id string) bool {
	_, loaded := p.claims.LoadOrStore(domain+"\x00"+partition+"\x00"+id, struct{}{})
	return !loaded
}

func (p *pass) workers() int {
	if p.Workers < 1 {
		return 1
	}
	return p.Workers
}

// fanOut runs job(i) for i in [0,n) on the bounded pool and returns the outcomes in index order.
// Once ctx is done no new jobs are started; outcomes of finished jobs are still returned.
func (p *pass) fanOut(n int, job func(i int) outcome) []outcome {
	results := make([]outcome, n)
	var g errgroup.Group
	g.SetLimit(p.workers())
	for i := 0; i < n; i++ {
		if p.ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			results[i] = job(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// merge folds outcomes into history and stats. Called on the pass goroutine only.
func (p *pass) merge(domain string, stats *DomainStats, results []outcome) {
	for _, r := range results {
		stats.Added += p.hist.Merge(r.entries)
		stats.Skipped += r.skipped
		stats.Failed += r.failed
	}
	metrics.Items.WithLabelValues(domain, metrics.ResultAdded).Add(float64(stats.Added))
	metrics.Items.WithLabelValues(domain, metrics.ResultSkipped).Add(float64(stats.Skipped))
	metrics.Items.WithLabelValues(domain, metrics.ResultFailed).Add(float64(stats.Failed))
}

// write stores url at path; failures are logged and counted, never fatal.
func (p *pass) write(path, url string) bool {
	if err := p.Writer.Write(path, url); err != nil {
		p.log.Errorf("reconcile: %v", err)
		return false
	}
	return true
}

// Run performs one pass against h: categories, then movies, live and series.
// h is mutated in place; saving it is the caller's job (see Sync).
func (e *Engine) Run(ctx context.Context, h *history.Store) Report {
	log := e.Log
	if log == nil {
		log = logger.Default
	}
	runID := uuid.NewString()
	if dl, ok := log.(*logger.DefaultLogger); ok {
		log = dl.With("run", runID[:8])
	}
	rep := Report{RunID: runID, Started: time.Now(), Layout: e.Layout.String()}
	_, rep.DryRun = e.Writer.(strm.DryRun)

	p := &pass{Engine: e, ctx: ctx, hist: h, claims: xsync.NewMapOf[string, struct{}](), log: log}

	categories := catalog.CategoryNames(e.Catalog.LiveCategories(ctx))
	p.movies(&rep.Movies)
	p.live(&rep.Live, categories)
	p.series(&rep.Series)

	rep.Canceled = ctx.Err() != nil
	rep.Finished = time.Now()
	for domain, n := range h.Counts() {
		metrics.HistorySize.WithLabelValues(domain).Set(float64(n))
	}
	log.Logf("reconcile: pass done in %s: movies +%d (skip %d, fail %d), live +%d (skip %d, fail %d), series +%d (skip %d, fail %d)",
		rep.Finished.Sub(rep.Started).Round(time.Millisecond),
		rep.Movies.Added, rep.Movies.Skipped, rep.Movies.Failed,
		rep.Live.Added, rep.Live.Skipped, rep.Live.Failed,
		rep.Series.Added, rep.Series.Skipped, rep.Series.Failed)
	return rep
}

func (p *pass) year(catalogYears []string, rawTitle string, kind metadata.Kind) string {
	for _, y := range catalogYears {
		if v := sanitize.YearFrom(y); v != "" {
			return v
		}
	}
	bare, y := sanitize.SplitTitleYear(rawTitle)
	if y > 0 {
		return strconv.Itoa(y)
	}
	if p.Years == nil {
		return sanitize.Unknown
	}
	return p.Years.Resolve(p.ctx, "", bare, kind)
}

func (p *pass) movies(stats *DomainStats) {
	list := p.Catalog.VODStreams(p.ctx)
	stats.Seen = len(list)
	results := p.fanOut(len(list), func(i int) outcome {
		m := list[i]
		id := string(m.StreamID)
		if id == "" || p.hist.HasMovie(id) || !p.claim(history.Movies, "", id) {
			return outcome{skipped: 1}
		}
		year := ""
		if p.Layout.Extended {
			year = p.year([]string{string(m.Year), m.Released()}, m.Name, metadata.KindMovie)
		}
		title := p.Layout.Title(m.Name, year)
		url := p.Catalog.MovieURL(id, p.Layout.MovieExt(m.ContainerExtension))
		if !p.write(p.Layout.MoviePath(p.Root, title), url) {
			return outcome{failed: 1}
		}
		return outcome{entries: []history.Entry{{Domain: history.Movies, ID: id}}}
	})
	p.merge(history.Movies, stats, results)
}

func (p *pass) live(stats *DomainStats, categories map[string]string) {
	list := p.Catalog.LiveStreams(p.ctx)
	stats.Seen = len(list)
	results := p.fanOut(len(list), func(i int) outcome {
		ch := list[i]
		id := string(ch.StreamID)
		catName, ok := categories[string(ch.CategoryID)]
		if !ok {
			catName = layout.OtherCategory
		}
		key := layout.CategoryKey(catName)
		if id == "" || p.hist.HasLive(key, id) || !p.claim(history.Live, key, id) {
			return outcome{skipped: 1}
		}
		if !p.write(p.Layout.LivePath(p.Root, catName, ch.Name), p.Catalog.LiveURL(id)) {
			return outcome{failed: 1}
		}
		return outcome{entries: []history.Entry{{Domain: history.Live, Partition: key, ID: id}}}
	})
	p.merge(history.Live, stats, results)
}

func (p *pass) series(stats *DomainStats) {
	list := p.Catalog.SeriesList(p.ctx)
	results := p.fanOut(len(list), func(i int) outcome {
		s := list[i]
		sid := s.Key()
		if sid == "" || !p.claim(history.Series, "", sid) {
			return outcome{}
		}
		info, ok := p.Catalog.SeriesInfo(p.ctx, sid)
		if !ok || len(info.Episodes) == 0 {
			return outcome{}
		}
		year := ""
		if p.Layout.Extended {
			year = p.year([]string{string(s.Year), s.ReleaseDate, string(info.Info.Year), info.Info.ReleaseDate}, s.Name, metadata.KindTV)
		}
		title := p.Layout.Title(s.Name, year)

		var out outcome
		for _, season := range sortedSeasons(info.Episodes) {
			for _, ep := range info.Episodes[season] {
				eid := string(ep.ID)
				if eid == "" || p.hist.HasEpisode(sid, season, eid) || !p.claim(history.Series, sid+"/"+season, eid) {
					out.skipped++
					continue
				}
				if p.ctx.Err() != nil {
					return out
				}
				url := p.Catalog.EpisodeURL(eid, p.Layout.EpisodeExt(ep.ContainerExtension))
				if !p.write(p.Layout.EpisodePath(p.Root, title, season, ep), url) {
					out.failed++
					continue
				}
				out.entries = append(out.entries, history.Entry{Domain: history.Series, Partition: sid, Key: season, ID: eid})
			}
		}
		return out
	})
	for _, r := range results {
		stats.Seen += len(r.entries) + r.skipped + r.failed
	}
	p.merge(history.Series, stats, results)
}

// sortedSeasons orders season labels numerically where possible so output is deterministic.
func sortedSeasons(m map[string][]catalog.Episode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
