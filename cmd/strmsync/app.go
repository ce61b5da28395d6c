package main

import (
	"context"
	"fmt"
	"time"

	"github.com/snapetech/strmsync/internal/config"
	"github.com/snapetech/strmsync/internal/layout"
	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/metadata"
	"github.com/snapetech/strmsync/internal/reconcile"
	"github.com/snapetech/strmsync/internal/state"
	"github.com/snapetech/strmsync/internal/strm"
	"github.com/snapetech/strmsync/internal/xtream"
)

// ledgerRetention is how long pass reports stay in the state database.
const ledgerRetention = 90 * 24 * time.Hour

// app holds the long-lived pieces shared by every pass.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	layout  layout.Layout
	client  *xtream.Client
	years   *metadata.Resolver
	ledger  *state.Ledger
	tracker *state.Tracker
}

func newApp(cfg *config.Config, log logger.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     log,
		layout:  layout.Layout{Extended: cfg.Extended(), Transliterate: cfg.Transliterate},
		tracker: &state.Tracker{},
	}
	a.client = newClient(cfg, log)
	if err := strm.EnsureDirs(a.layout.Dirs(cfg.StrmFolder)...); err != nil {
		return nil, err
	}
	if a.layout.Extended {
		var lookup metadata.Lookup
		if cfg.TMDBAPIKey != "" {
			lookup = metadata.NewTMDB(cfg.TMDBAPIKey, cfg.TMDBLanguage, cfg.RequestTimeout)
		}
		years, err := metadata.Open(cfg.MetadataCache, lookup, log)
		if err != nil {
			return nil, err
		}
		a.years = years
	}
	ledger, err := state.OpenLedger(cfg.StateDB)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ledger = ledger
	if last, ok, err := ledger.Last(context.Background()); err == nil && ok {
		a.tracker.Set(last)
	}
	return a, nil
}

func newClient(cfg *config.Config, log logger.Logger) *xtream.Client {
	return xtream.New(cfg.APIURL, cfg.Username, cfg.Password, xtream.Options{
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		UserAgent:         cfg.UserAgent,
		Logger:            log,
	})
}

func (a *app) Close() {
	if a.years != nil {
		_ = a.years.Close()
	}
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
}

func (a *app) engine(dryRun bool) *reconcile.Engine {
	e := &reconcile.Engine{
		Catalog: a.client,
		Writer:  strm.FileWriter{},
		Layout:  a.layout,
		Root:    a.cfg.StrmFolder,
		Workers: a.cfg.Workers,
		Log:     a.log,
	}
	if dryRun {
		e.Writer = strm.DryRun{Log: a.log}
	}
	if a.years != nil {
		e.Years = a.years
	}
	return e
}

// pass runs one reconciliation and records it. The ledger outlives cancellation of ctx.
func (a *app) pass(ctx context.Context, dryRun bool) (reconcile.Report, error) {
	a.tracker.SetRunning(true)
	defer a.tracker.SetRunning(false)

	rep, err := a.engine(dryRun).Sync(ctx, a.cfg.HistoryFile)
	if rep.RunID == "" {
		return rep, err
	}
	a.tracker.Set(rep)
	bg := context.Background()
	if lerr := a.ledger.Record(bg, rep); lerr != nil {
		a.log.Warnf("ledger: %v", lerr)
	}
	if n, lerr := a.ledger.Prune(bg, time.Now().Add(-ledgerRetention)); lerr == nil && n > 0 {
		a.log.Debugf("ledger: pruned %d old passes", n)
	}
	if err != nil {
		return rep, fmt.Errorf("pass %s: %w", rep.RunID, err)
	}
	return rep, nil
}
