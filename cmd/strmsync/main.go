// Command strmsync mirrors an Xtream panel catalog as .strm pointer files.
//
//	run      Create the output tree, serve /state and /metrics, and run passes on schedule (SIGHUP = pass now).
//	sync     Run one pass now and exit.
//	probe    Check provider credentials and print the account status.
//	history  Print what the history file holds; -runs N lists recent passes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/snapetech/strmsync/internal/config"
	"github.com/snapetech/strmsync/internal/health"
	"github.com/snapetech/strmsync/internal/history"
	"github.com/snapetech/strmsync/internal/logger"
	"github.com/snapetech/strmsync/internal/reconcile"
	"github.com/snapetech/strmsync/internal/scheduler"
	"github.com/snapetech/strmsync/internal/state"
)

func main() {
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runConfig := runCmd.String("config", "", "YAML config file (default: strmsync.yaml if present)")
	runBoot := runCmd.Bool("sync-on-boot", false, "Run a pass immediately (same as sync_on_boot)")

	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)
	syncConfig := syncCmd.String("config", "", "YAML config file")
	syncDry := syncCmd.Bool("dry-run", false, "Log what would be written; touch nothing and keep history as is")
	syncLayout := syncCmd.String("layout", "", "Override layout: basic or extended")

	probeCmd := flag.NewFlagSet("probe", flag.ExitOnError)
	probeConfig := probeCmd.String("config", "", "YAML config file")

	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	historyConfig := historyCmd.String("config", "", "YAML config file")
	historyRuns := historyCmd.Int("runs", 0, "Also list the last N passes from the state database")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <run|sync|probe|history> [flags]\n", os.Args[0])
		os.Exit(2)
	}
	if err := config.LoadEnvFile(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	log := logger.Default

	switch os.Args[1] {
	case "run":
		_ = runCmd.Parse(os.Args[2:])
		cfg := mustConfig(*runConfig, "", true)
		if *runBoot {
			cfg.SyncOnBoot = true
		}
		if err := serve(cfg, log); err != nil {
			log.Fatalf("run: %v", err)
		}

	case "sync":
		_ = syncCmd.Parse(os.Args[2:])
		cfg := mustConfig(*syncConfig, *syncLayout, true)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a, err := newApp(cfg, log)
		if err != nil {
			log.Fatalf("sync: %v", err)
		}
		rep, err := a.pass(ctx, *syncDry)
		a.Close()
		if err != nil {
			log.Fatalf("sync: %v", err)
		}
		printReport(rep)

	case "probe":
		_ = probeCmd.Parse(os.Args[2:])
		cfg := mustConfig(*probeConfig, "", true)
		if err := probe(cfg, log); err != nil {
			fmt.Fprintf(os.Stderr, "probe: %v\n", err)
			os.Exit(1)
		}

	case "history":
		_ = historyCmd.Parse(os.Args[2:])
		cfg := mustConfig(*historyConfig, "", false)
		if err := showHistory(cfg, *historyRuns); err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

// mustConfig loads configuration, applies a layout override and configures the default logger.
// validate is off for commands that only read local state.
func mustConfig(path, layoutOverride string, validate bool) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if layoutOverride != "" {
		cfg.Layout = layoutOverride
	}
	logger.Default.Configure(cfg.LogLevel, cfg.SafeLogs, cfg.Secrets()...)
	if validate {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
	return cfg
}

// serve is the long-running daemon: state server, cron passes, SIGHUP passes.
func serve(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.ListenAddr != "" {
		go func() {
			log.Logf("state: listening on %s (/state, /metrics, /healthz)", cfg.ListenAddr)
			if err := state.Serve(ctx, cfg.ListenAddr, state.Handler(a.tracker, cfg.StrmFolder)); err != nil {
				log.Errorf("state: %v", err)
			}
		}()
	}

	spec, err := cfg.ScheduleSpec()
	if err != nil {
		return err
	}
	sched, err := scheduler.New(ctx, spec, func(ctx context.Context) {
		if _, err := a.pass(ctx, false); err != nil {
			log.Errorf("%v", err)
		}
	}, log)
	if err != nil {
		return err
	}
	sched.Start()
	if cfg.SyncOnBoot {
		go sched.Trigger("boot")
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			log.Log("shutting down; waiting for the running pass to save")
			sched.Stop()
			return nil
		case <-hup:
			go sched.Trigger("signal")
		}
	}
}

func probe(cfg *config.Config, log logger.Logger) error {
	client := newClient(cfg, log)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
	defer cancel()
	acct, err := health.CheckProvider(ctx, client)
	if acct != nil {
		fmt.Printf("user:        %s\n", acct.UserInfo.Username)
		fmt.Printf("status:      %s\n", acct.UserInfo.Status)
		exp := "never"
		if n := acct.UserInfo.ExpDate.Int(); n > 0 {
			exp = time.Unix(int64(n), 0).Format(state.TimeFormat)
		}
		fmt.Printf("expires:     %s\n", exp)
		fmt.Printf("connections: %s/%s\n", acct.UserInfo.ActiveCons, acct.UserInfo.MaxConnections)
		if acct.ServerInfo.Timezone != "" {
			fmt.Printf("timezone:    %s\n", acct.ServerInfo.Timezone)
		}
		fmt.Printf("playback:    %s\n", client.StreamBase())
	}
	return err
}

func showHistory(cfg *config.Config, runs int) error {
	h, err := history.Load(cfg.HistoryFile)
	if err != nil {
		return err
	}
	counts := h.Counts()
	fmt.Printf("history: %s\n", cfg.HistoryFile)
	for _, d := range []string{history.Movies, history.Live, history.Series} {
		fmt.Printf("  %-7s %d\n", d, counts[d])
	}
	if runs <= 0 {
		return nil
	}
	ledger, err := state.OpenLedger(cfg.StateDB)
	if err != nil {
		return err
	}
	defer ledger.Close()
	reps, err := ledger.Recent(context.Background(), runs)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tFINISHED\tLAYOUT\tMOVIES\tLIVE\tSERIES\tFAILED\t")
	for _, r := range reps {
		note := ""
		if r.DryRun {
			note = " (dry run)"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t+%d\t+%d\t+%d\t%d\t\n",
			shortID(r.RunID), note, r.Finished.Local().Format(state.TimeFormat), r.Layout,
			r.Movies.Added, r.Live.Added, r.Series.Added,
			r.Movies.Failed+r.Live.Failed+r.Series.Failed)
	}
	return tw.Flush()
}

func printReport(rep reconcile.Report) {
	added := rep.Added()
	domains := make([]string, 0, len(added))
	for d := range added {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	fmt.Printf("pass %s (%s layout) finished %s\n", rep.RunID, rep.Layout, rep.Finished.Local().Format(state.TimeFormat))
	for _, d := range domains {
		fmt.Printf("  %-7s +%d\n", d, added[d])
	}
	if rep.HistoryWarning != "" {
		fmt.Printf("  warning: %s\n", rep.HistoryWarning)
	}
	if rep.DryRun {
		fmt.Println("  dry run: nothing written, history unchanged")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
