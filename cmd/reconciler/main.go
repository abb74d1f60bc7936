package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"arpledger/internal/codec"
	"arpledger/internal/config"
	"arpledger/internal/handler"
	"arpledger/internal/hub"
	"arpledger/internal/ledger"
	"arpledger/internal/reconciler"
	"arpledger/internal/repository/sqlite"
	"arpledger/internal/sink"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search standard locations)")
	once := flag.Bool("once", false, "Poll the ledger once, print the classification and exit")
	export := flag.String("export", "", "With -once, write the Known State to stdout as json or yaml")
	flag.Parse()
	if *export != "" {
		pterm.SetDefaultOutput(os.Stderr)
	}

	cfg, path, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	setupLogging(cfg.Log.Level)

	pterm.DefaultHeader.WithFullWidth().Println("arpledger reconciler")
	if path != "" {
		pterm.Info.Printfln("Config: %s", path)
	} else {
		pterm.Info.Println("Config: built-in defaults")
	}
	pterm.Println(cfg.Summary(config.RoleReconciler))

	if err := cfg.Validate(config.RoleReconciler); err != nil {
		pterm.Error.Println("Invalid configuration:")
		for _, line := range strings.Split(err.Error(), "\n") {
			pterm.Println("  - " + line)
		}
		os.Exit(1)
	}

	var exporter codec.Exporter
	if *export != "" {
		if !*once {
			pterm.Error.Println("-export requires -once")
			os.Exit(1)
		}
		if exporter, err = codec.ForFormat(*export); err != nil {
			pterm.Error.Println(err.Error())
			os.Exit(1)
		}
	}

	if err := run(cfg, *once, exporter); err != nil {
		logrus.Fatalf("Reconciler: %v", err)
	}
}

func run(cfg *config.Config, once bool, exporter codec.Exporter) error {
	client, closer, ledgerRepo, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks := sink.Multi{sink.Log{}}

	if cfg.Sink.DashboardURL != "" {
		dash, err := sink.NewHTTP(sink.HTTPConfig{
			BaseURL: cfg.Sink.DashboardURL,
			Timeout: cfg.Sink.Timeout.Duration(),
			HTTP2:   cfg.Sink.HTTP2,
		})
		if err != nil {
			return fmt.Errorf("dashboard sink: %w", err)
		}
		sinks = append(sinks, dash)
	}

	journal, err := openJournal(cfg, ledgerRepo)
	if err != nil {
		return err
	}
	if journal != nil {
		if journal != ledgerRepo {
			defer journal.Close()
		}
		sinks = append(sinks, sink.Journal{Store: journal})
	}

	var stream *hub.Hub
	if cfg.Reconciler.Listen != "" && !once {
		stream = hub.New()
		sinks = append(sinks, sink.Live{Publisher: stream})
	}

	rec := reconciler.New(client, sinks, reconciler.Options{
		Interval:      cfg.Reconciler.Interval.Duration(),
		EmitUnchanged: cfg.Reconciler.EmitUnchanged,
		SinkTimeout:   cfg.Sink.Timeout.Duration(),
	})

	if once {
		res := rec.PollOnce(ctx)
		if res.Skipped {
			return errors.New("ledger query failed")
		}
		if exporter != nil {
			return exporter.Export(codec.SnapshotBindings(rec.Known()), os.Stdout)
		}
		printTotals(rec.Totals())
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rec.Run(ctx) })

	if stream != nil {
		g.Go(func() error {
			stream.Run(ctx)
			return nil
		})
		g.Go(func() error {
			return serve(ctx, cfg.Reconciler.Listen, rec, journal, ledgerRepo, stream)
		})
	}

	err = g.Wait()
	printTotals(rec.Totals())
	return err
}

// openJournal returns the event journal: the ledger database itself when the
// ledger is embedded, or a separate file when sink.journal_path is set
func openJournal(cfg *config.Config, ledgerRepo *sqlite.Repository) (*sqlite.Repository, error) {
	if cfg.Sink.JournalPath == "" {
		return ledgerRepo, nil
	}
	if ledgerRepo != nil && cfg.Sink.JournalPath == cfg.Ledger.SQLite.Path {
		return ledgerRepo, nil
	}
	repo, err := sqlite.New(cfg.Sink.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("event journal: %w", err)
	}
	logrus.Infof("Reconciler: journaling events to %s", cfg.Sink.JournalPath)
	return repo, nil
}

func serve(ctx context.Context, addr string, rec *reconciler.Reconciler, journal, ledgerRepo *sqlite.Repository, stream *hub.Hub) error {
	var events handler.EventStore
	if journal != nil {
		events = journal
	}
	h := handler.New(events, rec, stream)
	if ledgerRepo != nil {
		h.SetHistoryStore(ledgerRepo)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	server := &http.Server{
		Addr:        addr,
		Handler:     handler.Chain(mux, handler.Recover, handler.CORS, handler.Logger),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Reconciler: serving on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Reconciler: server shutdown error: %v", err)
	}
	return nil
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func printTotals(t reconciler.Totals) {
	pterm.DefaultSection.Println("Reconciler summary")
	data := pterm.TableData{
		{"Counter", "Value"},
		{"polls", fmt.Sprint(t.Polls)},
		{"skipped", fmt.Sprint(t.Skipped)},
		{"new", fmt.Sprint(t.New)},
		{"unchanged", fmt.Sprint(t.Unchanged)},
		{"changed", fmt.Sprint(t.Changed)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		logrus.Warnf("Failed to render summary: %v", err)
	}
	if t.Changed > 0 {
		pterm.Warning.Printfln("%d hardware address change(s) detected", t.Changed)
	}
}
