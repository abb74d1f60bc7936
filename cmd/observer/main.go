package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"arpledger/internal/config"
	"arpledger/internal/core/bootstrap"
	"arpledger/internal/domain"
	"arpledger/internal/ledger"
	"arpledger/internal/observer"
	"arpledger/internal/source"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search standard locations)")
	checkOnly := flag.Bool("check", false, "Validate config, run preflight checks and exit")
	flag.Parse()

	cfg, path, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	setupLogging(cfg.Log.Level)

	pterm.DefaultHeader.WithFullWidth().Println("arpledger observer")
	if path != "" {
		pterm.Info.Printfln("Config: %s", path)
	} else {
		pterm.Info.Println("Config: built-in defaults")
	}
	pterm.Println(cfg.Summary(config.RoleObserver))

	if err := cfg.Validate(config.RoleObserver); err != nil {
		pterm.Error.Println("Invalid configuration:")
		for _, line := range strings.Split(err.Error(), "\n") {
			pterm.Println("  - " + line)
		}
		os.Exit(1)
	}

	report := bootstrap.Run(cfg)
	printReport(report)
	if !report.OK() {
		pterm.Error.Println("Preflight checks failed")
		os.Exit(1)
	}
	if *checkOnly {
		return
	}

	if err := run(cfg); err != nil {
		logrus.Fatalf("Observer: %v", err)
	}
}

func run(cfg *config.Config) error {
	client, closer, _, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	var falsifier *observer.Falsifier
	if cfg.Byzantine.Enabled {
		targets, err := normalizeTargets(cfg.Byzantine.Targets)
		if err != nil {
			return err
		}
		falsifier = observer.NewFalsifier(cfg.FalsifyOffset(), targets)
		pterm.Warning.Printfln("Byzantine mode: falsifying bindings for %v", targets)
	}

	agent := observer.NewAgent(client, observer.Options{
		ObserverID: cfg.Observer.ID,
		Interface:  cfg.Observer.Interface,
		Dedup:      cfg.Observer.Dedup,
		Workers:    cfg.WorkerCount(),
		Falsifier:  falsifier,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d := cfg.Observer.StartupDelay.Duration(); d > 0 {
		logrus.Infof("Observer: waiting %s before starting", d)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	started := time.Now()

	g.Go(func() error {
		// a finite source ends the whole process
		defer cancel()
		return agent.Run(ctx, src)
	})

	if falsifier != nil && cfg.Byzantine.Inject.Enabled {
		tx, err := observer.NewARPTransmitter(cfg.Observer.Interface)
		if err != nil {
			cancel()
			g.Wait()
			return fmt.Errorf("injector: %w", err)
		}
		defer tx.Close()

		inj := observer.NewInjector(falsifier, tx,
			cfg.Byzantine.Inject.Interval.Duration(),
			cfg.Byzantine.Inject.Victim,
			cfg.Byzantine.Inject.DefaultFakeHWAddr)
		g.Go(func() error { return inj.Run(ctx) })
	}

	logrus.Infof("Observer: %s running", cfg.Observer.ID)
	err = g.Wait()

	printStats(agent.Stats(), time.Since(started))
	return err
}

func buildSource(cfg *config.Config) (source.Source, error) {
	s := cfg.Source
	switch s.Kind {
	case config.SourceCapture:
		return source.NewCapture(cfg.Observer.Interface), nil
	case config.SourceNmap:
		return source.NewNmapSweep(s.Nmap.Targets, cfg.Observer.Interface,
			s.Nmap.Interval.Duration(), s.Nmap.Timeout.Duration()), nil
	case config.SourceNeigh:
		return source.NewNeighbors(s.Neigh.Path, s.Neigh.Interval.Duration()), nil
	case config.SourceSSH:
		var password string
		if s.SSH.PasswordEnv != "" {
			password = os.Getenv(s.SSH.PasswordEnv)
		}
		return source.NewSSHNeighbors(source.SSHConfig{
			Host:           s.SSH.Host,
			Port:           s.SSH.Port,
			User:           s.SSH.User,
			KeyPath:        s.SSH.KeyPath,
			Password:       password,
			KnownHostsPath: s.SSH.KnownHostsPath,
			Interval:       s.SSH.Interval.Duration(),
			Timeout:        s.SSH.Timeout.Duration(),
		})
	case config.SourceStream:
		return source.NewStream(s.Stream.Path, cfg.Observer.Interface), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", s.Kind)
	}
}

func normalizeTargets(targets []string) ([]string, error) {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		ip, err := domain.NormalizeIP(t)
		if err != nil {
			return nil, fmt.Errorf("byzantine target: %w", err)
		}
		out = append(out, ip)
	}
	return out, nil
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

func printReport(r *bootstrap.Report) {
	data := pterm.TableData{{"Check", "Status", "Required", "Detail"}}
	for _, c := range r.Checks {
		status := pterm.Green("ok")
		if !c.OK {
			status = pterm.Yellow("missing")
			if c.Required {
				status = pterm.Red("FAILED")
			}
		}
		data = append(data, []string{c.Name, status, fmt.Sprint(c.Required), c.Detail})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		logrus.Warnf("Failed to render preflight table: %v", err)
	}
}

func printStats(s observer.Stats, uptime time.Duration) {
	pterm.DefaultSection.Println("Observer summary")
	data := pterm.TableData{
		{"Counter", "Value"},
		{"uptime", uptime.Round(time.Second).String()},
		{"observed", fmt.Sprint(s.Observed)},
		{"malformed", fmt.Sprint(s.Malformed)},
		{"suppressed", fmt.Sprint(s.Suppressed)},
		{"submitted", fmt.Sprint(s.Submitted)},
		{"failed", fmt.Sprint(s.Failed)},
		{"falsified", fmt.Sprint(s.Falsified)},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		logrus.Warnf("Failed to render summary: %v", err)
	}
}
