package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/feedhook/pkg/config"
	"github.com/umputun/feedhook/pkg/domain"
	"github.com/umputun/feedhook/pkg/feed"
	"github.com/umputun/feedhook/pkg/ledger"
	"github.com/umputun/feedhook/pkg/notify"
	"github.com/umputun/feedhook/pkg/proc"
	"github.com/umputun/feedhook/server"
)

// Opts with all CLI options
type Opts struct {
	DryRun   bool `short:"n" long:"dry-run" description:"log payloads instead of delivering, don't save the ledger"`
	Populate bool `short:"p" long:"populate" description:"mark all current entries sent without delivering"`
	MaxAge   int  `short:"m" long:"max-age" default:"30" description:"days to keep ledger records, 0 keeps forever"`

	Daemon   bool          `short:"d" long:"daemon" env:"DAEMON" description:"keep running and poll feeds on an interval"`
	Interval time.Duration `long:"interval" env:"INTERVAL" default:"30m" description:"poll interval in daemon mode"`
	Listen   string        `short:"l" long:"listen" env:"LISTEN" default:":8080" description:"status server listen address, daemon mode only"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`

	Args struct {
		Configs []string `positional-arg-name:"config" required:"1" description:"configuration files, one webhook group per file"`
	} `positional-args:"true" required:"true"`
}

// group is one loaded webhook group, named after its config file
type group struct {
	name string
	cfg  *config.Config
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}

	groups, err := loadGroups(opts.Args.Configs)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	// webhook URLs carry tokens, mask them in all log output
	secrets := make([]string, 0, len(groups))
	for _, g := range groups {
		secrets = append(secrets, g.cfg.Webhook)
	}
	setupLog(opts.Debug, secrets...)

	log.Printf("[INFO] starting feedhook version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err = run(ctx, opts, groups)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// loadGroups reads all configuration files, one webhook group per file
func loadGroups(paths []string) ([]group, error) {
	groups := make([]group, 0, len(paths))
	seen := map[string]struct{}{}
	for _, path := range paths {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate group name %q", name)
		}
		seen[name] = struct{}{}
		groups = append(groups, group{name: name, cfg: cfg})
	}
	return groups, nil
}

// run executes a single pass over all groups, or keeps polling with a status
// server in daemon mode
func run(ctx context.Context, opts Opts, groups []group) error {
	if opts.Daemon && (opts.DryRun || opts.Populate) {
		return fmt.Errorf("dry-run and populate are one-shot modes, not available with daemon")
	}
	if opts.Daemon && opts.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	type runner struct {
		name  string
		feeds []domain.Feed
		led   *ledger.Ledger
		proc  *proc.Processor
	}

	runners := make([]runner, 0, len(groups))
	for _, g := range groups {
		p := proc.NewProcessor(proc.Config{
			Parser:   feed.NewParser(g.cfg.Timeout, g.cfg.UserAgent),
			Notifier: notify.NewClient(g.cfg.Timeout, g.cfg.UserAgent),
			Webhook:  g.cfg.Webhook,
			DryRun:   opts.DryRun,
			Populate: opts.Populate,
			MaxAge:   time.Duration(opts.MaxAge) * 24 * time.Hour,
		})
		runners = append(runners, runner{name: g.name, feeds: g.cfg.FeedList(), led: ledger.Load(g.cfg.Database), proc: p})
	}

	if !opts.Daemon {
		failed := 0
		for _, r := range runners {
			if _, err := r.proc.Run(ctx, r.feeds, r.led); err != nil {
				log.Printf("[ERROR] group %s failed: %v", r.name, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d groups failed", failed, len(runners))
		}
		return nil
	}

	// daemon mode runs the poll loop alongside the status server
	srv := server.New(opts.Listen, revision, opts.Debug)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.Run(ctx) })
	eg.Go(func() error {
		runAll := func() {
			for _, r := range runners {
				res, err := r.proc.Run(ctx, r.feeds, r.led)
				if err != nil {
					log.Printf("[ERROR] group %s failed: %v", r.name, err)
				}
				srv.RecordRun(r.name, res, err)
			}
		}

		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		// run immediately on start
		runAll()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runAll()
			}
		}
	})

	return eg.Wait()
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
