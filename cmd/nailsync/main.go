package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"nailsync/internal/auth"
	"nailsync/internal/config"
	"nailsync/internal/gcal"
	"nailsync/internal/ics"
	appLog "nailsync/internal/log"
	"nailsync/internal/pricing"
	"nailsync/internal/store"
	"nailsync/internal/syncer"
	"nailsync/internal/web"
)

const shutdownTimeout = 10 * time.Second

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	appLog.Info("nailsync starting", "version", "0.1.0")

	if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Warn("failed to read env file", err, "path", flags.envFile)
	}

	fsys := afero.NewOsFs()
	conf, err := config.Load(fsys, flags.configPath)
	if err != nil {
		if conf == nil {
			appLog.Error("failed to load config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Warn("default config not written", err, "config_path", flags.configPath)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"data_dir", conf.DataDir,
		"pricing_version", conf.PricingVersion,
		"calendar_id", conf.Google.CalendarID,
		"sync_cron", conf.Sync.Cron,
		"availability_feeds", len(conf.Availability.Feeds),
		"once", flags.once,
	)

	app, err := build(fsys, conf)
	if err != nil {
		appLog.Error("startup failed", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		if err := app.runOnce(ctx); err != nil {
			appLog.Error("sync failed", err)
			os.Exit(1)
		}
		return
	}

	if err := app.serve(ctx); err != nil {
		appLog.Error("server stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("nailsync exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", config.DefaultPath, "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional dotenv file with OAuth client credentials")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one sync from the calendar and one feed import, then exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

type app struct {
	conf   *config.Config
	sync   *syncer.Orchestrator
	server *web.Server
}

func build(fsys afero.Fs, conf *config.Config) (*app, error) {
	st, err := store.Open(store.NewFilePersister(fsys, conf.StorePath()))
	if err != nil {
		return nil, err
	}

	provider, err := auth.NewProvider(auth.Config{
		ClientID:     conf.Google.ClientID,
		ClientSecret: conf.Google.ClientSecret,
		RedirectURL:  conf.Google.RedirectURL,
		TokenPath:    conf.TokenPath(),
		Fs:           fsys,
	})
	if err != nil {
		return nil, err
	}
	if !provider.Configured() {
		appLog.Info("google oauth client not configured; changes stay local")
	}

	remote := gcal.New(provider, gcal.Config{
		CalendarID:      conf.Google.CalendarID,
		Location:        conf.Location(),
		EventDuration:   conf.EventDuration(),
		Keywords:        conf.Sync.Keywords,
		FallbackPrice:   conf.Fallback(),
		DriveFolderName: conf.Google.DriveFolderName,
	})

	orch := syncer.New(st, remote, syncer.Options{
		WindowMonthsBefore: conf.Sync.WindowMonthsBefore,
		WindowMonthsAfter:  conf.Sync.WindowMonthsAfter,
	})

	strategy, err := pricing.ForVersion(pricing.Version(conf.PricingVersion))
	if err != nil {
		return nil, err
	}

	srv, err := web.NewServer(web.Options{
		Config:  conf,
		Store:   st,
		Sync:    orch,
		Auth:    provider,
		Pricing: strategy,
		Feeds:   ics.NewFetcher(fsys, conf.CacheDir(), nil),
	})
	if err != nil {
		return nil, err
	}
	return &app{conf: conf, sync: orch, server: srv}, nil
}

// runOnce performs one scheduled cycle. A failed feed import does not
// hide a sync error.
func (a *app) runOnce(ctx context.Context) error {
	if _, err := a.server.ImportFeeds(ctx); err != nil {
		appLog.Warn("availability import failed", err)
	}
	if !a.sync.Connected() {
		appLog.Info("google account not linked; skipping sync")
		return nil
	}
	_, err := a.sync.SyncFromRemote(ctx)
	return err
}

func (a *app) serve(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              a.conf.Listen,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *cron.Cron
	if a.conf.Sync.Cron != "" {
		sched = cron.New(cron.WithLocation(a.conf.Location()))
		if _, err := sched.AddFunc(a.conf.Sync.Cron, func() {
			if err := a.runOnce(ctx); err != nil {
				appLog.Warn("scheduled sync failed", err)
			}
		}); err != nil {
			return err
		}
		sched.Start()
		appLog.Info("scheduler started", "cron", a.conf.Sync.Cron)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("http server listening", "addr", a.conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("shutting down")

		if sched != nil {
			<-sched.Stop().Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
