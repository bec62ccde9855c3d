package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/popcornguide/internal/cache"
	"github.com/voyagen/popcornguide/internal/config"
	"github.com/voyagen/popcornguide/internal/fetcher"
	"github.com/voyagen/popcornguide/internal/logging"
	"github.com/voyagen/popcornguide/internal/metrics"
	"github.com/voyagen/popcornguide/internal/player"
	"github.com/voyagen/popcornguide/internal/server"
	"github.com/voyagen/popcornguide/internal/service"
	"github.com/voyagen/popcornguide/internal/store"
)

// reloadLockTTL bounds how long a crashed process can hold the reload lock.
const reloadLockTTL = 2 * time.Minute

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component(logger, "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.WithError(err).Fatal("exiting")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	log := logging.Component(logger, "main")

	appStore, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Connect to Redis if REDIS_URL is configured.
	var rds *cache.Redis
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rds.Close()

		if err := rds.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		appStore = store.NewCachedStore(appStore, rds, logging.Component(logger, "store"))
		log.Info("redis connected (settings cache and reload lock enabled)")
	} else {
		log.Info("redis disabled (REDIS_URL not set)")
	}

	m := metrics.New()
	client := fetcher.NewClient(cfg.UserAgent, cfg.Timeout, logging.Component(logger, "fetcher"))
	orch := service.NewOrchestrator(client, logging.Component(logger, "reload"))
	if rds != nil {
		orch.UseLock(rds, reloadLockTTL)
	}
	engine := service.NewEngine(service.Deps{
		Store:        appStore,
		Orchestrator: orch,
		Metrics:      m,
		Redis:        rds,
		Log:          logging.Component(logger, "engine"),
	})
	if err := engine.Restore(ctx); err != nil {
		return err
	}

	var p player.Player
	var cmd *player.Command
	if cfg.PlayerCommand != "" {
		cmd, err = player.NewCommand(cfg.PlayerCommand, logging.Component(logger, "player"))
		if err != nil {
			return fmt.Errorf("player: %w", err)
		}
		p = cmd
	} else {
		log.Info("playback disabled (PLAYER_COMMAND not set)")
	}
	session := service.NewSession(engine, p, m, logging.Component(logger, "session"))
	if cmd != nil {
		cmd.OnError = session.PlaybackFailed
		defer func() { _ = cmd.Stop() }()
	}

	initialReload(ctx, cfg, engine, log)

	srv := server.New(engine, session, m, cfg, logging.Component(logger, "http"))
	return srv.ListenAndServe(ctx)
}

// openStore picks Postgres when DATABASE_URL is set, else the YAML file.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Entry) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.WithField("path", cfg.SettingsPath).Info("using settings file")
		return store.NewFile(cfg.SettingsPath), func() {}, nil
	}

	// Run migrations.
	absMigrations, err := filepath.Abs("migrations")
	if err != nil {
		absMigrations = "migrations"
	}
	if _, err := os.Stat(absMigrations); err != nil {
		if exe, e := os.Executable(); e == nil {
			absMigrations = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	if err := store.RunMigrations(cfg.DatabaseURL, "file://"+absMigrations, log); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	log.Info("using postgres settings store")
	return pg, pg.Close, nil
}

// initialReload seeds the settings from config URLs and starts the first
// reload in the background. Failures are logged; the server still starts.
func initialReload(ctx context.Context, cfg *config.Config, engine *service.Engine, log *logrus.Entry) {
	req := service.Request{PlaylistURL: cfg.PlaylistURL, GuideURL: cfg.GuideURL}
	if req.PlaylistURL == "" {
		s := engine.Settings()
		req = service.Request{PlaylistURL: s.PlaylistURL, GuideURL: s.GuideURL}
	}
	if req.PlaylistURL == "" {
		log.Info("no playlist configured, waiting for POST /api/reload")
		return
	}
	if _, err := engine.ReloadAsync(ctx, req); err != nil {
		if errors.Is(err, service.ErrReloadInProgress) {
			log.Info("another process is reloading, skipping startup reload")
			return
		}
		log.WithError(err).Warn("startup reload not started")
	}
}
