package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/rtc-engine/internal/api"
	"github.com/snarg/rtc-engine/internal/config"
	"github.com/snarg/rtc-engine/internal/metrics"
	"github.com/snarg/rtc-engine/internal/reconcile"
	"github.com/snarg/rtc-engine/internal/store/postgres"
)

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Str("log_level", level.String()).
		Msg("rtc-engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbLog := log.With().Str("component", "database").Logger()
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed (run migrations manually or grant the required privileges)")
	}

	now := time.Now().UTC()
	if _, err := db.EnsureMonthlyPartition(ctx, "raw_events", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure current month's partition")
	}
	if _, err := db.EnsureMonthlyPartition(ctx, "raw_events", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure next month's partition")
	}

	engine := reconcile.New(db, reconcile.Config{
		DedupMemoSize:         cfg.DedupMemoSize,
		StoreRetryMaxAttempts: cfg.StoreRetryMaxAttempts,
		StoreRetryInitialWait: cfg.StoreRetryInitialWait,
		BreakerFailureThresh:  cfg.BreakerFailureThresh,
		BreakerOpenTimeout:    cfg.BreakerOpenTimeout,
	})
	defer engine.Close()

	if cfg.MetricsEnabled {
		eventsLog := log.With().Str("component", "domain_events").Logger()
		go func() {
			err := metrics.ConsumeDomainEvents(ctx, engine.Events(),
				reconcile.TopicEpochOpened, reconcile.TopicEpochClosed, reconcile.TopicSessionClosed,
			)
			if err != nil && ctx.Err() == nil {
				eventsLog.Error().Err(err).Msg("domain event consumer stopped")
			}
		}()
	}

	if !cfg.AuthEnabled {
		log.Warn().Msg("AUTH_ENABLED=false — API authentication is disabled, all endpoints are open")
	} else if cfg.JWTSigningKeyAuto {
		log.Info().Msg("JWT_SIGNING_KEY auto-generated for this run (set JWT_SIGNING_KEY for tokens that survive a restart)")
	}

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config: cfg,
		Engine: engine,
		Store:  db,
		Log:    httpLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("listen", cfg.HTTPAddr).
		Str("version", version).
		Dur("startup_ms_elapsed", time.Since(startTime)).
		Msg("rtc-engine ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("rtc-engine stopped")
}
