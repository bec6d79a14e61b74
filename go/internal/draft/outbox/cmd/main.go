package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/mcdev12/pooldraft/go/internal/draft/outbox"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/rs/zerolog/log"
)

// Standalone outbox relay: database outbox to NATS JetStream.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	repo, err := repository.NewRepository(db, cfg.Database.Driver)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository")
	}

	// Without Postgres there is nothing to LISTEN on, so the relay polls.
	var notifier outbox.Notifier
	if cfg.Database.IsPostgres() {
		pqn, err := outbox.NewPQNotifier(cfg.Database.PostgresURL(), cfg.Outbox.NotifyChannel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create listener")
		}
		defer pqn.Close()
		notifier = pqn
	} else {
		log.Warn().Str("driver", cfg.Database.Driver).Msg("no LISTEN/NOTIFY support - relay will poll")
	}

	eventBus, err := bus.ConnectJetStream(ctx, cfg.Bus.JetStream())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event bus")
	}
	defer eventBus.Close()

	clock := clockwork.NewRealClock()
	relayCfg := outbox.DefaultConfig()
	relayCfg.NotifyChannel = cfg.Outbox.NotifyChannel
	relayCfg.FallbackInterval = cfg.Outbox.FallbackInterval
	relayCfg.BatchSize = cfg.Outbox.BatchSize
	relayCfg.MaxRetries = cfg.Outbox.MaxRetries
	relayCfg.RetryDelay = cfg.Outbox.RetryDelay

	counters := outbox.NewCounters()
	relay := outbox.NewRelay(repo, notifier, eventBus, relayCfg, clock)
	relay.SetMetrics(counters)

	health := outbox.NewHealthChecker(relay, repo, db, eventBus, counters, clock, 2*relayCfg.FallbackInterval)
	mux := http.NewServeMux()
	mux.Handle("GET /health", health)
	mux.HandleFunc("GET /metrics", health.ServeMetrics)
	srv := &http.Server{
		Addr:              ":" + cfg.Outbox.HealthPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Outbox.HealthPort).Msg("health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	log.Info().
		Str("driver", cfg.Database.Driver).
		Str("nats_url", cfg.Bus.URL).
		Str("channel", relayCfg.NotifyChannel).
		Msg("starting outbox relay")

	if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("relay failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown failed")
	}
	log.Info().Msg("outbox relay stopped")
}
