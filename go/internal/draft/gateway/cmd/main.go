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
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/mcdev12/pooldraft/go/internal/draft/draft"
	"github.com/mcdev12/pooldraft/go/internal/draft/gateway"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/rs/zerolog/log"
)

// Standalone gateway: NATS JetStream to WebSockets, plus the state endpoint.
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

	eventBus, err := bus.ConnectJetStream(ctx, cfg.Bus.JetStream())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to event bus")
	}
	defer eventBus.Close()

	clock := clockwork.NewRealClock()
	var verifier *auth.Verifier
	if !cfg.Auth.Disabled {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, clock)
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.ConnectionConfig.WriteTimeout = cfg.Gateway.WriteTimeout
	gwCfg.ConnectionConfig.ReadTimeout = cfg.Gateway.ReadTimeout
	gwCfg.ConnectionConfig.PingInterval = cfg.Gateway.PingInterval
	gwCfg.CORSOrigins = cfg.Server.CORSOrigins

	svc := gateway.NewService(gwCfg, draft.NewApp(repo, clock), eventBus, verifier)

	srv := &http.Server{
		Addr:              ":" + cfg.Gateway.Port,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Gateway.Port).
			Str("nats_url", cfg.Bus.URL).
			Msg("draft gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("gateway server failed")
		}
	}()

	if err := svc.Start(ctx); err != nil {
		log.Error().Err(err).Msg("gateway failed")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown failed")
	}
	log.Info().Msg("draft gateway stopped")
}
