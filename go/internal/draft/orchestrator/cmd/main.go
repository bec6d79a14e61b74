package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/mcdev12/pooldraft/go/internal/draft/draftapi"
	"github.com/mcdev12/pooldraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/rs/zerolog/log"

	"connectrpc.com/connect"
)

// Standalone timer manager. Reads drafts from the database, listens on the
// NATS stream and auto-picks through the draft server's PickService.
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

	var opts []connect.ClientOption
	if !cfg.Auth.Disabled {
		opts = append(opts, connect.WithInterceptors(auth.NewSystemClientInterceptor(auth.NewVerifier(cfg.Auth.JWTSecret, clock))))
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	picks := draftapi.NewPickServiceClient(httpClient, cfg.Client.ServerURL, opts...)

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.Workers = cfg.Orchestrator.Workers
	orchCfg.ConsumerName = cfg.Orchestrator.ConsumerName

	orch := orchestrator.New(repo, orchestrator.NewRPCPicker(picks), eventBus, clock, orchCfg)

	log.Info().
		Str("draft_server", cfg.Client.ServerURL).
		Str("nats_url", cfg.Bus.URL).
		Int("workers", orchCfg.Workers).
		Msg("starting draft orchestrator")

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("orchestrator failed")
	}
	log.Info().Msg("draft orchestrator stopped")
}
