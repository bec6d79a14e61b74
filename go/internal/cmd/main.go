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
	"github.com/mcdev12/pooldraft/go/internal/draft/gateway"
	"github.com/mcdev12/pooldraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/pooldraft/go/internal/draft/outbox"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Draft API server. With EMBEDDED=true it also runs the outbox relay, the
// timer orchestrator and the WebSocket gateway in this process.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := setupDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up database")
	}
	defer store.Close()

	clock := clockwork.NewRealClock()
	var verifier *auth.Verifier
	if cfg.Auth.Disabled {
		log.Warn().Msg("authentication disabled - every caller is trusted")
	} else {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, clock)
	}

	services := setupServices(store, clock)

	g, gctx := errgroup.WithContext(ctx)

	var extra *embedded
	if cfg.Server.Embedded {
		extra, err = startEmbedded(gctx, g, cfg, store, services, verifier, clock)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start embedded components")
		}
	}

	srv := setupServer(cfg, services, verifier, extra)
	g.Go(func() error {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("driver", cfg.Database.Driver).
			Bool("embedded", cfg.Server.Embedded).
			Msg("starting draft server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("draft server stopped")
}

// startEmbedded wires the event bus and starts the background components on g.
func startEmbedded(ctx context.Context, g *errgroup.Group, cfg *config.Config, store *storage, services *Services, verifier *auth.Verifier, clock clockwork.Clock) (*embedded, error) {
	var (
		eventBus  bus.Bus
		busStatus outbox.BusStatus
	)
	switch cfg.Bus.Kind {
	case config.BusMemory:
		mem := bus.NewMemoryBus()
		g.Go(func() error {
			<-ctx.Done()
			mem.Stop()
			return nil
		})
		eventBus = mem
	default:
		js, err := bus.ConnectJetStream(ctx, cfg.Bus.JetStream())
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			<-ctx.Done()
			return js.Close()
		})
		eventBus, busStatus = js, js
	}

	relayCfg := relayConfig(cfg)
	relay := outbox.NewRelay(store, store.notifier, eventBus, relayCfg, clock)
	counters := outbox.NewCounters()
	relay.SetMetrics(counters)

	var db outbox.Pinger
	if store.db != nil {
		db = store.db
	}
	health := outbox.NewHealthChecker(relay, store, db, busStatus, counters, clock, 2*relayCfg.FallbackInterval)

	// In process, timeouts go straight to the pick committer.
	orch := orchestrator.New(store, services.PickApp, eventBus, clock, orchestratorConfig(cfg))

	gw := gateway.NewService(gatewayConfig(cfg), services.DraftApp, eventBus, verifier)

	g.Go(func() error { return relay.Run(ctx) })
	g.Go(func() error { return orch.Run(ctx) })
	g.Go(func() error { return gw.Start(ctx) })

	log.Info().Str("bus", cfg.Bus.Kind).Bool("notify", store.notifier != nil).Msg("embedded relay, orchestrator and gateway started")
	return &embedded{gateway: gw, health: health}, nil
}
