package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/draft/client"
	"github.com/mcdev12/pooldraft/go/internal/draft/order"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// draftwatch follows a draft from the command line. It reports expired
// timers like any other client and, given -seat, drafts the best available
// resource whenever that seat is on the clock.
func main() {
	var (
		draftFlag = flag.String("draft", "", "draft id")
		seatFlag  = flag.String("seat", "", "participant id to draft for (optional)")
		observe   = flag.Bool("observe", true, "report expired timers to the server")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg.LogLevel)

	draftID, err := uuid.Parse(*draftFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("-draft must be a draft id")
	}
	var seat uuid.UUID
	if *seatFlag != "" {
		if seat, err = uuid.Parse(*seatFlag); err != nil {
			log.Fatal().Err(err).Msg("-seat must be a participant id")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	wcfg := client.DefaultWatcherConfig()
	wcfg.DraftID = draftID
	wcfg.ServerURL = cfg.Client.ServerURL
	wcfg.GatewayURL = cfg.Client.GatewayURL
	wcfg.Token = cfg.Client.Token
	wcfg.Observe = *observe

	w := client.NewWatcher(wcfg, &http.Client{Timeout: 10 * time.Second}, clockwork.NewRealClock())

	turns := make(chan client.View, 1)
	var p printer
	w.OnChange(func(v client.View) {
		p.print(v)
		if seat == uuid.Nil || v.Stale || !onClock(v, seat) {
			return
		}
		select {
		case turns <- v:
		default:
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	if seat != uuid.Nil {
		g.Go(func() error { return autodraft(gctx, w, seat, turns) })
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("draftwatch failed")
	}
}

func autodraft(ctx context.Context, w *client.Watcher, seat uuid.UUID, turns <-chan client.View) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-turns:
			if len(v.Available) == 0 || len(v.Pending) > 0 {
				continue
			}
			best := v.Available[0]
			pick, err := w.Submit(ctx, seat, best.ID)
			if err != nil {
				log.Warn().Err(err).Str("resource", best.Name).Msg("pick refused")
				continue
			}
			log.Info().Int("pick_number", pick.PickNumber).Str("resource", best.Name).Msg("drafted")
		}
	}
}

func onClock(v client.View, seat uuid.UUID) bool {
	d := v.Draft
	if d.Status != models.DraftStatusInProgress || d.CurrentPickNumber > d.TotalPicks() {
		return false
	}
	slot := order.Drafter(d.CurrentPickNumber, d.Settings.ParticipantCount)
	for _, p := range v.Participants {
		if p.ID == seat {
			return p.DraftSlot == slot
		}
	}
	return false
}

// printer logs each pick once. Views arrive from the socket reader and from
// submits.
type printer struct {
	mu       sync.Mutex
	lastPick int
}

func (pr *printer) print(v client.View) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	for _, p := range v.Picks {
		if p.PickNumber <= pr.lastPick {
			continue
		}
		pr.lastPick = p.PickNumber
		log.Info().
			Int("pick_number", p.PickNumber).
			Int("round", p.Round).
			Str("participant_id", p.ParticipantID.String()).
			Str("resource_id", p.ResourceID.String()).
			Bool("auto", p.IsAutoPick).
			Msg("pick")
	}
	log.Debug().
		Str("status", string(v.Draft.Status)).
		Int("pick_number", v.Draft.CurrentPickNumber).
		Dur("remaining", v.Remaining.Round(time.Second)).
		Int("available", len(v.Available)).
		Bool("stale", v.Stale).
		Msg("draft view")
}
