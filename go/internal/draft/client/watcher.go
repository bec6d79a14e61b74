package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/draft/draftapi"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/pick"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type WatcherConfig struct {
	DraftID    uuid.UUID
	ServerURL  string // draft RPC server
	GatewayURL string // ws:// or wss:// base of the gateway
	Token      string
	// Observe makes the watcher report expired timers with TriggerAutoPick.
	Observe        bool
	TickInterval   time.Duration
	ReconnectDelay time.Duration
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		ServerURL:      "http://localhost:8080",
		GatewayURL:     "ws://localhost:8081",
		Observe:        true,
		TickInterval:   time.Second,
		ReconnectDelay: 2 * time.Second,
	}
}

// Watcher keeps a Reconciler in sync with one draft: it follows the gateway
// WebSocket, resyncs from the state endpoint on connect and on gaps, and
// reconnects when the socket drops.
type Watcher struct {
	cfg        WatcherConfig
	clock      clockwork.Clock
	rec        *Reconciler
	picks      draftapi.PickServiceClient
	httpClient *http.Client
	dialer     *websocket.Dialer

	mu        sync.Mutex
	onChange  func(View)
	triggered int // pick number already reported as expired
}

func NewWatcher(cfg WatcherConfig, httpClient *http.Client, clock clockwork.Clock) *Watcher {
	var opts []connect.ClientOption
	if cfg.Token != "" {
		opts = append(opts, connect.WithInterceptors(auth.NewClientInterceptor(cfg.Token)))
	}
	return &Watcher{
		cfg:        cfg,
		clock:      clock,
		rec:        NewReconciler(clock),
		picks:      draftapi.NewPickServiceClient(httpClient, cfg.ServerURL, opts...),
		httpClient: httpClient,
		dialer:     websocket.DefaultDialer,
	}
}

func (w *Watcher) Reconciler() *Reconciler {
	return w.rec
}

// OnChange registers a callback run after every change to the view.
func (w *Watcher) OnChange(fn func(View)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

func (w *Watcher) changed() {
	w.mu.Lock()
	fn := w.onChange
	w.mu.Unlock()
	if fn != nil {
		fn(w.rec.View())
	}
}

// Run follows the draft until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		w.rec.MarkStale()
		log.Warn().
			Err(err).
			Str("draft_id", w.cfg.DraftID.String()).
			Dur("retry_in", w.cfg.ReconnectDelay).
			Msg("draft connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(w.cfg.ReconnectDelay):
		}
	}
}

func (w *Watcher) session(ctx context.Context) error {
	header := http.Header{}
	if w.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+w.cfg.Token)
	}
	url := fmt.Sprintf("%s/ws/draft?draft_id=%s", strings.TrimSuffix(w.cfg.GatewayURL, "/"), w.cfg.DraftID)
	conn, _, err := w.dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}
	defer conn.Close()

	// Subscribe first, then load: events racing the snapshot are deduped.
	if err := w.Resync(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		return nil
	})
	g.Go(func() error {
		defer conn.Close()
		return w.readLoop(gctx, conn)
	})
	if w.cfg.Observe {
		g.Go(func() error {
			return w.observe(gctx)
		})
	}
	return g.Wait()
}

func (w *Watcher) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var ev events.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable event")
			continue
		}

		outcome, err := w.rec.Apply(ev)
		if err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("failed to apply event")
			continue
		}
		log.Debug().
			Str("event_id", ev.ID.String()).
			Str("event_type", string(ev.Type)).
			Stringer("outcome", outcome).
			Msg("event reconciled")

		switch outcome {
		case Applied:
			w.changed()
		case ResyncRequired:
			if err := w.Resync(ctx); err != nil {
				return err
			}
		}
	}
}

// observe reports an expired timer once per pick number. The server's own
// timer does the same; whichever call commits first wins.
func (w *Watcher) observe(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := w.checkTimer(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) checkTimer(ctx context.Context) error {
	pickNumber, expired := w.rec.Expired()
	if !expired {
		return nil
	}
	w.mu.Lock()
	if w.triggered == pickNumber {
		w.mu.Unlock()
		return nil
	}
	w.triggered = pickNumber
	w.mu.Unlock()

	log.Info().
		Str("draft_id", w.cfg.DraftID.String()).
		Int("pick_number", pickNumber).
		Msg("pick timer expired, triggering auto-pick")

	res, err := w.picks.TriggerAutoPick(ctx, connect.NewRequest(&draftapi.TriggerAutoPickRequest{DraftID: w.cfg.DraftID}))
	if err == nil {
		if res.Msg.Pick != nil && w.rec.Confirm(*res.Msg.Pick) == Applied {
			w.changed()
		}
		return nil
	}

	rej := pick.RejectionFromError(err)
	switch {
	case rej == nil:
		// Transport failure: try again on the next tick.
		w.resetTrigger(pickNumber)
		log.Warn().Err(err).Int("pick_number", pickNumber).Msg("TriggerAutoPick failed")
		return nil
	case rej.Reason == pick.ReasonTimerNotExpired:
		// Local clock ran ahead; the snapshot recalibrates it.
		w.resetTrigger(pickNumber)
		return w.Resync(ctx)
	case rej.Reason == pick.ReasonDraftExhausted:
		log.Error().Str("draft_id", w.cfg.DraftID.String()).Msg("draft pool exhausted, waiting for the commissioner")
		return nil
	default:
		return w.Resync(ctx)
	}
}

func (w *Watcher) resetTrigger(pickNumber int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.triggered == pickNumber {
		w.triggered = 0
	}
}

// Resync reloads the full snapshot from the gateway's state endpoint.
func (w *Watcher) Resync(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/drafts/%s/state", httpBase(w.cfg.GatewayURL), w.cfg.DraftID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if w.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch draft state: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch draft state: unexpected status %d", resp.StatusCode)
	}

	var state models.DraftState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode draft state: %w", err)
	}
	w.rec.Load(&state)
	w.changed()

	log.Info().
		Str("draft_id", w.cfg.DraftID.String()).
		Str("status", string(state.Draft.Status)).
		Int("pick_number", state.Draft.CurrentPickNumber).
		Int("seconds_remaining", state.SecondsRemaining).
		Msg("draft state synced")
	return nil
}

// Submit makes a pick optimistically: the resource leaves the local pool at
// once and comes back if the server rejects the pick.
func (w *Watcher) Submit(ctx context.Context, participantID, resourceID uuid.UUID) (*models.Pick, error) {
	if err := w.rec.AddPending(participantID, resourceID); err != nil {
		return nil, err
	}
	w.changed()

	res, err := w.picks.SubmitPick(ctx, connect.NewRequest(&draftapi.SubmitPickRequest{
		DraftID:       w.cfg.DraftID,
		ParticipantID: participantID,
		ResourceID:    resourceID,
	}))
	if err != nil {
		if rej := pick.RejectionFromError(err); rej != nil {
			rej.DraftID = w.cfg.DraftID
			err = rej
		}
		if w.rec.Resolve(resourceID, nil, err) == ResyncRequired {
			if rerr := w.Resync(ctx); rerr != nil {
				err = errors.Join(err, rerr)
			}
		} else {
			w.changed()
		}
		return nil, err
	}

	p := res.Msg.Pick
	w.rec.Resolve(resourceID, &p, nil)
	w.changed()
	return &p, nil
}

func httpBase(gatewayURL string) string {
	base := strings.TrimSuffix(gatewayURL, "/")
	switch {
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	}
	return base
}
