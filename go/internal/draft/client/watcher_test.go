package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/mcdev12/pooldraft/go/internal/draft/draft"
	"github.com/mcdev12/pooldraft/go/internal/draft/draftapi"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/gateway"
	"github.com/mcdev12/pooldraft/go/internal/draft/outbox"
	"github.com/mcdev12/pooldraft/go/internal/draft/pick"
	"github.com/mcdev12/pooldraft/go/internal/draft/pool"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository/memory"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	server *httptest.Server
	store  *memory.Store
	clock  *clockwork.FakeClock
	draft  *models.Draft
	seats  []models.Participant
}

// newStack runs the whole engine in process: pick service, outbox relay,
// memory bus and gateway behind one test server. The draft is in progress
// with 2 seats and 1 round.
func newStack(t *testing.T) *stack {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	leagueID := uuid.New()

	d, err := store.CreateDraft(ctx, repository.CreateDraftParams{
		ID:        uuid.New(),
		LeagueID:  leagueID,
		Settings:  models.DraftSettings{Rounds: 1, PickTimerSeconds: int(pickTimer / time.Second), ParticipantCount: 2},
		CreatedAt: clock.Now(),
	})
	require.NoError(t, err)

	seats := make([]models.Participant, 2)
	for i := range seats {
		seats[i] = models.Participant{ID: uuid.New(), LeagueID: leagueID, DraftSlot: i + 1, DisplayLabel: fmt.Sprintf("Seat %d", i+1)}
	}
	require.NoError(t, store.CreateParticipants(ctx, seats))

	resources := make([]models.Resource, 3)
	for i := range resources {
		resources[i] = models.Resource{ID: uuid.New(), LeagueID: leagueID, Name: fmt.Sprintf("Team %d", i+1), RankOrSeed: i + 1}
	}
	require.NoError(t, store.CreateResources(ctx, resources))

	drafts := draft.NewApp(store, clock)
	d, err = drafts.Start(ctx, d.ID)
	require.NoError(t, err)

	eventBus := bus.NewMemoryBus()
	t.Cleanup(eventBus.Stop)

	relay := outbox.NewRelay(store, store.Notifier(), eventBus, outbox.DefaultConfig(), clockwork.NewRealClock())
	go relay.Run(ctx)

	gw := gateway.NewService(gateway.DefaultConfig(), drafts, eventBus, nil)
	go gw.Start(ctx)

	mux := http.NewServeMux()
	picks := pick.NewService(pick.NewApp(store, pool.NewPool(store), clock), store)
	mux.Handle(draftapi.NewPickServiceHandler(picks, connect.WithInterceptors(auth.NewInterceptor(nil, true))))
	gw.RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &stack{server: server, store: store, clock: clock, draft: d, seats: seats}
}

func (s *stack) watcher(observe bool) *Watcher {
	cfg := DefaultWatcherConfig()
	cfg.DraftID = s.draft.ID
	cfg.ServerURL = s.server.URL
	cfg.GatewayURL = "ws" + strings.TrimPrefix(s.server.URL, "http")
	cfg.Observe = observe
	return NewWatcher(cfg, s.server.Client(), s.clock)
}

func runWatcher(t *testing.T, w *Watcher) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return !w.Reconciler().Stale()
	}, 2*time.Second, 10*time.Millisecond)
	return ctx
}

func TestWatcher_SubmitAndObserve(t *testing.T) {
	s := newStack(t)
	w := s.watcher(true)
	ctx := runWatcher(t, w)

	v := w.Reconciler().View()
	require.Equal(t, models.DraftStatusInProgress, v.Draft.Status)
	require.Len(t, v.Available, 3)

	// Seat 1 picks the second-ranked team.
	target := v.Available[1].ID
	p, err := w.Submit(ctx, s.seats[0].ID, target)
	require.NoError(t, err)
	assert.Equal(t, 1, p.PickNumber)

	v = w.Reconciler().View()
	assert.Empty(t, v.Pending)
	require.Len(t, v.Picks, 1)
	assert.Equal(t, target, v.Picks[0].ResourceID)

	// Seat 2 lets the clock run out; the watcher reports it.
	require.NoError(t, s.clock.BlockUntilContext(ctx, 1))
	s.clock.Advance(pickTimer + time.Second)

	require.Eventually(t, func() bool {
		return w.Reconciler().View().Draft.Status == models.DraftStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	picks, err := s.store.ListPicks(ctx, s.draft.ID)
	require.NoError(t, err)
	require.Len(t, picks, 2)
	assert.True(t, picks[1].IsAutoPick)
	assert.Equal(t, s.seats[1].ID, picks[1].ParticipantID)

	v = w.Reconciler().View()
	require.Len(t, v.Picks, 2)
	assert.Equal(t, picks[1].ID, v.Picks[1].ID)
}

func TestWatcher_FollowsOtherClients(t *testing.T) {
	s := newStack(t)
	w := s.watcher(false)
	ctx := runWatcher(t, w)

	changes := make(chan View, 16)
	w.OnChange(func(v View) { changes <- v })

	// Another client picks through the API; the event reaches this watcher.
	other := s.watcher(false)
	require.NoError(t, other.Resync(ctx))
	target := other.Reconciler().View().Available[0].ID
	_, err := other.Submit(ctx, s.seats[0].ID, target)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(w.Reconciler().View().Picks) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, target, w.Reconciler().View().Picks[0].ResourceID)

	select {
	case v := <-changes:
		assert.NotEmpty(t, v.Picks)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatcher_SubmitRejected(t *testing.T) {
	s := newStack(t)
	w := s.watcher(false)
	ctx := runWatcher(t, w)

	target := w.Reconciler().View().Available[0].ID

	// Seat 2 is not on the clock.
	_, err := w.Submit(ctx, s.seats[1].ID, target)
	require.Error(t, err)
	assert.ErrorIs(t, err, pick.ErrNotYourTurn)

	v := w.Reconciler().View()
	assert.Empty(t, v.Pending)
	assert.Len(t, v.Available, 3)
	assert.False(t, v.Stale)
}

func TestWatcher_ResyncSeesCommittedPick(t *testing.T) {
	s := newStack(t)
	w := s.watcher(false)
	ctx := runWatcher(t, w)

	// Commit a pick straight into the store, bypassing the pick service.
	target := w.Reconciler().View().Available[0].ID
	now := s.clock.Now()
	deadline := now.Add(pickTimer)
	committed := models.Pick{
		ID:            uuid.New(),
		DraftID:       s.draft.ID,
		PickNumber:    1,
		Round:         1,
		ParticipantID: s.seats[0].ID,
		ResourceID:    target,
		CommittedAt:   now,
	}
	ev, err := events.NewPickCommitted(committed, &deadline)
	require.NoError(t, err)
	_, err = s.store.CommitPick(ctx, repository.CommitPickParams{
		Pick:          committed,
		NextStatus:    models.DraftStatusInProgress,
		TimerDeadline: &deadline,
		Events:        []events.Event{ev},
	})
	require.NoError(t, err)
	require.NoError(t, w.Resync(ctx))

	// The resource is now claimed: an optimistic pick for it is refused locally.
	_, err = w.Submit(ctx, s.seats[1].ID, target)
	assert.ErrorIs(t, err, ErrResourceTaken)
}
