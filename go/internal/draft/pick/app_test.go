package pick

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/order"
	"github.com/mcdev12/pooldraft/go/internal/draft/pool"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository/memory"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pickTimer = 30 * time.Second

type testEnv struct {
	app       *App
	store     *memory.Store
	clock     *clockwork.FakeClock
	draft     *models.Draft
	bySlot    map[int]models.Participant
	resources []models.Resource
}

func newTestEnv(t *testing.T, n, rounds, resourceCount int, start bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC))
	store := memory.NewStore()

	leagueID := uuid.New()
	draft, err := store.CreateDraft(ctx, repository.CreateDraftParams{
		ID:        uuid.New(),
		LeagueID:  leagueID,
		Settings:  models.DraftSettings{Rounds: rounds, PickTimerSeconds: int(pickTimer / time.Second), ParticipantCount: n},
		CreatedAt: clock.Now(),
	})
	require.NoError(t, err)

	bySlot := make(map[int]models.Participant, n)
	participants := make([]models.Participant, n)
	for i := range participants {
		participants[i] = models.Participant{
			ID:           uuid.New(),
			LeagueID:     leagueID,
			DraftSlot:    i + 1,
			DisplayLabel: fmt.Sprintf("Seat %d", i+1),
		}
		bySlot[i+1] = participants[i]
	}
	require.NoError(t, store.CreateParticipants(ctx, participants))

	resources := make([]models.Resource, resourceCount)
	for i := range resources {
		resources[i] = models.Resource{ID: uuid.New(), LeagueID: leagueID, Name: fmt.Sprintf("Team %d", i+1), RankOrSeed: i + 1}
	}
	require.NoError(t, store.CreateResources(ctx, resources))

	if start {
		now := clock.Now()
		deadline := now.Add(pickTimer)
		ev, err := events.NewDraftStatusChanged(draft.ID, models.DraftStatusPreDraft, models.DraftStatusInProgress, &deadline, now)
		require.NoError(t, err)
		draft, err = store.TransitionDraft(ctx, repository.TransitionParams{
			DraftID:       draft.ID,
			From:          models.DraftStatusPreDraft,
			To:            models.DraftStatusInProgress,
			TimerDeadline: &deadline,
			StartTime:     &now,
			RequireSlots:  n,
			At:            now,
			Event:         ev,
		})
		require.NoError(t, err)
	}

	return &testEnv{
		app:       NewApp(store, pool.NewPool(store), clock),
		store:     store,
		clock:     clock,
		draft:     draft,
		bySlot:    bySlot,
		resources: resources,
	}
}

func (e *testEnv) current(t *testing.T) *models.Draft {
	t.Helper()
	d, err := e.store.GetDraft(context.Background(), e.draft.ID)
	require.NoError(t, err)
	return d
}

func (e *testEnv) submit(slot int, resource models.Resource) (*models.Pick, error) {
	return e.app.SubmitPick(context.Background(), SubmitPickRequest{
		DraftID:       e.draft.ID,
		ParticipantID: e.bySlot[slot].ID,
		ResourceID:    resource.ID,
	})
}

func TestSubmitPick_FourSeatTwoRoundScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 4, 2, 10, true)

	pick, err := env.submit(1, env.resources[4])
	require.NoError(t, err)
	assert.Equal(t, 1, pick.PickNumber)
	assert.False(t, pick.IsAutoPick)

	d := env.current(t)
	assert.Equal(t, 2, d.CurrentPickNumber)
	assert.Equal(t, 2, order.Drafter(d.CurrentPickNumber, 4))
	require.NotNil(t, d.TimerDeadline)
	assert.Equal(t, env.clock.Now().Add(pickTimer), *d.TimerDeadline)

	env.clock.Advance(pickTimer)
	auto, err := env.app.AutoPick(ctx, env.draft.ID)
	require.NoError(t, err)
	assert.True(t, auto.IsAutoPick)
	assert.Equal(t, 2, auto.PickNumber)
	assert.Equal(t, env.bySlot[2].ID, auto.ParticipantID)
	assert.Equal(t, env.resources[0].ID, auto.ResourceID, "lowest rank is claimed")

	d = env.current(t)
	assert.Equal(t, 3, d.CurrentPickNumber)
	assert.Equal(t, 3, order.Drafter(d.CurrentPickNumber, 4))

	wantSlots := []int{3, 4, 4, 3, 2, 1}
	for i, slot := range wantSlots {
		env.clock.Advance(pickTimer)
		p, err := env.app.AutoPick(ctx, env.draft.ID)
		require.NoError(t, err)
		assert.Equal(t, i+3, p.PickNumber)
		assert.Equal(t, env.bySlot[slot].ID, p.ParticipantID)
	}

	d = env.current(t)
	assert.Equal(t, models.DraftStatusCompleted, d.Status)
	assert.Nil(t, d.TimerDeadline)
	assert.NotNil(t, d.EndTime)

	picks, err := env.app.ListPicks(ctx, env.draft.ID)
	require.NoError(t, err)
	require.Len(t, picks, 8)
	for i, p := range picks {
		assert.Equal(t, i+1, p.PickNumber, "pick numbers are contiguous")
	}

	_, err = env.submit(1, env.resources[9])
	assert.ErrorIs(t, err, ErrDraftNotActive)

	rows, err := env.store.FetchUnsentOutbox(ctx, 0)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, events.EventTypeDraftStatusChanged, last.Event.Type)
}

func TestSubmitPick_Rejections(t *testing.T) {
	t.Run("draft not started", func(t *testing.T) {
		env := newTestEnv(t, 2, 1, 2, false)
		_, err := env.submit(1, env.resources[0])
		assert.ErrorIs(t, err, ErrDraftNotActive)
	})

	t.Run("not your turn", func(t *testing.T) {
		env := newTestEnv(t, 2, 1, 2, true)
		_, err := env.submit(2, env.resources[0])
		assert.ErrorIs(t, err, ErrNotYourTurn)
		assert.ErrorIs(t, err, ErrRejected)

		rej, ok := AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, 1, rej.PickNumber)
		assert.Equal(t, 1, env.current(t).CurrentPickNumber, "a rejection does not consume the turn")
	})

	t.Run("resource already claimed", func(t *testing.T) {
		env := newTestEnv(t, 2, 2, 4, true)
		_, err := env.submit(1, env.resources[0])
		require.NoError(t, err)
		_, err = env.submit(2, env.resources[0])
		assert.ErrorIs(t, err, ErrResourceAlreadyClaimed)
	})

	t.Run("unknown participant and resource", func(t *testing.T) {
		env := newTestEnv(t, 2, 1, 2, true)
		_, err := env.app.SubmitPick(context.Background(), SubmitPickRequest{
			DraftID: env.draft.ID, ParticipantID: uuid.New(), ResourceID: env.resources[0].ID,
		})
		assert.ErrorIs(t, err, ErrInvalidPick)

		_, err = env.submit(1, models.Resource{ID: uuid.New()})
		assert.ErrorIs(t, err, ErrInvalidPick)
	})

	t.Run("missing ids", func(t *testing.T) {
		env := newTestEnv(t, 2, 1, 2, true)
		_, err := env.app.SubmitPick(context.Background(), SubmitPickRequest{DraftID: env.draft.ID})
		assert.ErrorIs(t, err, ErrInvalidPick)
	})
}

func TestSubmitPick_OffTurnFailsBeforeUniqueness(t *testing.T) {
	env := newTestEnv(t, 4, 2, 8, true)
	target := env.resources[3]

	var (
		wg                sync.WaitGroup
		onTurnErr, offErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, onTurnErr = env.submit(1, target)
	}()
	go func() {
		defer wg.Done()
		_, offErr = env.submit(3, target)
	}()
	wg.Wait()

	assert.NoError(t, onTurnErr)
	assert.ErrorIs(t, offErr, ErrNotYourTurn)
}

func TestSubmitPick_ConcurrentSameResourceExactlyOneWins(t *testing.T) {
	env := newTestEnv(t, 2, 3, 10, true)
	_, err := env.submit(1, env.resources[9])
	require.NoError(t, err)

	// Slot 2 holds picks 2 and 3, so every request below is on the clock.
	target := env.resources[0]
	var (
		wg     sync.WaitGroup
		wins   atomic.Int32
		losses atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.submit(2, target)
			switch {
			case err == nil:
				wins.Add(1)
			case errorsIsAny(err, ErrResourceAlreadyClaimed, ErrLostRace):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), losses.Load())
	assert.Equal(t, 3, env.current(t).CurrentPickNumber)
}

func errorsIsAny(err error, targets ...*Rejection) bool {
	rej, ok := AsRejection(err)
	if !ok {
		return false
	}
	for _, t := range targets {
		if rej.Is(t) {
			return true
		}
	}
	return false
}

func TestAutoPick(t *testing.T) {
	ctx := context.Background()

	t.Run("timer not expired", func(t *testing.T) {
		env := newTestEnv(t, 2, 1, 2, true)
		env.clock.Advance(pickTimer - time.Second)
		_, err := env.app.AutoPick(ctx, env.draft.ID)
		assert.ErrorIs(t, err, ErrTimerNotExpired)
	})

	t.Run("exactly at the deadline", func(t *testing.T) {
		env := newTestEnv(t, 2, 1, 2, true)
		env.clock.Advance(pickTimer)
		p, err := env.app.AutoPick(ctx, env.draft.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, p.PickNumber)
	})

	t.Run("unbound seat still receives auto-picks", func(t *testing.T) {
		env := newTestEnv(t, 2, 1, 2, true)
		assert.Nil(t, env.bySlot[1].UserID)
		env.clock.Advance(pickTimer)
		p, err := env.app.AutoPick(ctx, env.draft.ID)
		require.NoError(t, err)
		assert.Equal(t, env.bySlot[1].ID, p.ParticipantID)
	})

	t.Run("duplicate triggers commit once", func(t *testing.T) {
		env := newTestEnv(t, 2, 2, 4, true)
		env.clock.Advance(pickTimer)

		var wg sync.WaitGroup
		results := make([]*models.Pick, 8)
		errs := make([]error, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = env.app.AutoPick(ctx, env.draft.ID)
			}(i)
		}
		wg.Wait()

		picks, err := env.app.ListPicks(ctx, env.draft.ID)
		require.NoError(t, err)
		require.Len(t, picks, 1)
		for i := range results {
			if errs[i] != nil {
				assert.ErrorIs(t, errs[i], ErrTimerNotExpired)
				continue
			}
			assert.Equal(t, picks[0].ID, results[i].ID)
		}
	})

	t.Run("manual pick racing the deadline", func(t *testing.T) {
		env := newTestEnv(t, 4, 1, 4, true)
		env.clock.Advance(pickTimer)

		var (
			wg                 sync.WaitGroup
			manualErr, autoErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, manualErr = env.submit(1, env.resources[0])
		}()
		go func() {
			defer wg.Done()
			_, autoErr = env.app.AutoPick(ctx, env.draft.ID)
		}()
		wg.Wait()

		picks, err := env.app.ListPicks(ctx, env.draft.ID)
		require.NoError(t, err)
		assert.Len(t, picks, 1)
		if manualErr != nil {
			assert.ErrorIs(t, manualErr, ErrRejected)
		}
		if autoErr != nil {
			assert.ErrorIs(t, autoErr, ErrTimerNotExpired)
		}
	})

	t.Run("draft exhausted", func(t *testing.T) {
		env := newTestEnv(t, 2, 1, 1, true)
		_, err := env.submit(1, env.resources[0])
		require.NoError(t, err)

		env.clock.Advance(pickTimer)
		_, err = env.app.AutoPick(ctx, env.draft.ID)
		assert.ErrorIs(t, err, ErrDraftExhausted)
		assert.Equal(t, models.DraftStatusInProgress, env.current(t).Status)
	})
}

func TestResolver_Deterministic(t *testing.T) {
	env := newTestEnv(t, 2, 1, 5, true)
	r := NewResolver(pool.NewPool(env.store))

	first, err := r.Resolve(context.Background(), env.draft.ID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		got, err := r.Resolve(context.Background(), env.draft.ID)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
	assert.Equal(t, env.resources[0].ID, first)
}

func TestRejection_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Rejection{Reason: ReasonLostRace, PickNumber: 4})
	assert.ErrorIs(t, err, ErrLostRace)
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrNotYourTurn)

	reason, ok := ParseReason("LostRace")
	assert.True(t, ok)
	assert.Equal(t, ReasonLostRace, reason)
	_, ok = ParseReason("Nope")
	assert.False(t, ok)
}
