package draft

import (
	"context"
	"fmt"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/draft/draftapi"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository/memory"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app          *App
	store        *memory.Store
	clock        *clockwork.FakeClock
	leagueID     uuid.UUID
	participants []models.Participant
}

func newTestEnv(t *testing.T, n int) *testEnv {
	t.Helper()
	store := memory.NewStore()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC))
	leagueID := uuid.New()

	participants := make([]models.Participant, n)
	for i := range participants {
		participants[i] = models.Participant{ID: uuid.New(), LeagueID: leagueID, DisplayLabel: fmt.Sprintf("Seat %d", i+1)}
	}
	require.NoError(t, store.CreateParticipants(context.Background(), participants))

	resources := make([]models.Resource, n*3)
	for i := range resources {
		resources[i] = models.Resource{ID: uuid.New(), LeagueID: leagueID, Name: fmt.Sprintf("Team %d", i+1), RankOrSeed: i + 1}
	}
	require.NoError(t, store.CreateResources(context.Background(), resources))

	return &testEnv{
		app:          NewApp(store, clock),
		store:        store,
		clock:        clock,
		leagueID:     leagueID,
		participants: participants,
	}
}

func (e *testEnv) create(t *testing.T) *models.Draft {
	t.Helper()
	d, err := e.app.CreateDraft(context.Background(), CreateDraftRequest{
		LeagueID:         e.leagueID,
		ParticipantCount: len(e.participants),
		Rounds:           2,
		PickTimerSeconds: 30,
	})
	require.NoError(t, err)
	return d
}

func (e *testEnv) assignAll(t *testing.T, draftID uuid.UUID) {
	t.Helper()
	slots := make([]SlotAssignment, len(e.participants))
	for i, p := range e.participants {
		slots[i] = SlotAssignment{ParticipantID: p.ID, DraftSlot: i + 1}
	}
	_, err := e.app.AssignDraftSlots(context.Background(), AssignDraftSlotsRequest{DraftID: draftID, Slots: slots})
	require.NoError(t, err)
}

func TestCreateDraft(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 4)

	d := env.create(t)
	assert.Equal(t, models.DraftStatusPreDraft, d.Status)
	assert.Equal(t, 1, d.CurrentPickNumber)
	assert.Nil(t, d.TimerDeadline)
	assert.Equal(t, 8, d.TotalPicks())

	t.Run("one draft per league", func(t *testing.T) {
		_, err := env.app.CreateDraft(ctx, CreateDraftRequest{LeagueID: env.leagueID, ParticipantCount: 4, Rounds: 2, PickTimerSeconds: 30})
		assert.ErrorIs(t, err, repository.ErrUniqueViolation)
	})

	t.Run("invalid settings", func(t *testing.T) {
		_, err := env.app.CreateDraft(ctx, CreateDraftRequest{LeagueID: uuid.New(), ParticipantCount: 1, Rounds: 2, PickTimerSeconds: 30})
		assert.ErrorIs(t, err, ErrInvalidDraft)

		_, err = env.app.CreateDraft(ctx, CreateDraftRequest{LeagueID: uuid.New(), ParticipantCount: 4, Rounds: 0, PickTimerSeconds: 30})
		assert.ErrorIs(t, err, ErrInvalidDraft)
	})
}

func TestAssignDraftSlots(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 3)
	d := env.create(t)
	p := env.participants

	t.Run("slot beyond participant count", func(t *testing.T) {
		_, err := env.app.AssignDraftSlots(ctx, AssignDraftSlotsRequest{DraftID: d.ID, Slots: []SlotAssignment{{ParticipantID: p[0].ID, DraftSlot: 4}}})
		assert.ErrorIs(t, err, ErrInvalidDraft)
	})

	t.Run("duplicate slot", func(t *testing.T) {
		_, err := env.app.AssignDraftSlots(ctx, AssignDraftSlotsRequest{DraftID: d.ID, Slots: []SlotAssignment{
			{ParticipantID: p[0].ID, DraftSlot: 1},
			{ParticipantID: p[1].ID, DraftSlot: 1},
		}})
		assert.ErrorIs(t, err, ErrInvalidDraft)
	})

	t.Run("partial assignment", func(t *testing.T) {
		got, err := env.app.AssignDraftSlots(ctx, AssignDraftSlotsRequest{DraftID: d.ID, Slots: []SlotAssignment{
			{ParticipantID: p[2].ID, DraftSlot: 1},
			{ParticipantID: p[0].ID, DraftSlot: 2},
		}})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, p[2].ID, got[0].ID)
		assert.Equal(t, p[0].ID, got[1].ID)
		assert.Equal(t, 0, got[2].DraftSlot)
	})

	t.Run("start needs every slot", func(t *testing.T) {
		_, err := env.app.Start(ctx, d.ID)
		assert.ErrorIs(t, err, ErrSlotsIncomplete)

		stored, err := env.app.GetDraft(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DraftStatusPreDraft, stored.Status)
	})

	t.Run("frozen after start", func(t *testing.T) {
		env.assignAll(t, d.ID)
		_, err := env.app.Start(ctx, d.ID)
		require.NoError(t, err)

		_, err = env.app.AssignDraftSlots(ctx, AssignDraftSlotsRequest{DraftID: d.ID, Slots: []SlotAssignment{{ParticipantID: p[0].ID, DraftSlot: 3}}})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 4)
	d := env.create(t)
	env.assignAll(t, d.ID)

	started, err := env.app.Start(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusInProgress, started.Status)
	require.NotNil(t, started.TimerDeadline)
	assert.Equal(t, env.clock.Now().Add(30*time.Second), *started.TimerDeadline)
	require.NotNil(t, started.StartTime)

	turn, err := env.app.CurrentDrafter(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, env.participants[0].ID, turn.Participant.ID)
	assert.Equal(t, 1, turn.PickNumber)
	assert.Equal(t, 1, turn.Round)

	t.Run("start twice", func(t *testing.T) {
		_, err := env.app.Start(ctx, d.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("resume while running", func(t *testing.T) {
		_, err := env.app.Resume(ctx, d.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("pause clears the deadline", func(t *testing.T) {
		env.clock.Advance(20 * time.Second)
		paused, err := env.app.Pause(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DraftStatusPaused, paused.Status)
		assert.Nil(t, paused.TimerDeadline)
		assert.Equal(t, 1, paused.CurrentPickNumber)

		state, err := env.app.GetDraftState(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, state.SecondsRemaining)
	})

	t.Run("pause twice", func(t *testing.T) {
		_, err := env.app.Pause(ctx, d.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("resume restarts the full timer", func(t *testing.T) {
		env.clock.Advance(5 * time.Minute)
		resumed, err := env.app.Resume(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DraftStatusInProgress, resumed.Status)
		require.NotNil(t, resumed.TimerDeadline)
		assert.Equal(t, env.clock.Now().Add(30*time.Second), *resumed.TimerDeadline)
		assert.Equal(t, 1, resumed.CurrentPickNumber)
	})

	t.Run("status events recorded in order", func(t *testing.T) {
		outbox, err := env.store.FetchUnsentOutbox(ctx, 10)
		require.NoError(t, err)
		require.Len(t, outbox, 3)

		var seen []models.DraftStatus
		for _, o := range outbox {
			require.Equal(t, events.EventTypeDraftStatusChanged, o.Event.Type)
			p, err := o.Event.DraftStatusChanged()
			require.NoError(t, err)
			seen = append(seen, p.Status)
		}
		assert.Equal(t, []models.DraftStatus{models.DraftStatusInProgress, models.DraftStatusPaused, models.DraftStatusInProgress}, seen)
	})
}

func TestGetDraftState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 4)
	d := env.create(t)

	state, err := env.app.GetDraftState(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, state.CurrentDrafter)
	assert.Empty(t, state.Picks)
	assert.NotNil(t, state.Picks)
	assert.Len(t, state.Resources, 12)

	env.assignAll(t, d.ID)
	_, err = env.app.Start(ctx, d.ID)
	require.NoError(t, err)

	env.clock.Advance(10*time.Second + 500*time.Millisecond)
	state, err = env.app.GetDraftState(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, state.SecondsRemaining)
	require.NotNil(t, state.CurrentDrafter)
	assert.Equal(t, env.participants[0].ID, state.CurrentDrafter.ID)
	assert.Equal(t, env.clock.Now(), state.ServerTime)

	env.clock.Advance(time.Minute)
	state, err = env.app.GetDraftState(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.SecondsRemaining)
}

func TestCurrentDrafter_Completed(t *testing.T) {
	d := &models.Draft{
		Status:            models.DraftStatusCompleted,
		CurrentPickNumber: 9,
		Settings:          models.DraftSettings{ParticipantCount: 4, Rounds: 2},
	}
	_, err := currentTurn(d, nil)
	assert.ErrorIs(t, err, ErrNoCurrentDrafter)
}

func TestCurrentDrafter_SnakeRound(t *testing.T) {
	participants := make([]models.Participant, 4)
	for i := range participants {
		participants[i] = models.Participant{ID: uuid.New(), DraftSlot: i + 1}
	}
	d := &models.Draft{
		Status:            models.DraftStatusInProgress,
		CurrentPickNumber: 5,
		Settings:          models.DraftSettings{ParticipantCount: 4, Rounds: 2},
	}
	turn, err := currentTurn(d, participants)
	require.NoError(t, err)
	assert.Equal(t, 4, turn.Participant.DraftSlot)
	assert.Equal(t, 2, turn.Round)
	assert.Equal(t, 1, turn.PickInRound)
}

func TestService_Authorization(t *testing.T) {
	env := newTestEnv(t, 4)
	d := env.create(t)
	env.assignAll(t, d.ID)
	svc := NewService(env.app)

	member := auth.WithClaims(context.Background(), &auth.Claims{
		LeagueID:         env.leagueID.String(),
		Role:             auth.RoleMember,
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	})
	commissioner := auth.WithClaims(context.Background(), &auth.Claims{
		LeagueID:         env.leagueID.String(),
		Role:             auth.RoleCommissioner,
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	})

	t.Run("no claims", func(t *testing.T) {
		_, err := svc.GetDraft(context.Background(), connect.NewRequest(&draftapi.GetDraftRequest{DraftID: d.ID}))
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("member cannot start", func(t *testing.T) {
		_, err := svc.StartDraft(member, connect.NewRequest(&draftapi.StartDraftRequest{DraftID: d.ID}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("commissioner starts", func(t *testing.T) {
		res, err := svc.StartDraft(commissioner, connect.NewRequest(&draftapi.StartDraftRequest{DraftID: d.ID}))
		require.NoError(t, err)
		assert.Equal(t, models.DraftStatusInProgress, res.Msg.Draft.Status)

		_, err = svc.StartDraft(commissioner, connect.NewRequest(&draftapi.StartDraftRequest{DraftID: d.ID}))
		assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	})

	t.Run("member reads current drafter", func(t *testing.T) {
		res, err := svc.CurrentDrafter(member, connect.NewRequest(&draftapi.CurrentDrafterRequest{DraftID: d.ID}))
		require.NoError(t, err)
		assert.Equal(t, env.participants[0].ID, res.Msg.Participant.ID)
	})

	t.Run("unknown draft", func(t *testing.T) {
		_, err := svc.GetDraftState(member, connect.NewRequest(&draftapi.GetDraftStateRequest{DraftID: uuid.New()}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})
}
