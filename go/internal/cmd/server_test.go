package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/dbconfig"
	"github.com/mcdev12/pooldraft/go/internal/draft/draftapi"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository/memory"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func embeddedConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = dbconfig.DriverMemory
	cfg.Server.Embedded = true
	cfg.Bus.Kind = config.BusMemory
	cfg.Auth.Disabled = true
	return cfg
}

func TestEmbeddedServer(t *testing.T) {
	cfg := embeddedConfig()
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	store, err := setupDatabase(ctx, cfg)
	require.NoError(t, err)

	clock := clockwork.NewRealClock()
	services := setupServices(store, clock)
	g, gctx := errgroup.WithContext(ctx)
	extra, err := startEmbedded(gctx, g, cfg, store, services, nil, clock)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = g.Wait()
		store.Close()
	})

	srv := setupServer(cfg, services, nil, extra)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	// League seats and pool come from outside the engine.
	leagueID := uuid.New()
	drafts := draftapi.NewDraftServiceClient(ts.Client(), ts.URL)
	created, err := drafts.CreateDraft(ctx, connect.NewRequest(&draftapi.CreateDraftRequest{
		LeagueID:         leagueID,
		ParticipantCount: 2,
		Rounds:           1,
		PickTimerSeconds: 60,
	}))
	require.NoError(t, err)
	draftID := created.Msg.Draft.ID

	mem, ok := store.Store.(*memory.Store)
	require.True(t, ok)
	seats := []models.Participant{
		{ID: uuid.New(), LeagueID: leagueID, DisplayLabel: "Seat 1"},
		{ID: uuid.New(), LeagueID: leagueID, DisplayLabel: "Seat 2"},
	}
	require.NoError(t, mem.CreateParticipants(ctx, seats))
	resources := []models.Resource{
		{ID: uuid.New(), LeagueID: leagueID, Name: "Team A", RankOrSeed: 1},
		{ID: uuid.New(), LeagueID: leagueID, Name: "Team B", RankOrSeed: 2},
	}
	require.NoError(t, mem.CreateResources(ctx, resources))

	_, err = drafts.AssignDraftSlots(ctx, connect.NewRequest(&draftapi.AssignDraftSlotsRequest{
		DraftID: draftID,
		Slots: []draftapi.SlotAssignment{
			{ParticipantID: seats[1].ID, DraftSlot: 1},
			{ParticipantID: seats[0].ID, DraftSlot: 2},
		},
	}))
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/draft?draft_id=" + draftID.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return extra.gateway.GetStats().TotalConnections == 1
	}, 2*time.Second, 10*time.Millisecond)

	started, err := drafts.StartDraft(ctx, connect.NewRequest(&draftapi.StartDraftRequest{DraftID: draftID}))
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusInProgress, started.Msg.Draft.Status)

	picks := draftapi.NewPickServiceClient(ts.Client(), ts.URL)
	submitted, err := picks.SubmitPick(ctx, connect.NewRequest(&draftapi.SubmitPickRequest{
		DraftID:       draftID,
		ParticipantID: seats[1].ID,
		ResourceID:    resources[1].ID,
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, submitted.Msg.Pick.PickNumber)

	// The status change and the pick arrive in commit order.
	var got []events.EventType
	for len(got) < 2 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev events.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, draftID, ev.DraftID)
		got = append(got, ev.Type)
	}
	assert.Equal(t, []events.EventType{events.EventTypeDraftStatusChanged, events.EventTypePickCommitted}, got)

	resp, err = http.Get(ts.URL + "/outbox/health")
	require.NoError(t, err)
	var health struct {
		Healthy     bool `json:"healthy"`
		RelayActive bool `json:"relay_active"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.True(t, health.RelayActive)
	assert.True(t, health.Healthy)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSetupServer_RequiresToken(t *testing.T) {
	cfg := embeddedConfig()
	cfg.Server.Embedded = false
	cfg.Auth.Disabled = false
	cfg.Auth.JWTSecret = "test-secret"

	ctx := context.Background()
	store, err := setupDatabase(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	services := setupServices(store, clockwork.NewRealClock())
	ts := httptest.NewServer(setupServer(cfg, services, nil, nil).Handler)
	defer ts.Close()

	drafts := draftapi.NewDraftServiceClient(ts.Client(), ts.URL)
	_, err = drafts.GetDraft(ctx, connect.NewRequest(&draftapi.GetDraftRequest{DraftID: uuid.New()}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	// Gateway routes are only mounted in embedded mode.
	resp, err := http.Get(ts.URL + "/ws/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
