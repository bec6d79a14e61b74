package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/draft/draft"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

// Resource mirrors the JSON pool snapshot
type Resource struct {
	Name       string `json:"name"`
	RankOrSeed int    `json:"rank_or_seed"`
}

func main() {
	var (
		participants = flag.Int("participants", 4, "number of seats")
		rounds       = flag.Int("rounds", 3, "number of rounds")
		timer        = flag.Int("timer", 60, "pick timer in seconds")
		poolFile     = flag.String("pool", "", "JSON file of resources; generated when empty")
		tokenTTL     = flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed tokens")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}
	config.SetupLogging(cfg.LogLevel)
	ctx := context.Background()

	// 1) Load or generate the pool
	pool, err := loadPool(*poolFile, *participants**rounds)
	if err != nil {
		fail("load pool", err)
	}

	// 2) Connect using shared config
	db, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		fail("connect", err)
	}
	defer db.Close()
	repo, err := repository.NewRepository(db, cfg.Database.Driver)
	if err != nil {
		fail("create repository", err)
	}
	repo.SetNotifyChannel(cfg.Outbox.NotifyChannel)
	if err := repo.Migrate(ctx); err != nil {
		fail("apply schema", err)
	}

	// 3) Draft, seats and pool for a fresh league
	clock := clockwork.NewRealClock()
	app := draft.NewApp(repo, clock)
	leagueID := uuid.New()

	d, err := app.CreateDraft(ctx, draft.CreateDraftRequest{
		LeagueID:         leagueID,
		ParticipantCount: *participants,
		Rounds:           *rounds,
		PickTimerSeconds: *timer,
	})
	if err != nil {
		fail("create draft", err)
	}

	seats := make([]models.Participant, *participants)
	slots := make([]draft.SlotAssignment, *participants)
	for i := range seats {
		userID := uuid.New()
		seats[i] = models.Participant{
			ID:           uuid.New(),
			LeagueID:     leagueID,
			DisplayLabel: fmt.Sprintf("Seat %d", i+1),
			UserID:       &userID,
		}
		slots[i] = draft.SlotAssignment{ParticipantID: seats[i].ID, DraftSlot: i + 1}
	}
	if err := repo.CreateParticipants(ctx, seats); err != nil {
		fail("create participants", err)
	}
	if _, err := app.AssignDraftSlots(ctx, draft.AssignDraftSlotsRequest{DraftID: d.ID, Slots: slots}); err != nil {
		fail("assign slots", err)
	}

	resources := make([]models.Resource, len(pool))
	for i, r := range pool {
		resources[i] = models.Resource{ID: uuid.New(), LeagueID: leagueID, Name: r.Name, RankOrSeed: r.RankOrSeed}
	}
	if err := repo.CreateResources(ctx, resources); err != nil {
		fail("create resources", err)
	}

	fmt.Printf("Draft seed: draft=%s league=%s seats=%d rounds=%d resources=%d\n",
		d.ID, leagueID, len(seats), *rounds, len(resources))

	// 4) Tokens, when this config can sign them
	if cfg.Auth.Disabled {
		fmt.Println("auth disabled - no tokens issued")
		return
	}
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, clock)
	commissioner, err := verifier.Sign(uuid.New(), leagueID, auth.RoleCommissioner, *tokenTTL)
	if err != nil {
		fail("sign token", err)
	}
	fmt.Printf("commissioner token=%s\n", commissioner)
	for i, seat := range seats {
		token, err := verifier.Sign(*seat.UserID, leagueID, auth.RoleMember, *tokenTTL)
		if err != nil {
			fail("sign token", err)
		}
		fmt.Printf("slot=%d participant=%s token=%s\n", i+1, seat.ID, token)
	}
}

func loadPool(path string, n int) ([]Resource, error) {
	if path == "" {
		pool := make([]Resource, n)
		for i := range pool {
			pool[i] = Resource{Name: fmt.Sprintf("Resource %d", i+1), RankOrSeed: i + 1}
		}
		return pool, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JSON: %w", err)
	}
	var pool []Resource
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if len(pool) < n {
		fmt.Fprintf(os.Stderr, "warning: pool has %d resources, the draft needs %d\n", len(pool), n)
	}
	return pool, nil
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
