package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/dbconfig"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/stretchr/testify/suite"
)

var baseTime = time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)

// RepositoryTestSuite runs the repository against a SQLite file per test.
type RepositoryTestSuite struct {
	suite.Suite
	ctx  context.Context
	repo *Repository
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

// SetupTest opens a fresh database before each test
func (suite *RepositoryTestSuite) SetupTest() {
	suite.ctx = context.Background()

	cfg := dbconfig.Config{
		Driver:     dbconfig.DriverSQLite,
		SQLitePath: filepath.Join(suite.T().TempDir(), "draft.db"),
	}
	db, err := Open(suite.ctx, cfg)
	suite.Require().NoError(err)
	suite.T().Cleanup(func() { db.Close() })

	suite.repo, err = NewRepository(db, cfg.Driver)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.repo.Migrate(suite.ctx))
}

type fixture struct {
	draft        *models.Draft
	participants []models.Participant
	resources    []models.Resource
}

// seed creates a draft with n participants (slots 1..n) and m resources ranked 1..m.
func (suite *RepositoryTestSuite) seed(n, m, rounds int) fixture {
	leagueID := uuid.New()
	draft, err := suite.repo.CreateDraft(suite.ctx, CreateDraftParams{
		ID:        uuid.New(),
		LeagueID:  leagueID,
		Settings:  models.DraftSettings{Rounds: rounds, PickTimerSeconds: 60, ParticipantCount: n},
		CreatedAt: baseTime,
	})
	suite.Require().NoError(err)

	participants := make([]models.Participant, n)
	for i := range participants {
		participants[i] = models.Participant{
			ID:           uuid.New(),
			LeagueID:     leagueID,
			DraftSlot:    i + 1,
			DisplayLabel: fmt.Sprintf("Team %d", i+1),
		}
	}
	suite.Require().NoError(suite.repo.CreateParticipants(suite.ctx, participants))

	resources := make([]models.Resource, m)
	for i := range resources {
		resources[i] = models.Resource{
			ID:         uuid.New(),
			LeagueID:   leagueID,
			Name:       fmt.Sprintf("Resource %d", i+1),
			RankOrSeed: i + 1,
		}
	}
	suite.Require().NoError(suite.repo.CreateResources(suite.ctx, resources))

	return fixture{draft: draft, participants: participants, resources: resources}
}

func (suite *RepositoryTestSuite) start(f fixture) *models.Draft {
	deadline := baseTime.Add(time.Minute)
	ev, err := events.NewDraftStatusChanged(f.draft.ID, models.DraftStatusPreDraft, models.DraftStatusInProgress, &deadline, baseTime)
	suite.Require().NoError(err)

	draft, err := suite.repo.TransitionDraft(suite.ctx, TransitionParams{
		DraftID:       f.draft.ID,
		From:          models.DraftStatusPreDraft,
		To:            models.DraftStatusInProgress,
		TimerDeadline: &deadline,
		StartTime:     &baseTime,
		RequireSlots:  len(f.participants),
		At:            baseTime,
		Event:         ev,
	})
	suite.Require().NoError(err)
	return draft
}

func (suite *RepositoryTestSuite) commitParams(f fixture, pickNumber int, resource models.Resource) CommitPickParams {
	at := baseTime.Add(time.Duration(pickNumber) * time.Second)
	deadline := at.Add(time.Minute)
	pick := models.Pick{
		ID:            uuid.New(),
		DraftID:       f.draft.ID,
		PickNumber:    pickNumber,
		Round:         1,
		ParticipantID: f.participants[0].ID,
		ResourceID:    resource.ID,
		CommittedAt:   at,
	}
	ev, err := events.NewPickCommitted(pick, &deadline)
	suite.Require().NoError(err)
	return CommitPickParams{
		Pick:          pick,
		NextStatus:    models.DraftStatusInProgress,
		TimerDeadline: &deadline,
		Events:        []events.Event{ev},
	}
}

// TestCreateDraft tests that a new draft starts in pre_draft on pick 1
func (suite *RepositoryTestSuite) TestCreateDraft() {
	f := suite.seed(4, 8, 2)

	suite.Equal(models.DraftStatusPreDraft, f.draft.Status)
	suite.Equal(1, f.draft.CurrentPickNumber)
	suite.Equal(8, f.draft.TotalPicks())
	suite.Nil(f.draft.TimerDeadline)

	byLeague, err := suite.repo.GetDraftByLeague(suite.ctx, f.draft.LeagueID)
	suite.NoError(err)
	suite.Equal(f.draft.ID, byLeague.ID)
}

// TestCreateDraftDuplicateLeague tests that a league holds at most one draft
func (suite *RepositoryTestSuite) TestCreateDraftDuplicateLeague() {
	f := suite.seed(2, 2, 1)

	_, err := suite.repo.CreateDraft(suite.ctx, CreateDraftParams{
		ID:        uuid.New(),
		LeagueID:  f.draft.LeagueID,
		Settings:  f.draft.Settings,
		CreatedAt: baseTime,
	})
	suite.ErrorIs(err, ErrUniqueViolation)
}

// TestGetDraftNotFound tests the not found sentinel
func (suite *RepositoryTestSuite) TestGetDraftNotFound() {
	_, err := suite.repo.GetDraft(suite.ctx, uuid.New())
	suite.ErrorIs(err, ErrNotFound)
}

// TestAssignDraftSlots tests replacing the slot order before the draft starts
func (suite *RepositoryTestSuite) TestAssignDraftSlots() {
	f := suite.seed(3, 3, 1)

	slots := map[uuid.UUID]int{
		f.participants[0].ID: 3,
		f.participants[1].ID: 1,
		f.participants[2].ID: 2,
	}
	suite.Require().NoError(suite.repo.AssignDraftSlots(suite.ctx, f.draft.ID, slots, baseTime))

	got, err := suite.repo.ListParticipants(suite.ctx, f.draft.LeagueID)
	suite.Require().NoError(err)
	suite.Require().Len(got, 3)
	suite.Equal(f.participants[1].ID, got[0].ID)
	suite.Equal(f.participants[2].ID, got[1].ID)
	suite.Equal(f.participants[0].ID, got[2].ID)

	err = suite.repo.AssignDraftSlots(suite.ctx, f.draft.ID, map[uuid.UUID]int{uuid.New(): 1}, baseTime)
	suite.ErrorIs(err, ErrNotFound)
}

// TestAssignDraftSlotsAfterStart tests that the order is frozen once the draft runs
func (suite *RepositoryTestSuite) TestAssignDraftSlotsAfterStart() {
	f := suite.seed(2, 4, 2)
	suite.start(f)

	err := suite.repo.AssignDraftSlots(suite.ctx, f.draft.ID, map[uuid.UUID]int{f.participants[0].ID: 2}, baseTime)
	suite.ErrorIs(err, ErrStatusConflict)
}

// TestTransitionDraftStart tests starting a draft and writing its event
func (suite *RepositoryTestSuite) TestTransitionDraftStart() {
	f := suite.seed(2, 4, 2)
	draft := suite.start(f)

	suite.Equal(models.DraftStatusInProgress, draft.Status)
	suite.Require().NotNil(draft.TimerDeadline)
	suite.WithinDuration(baseTime.Add(time.Minute), *draft.TimerDeadline, time.Millisecond)
	suite.Require().NotNil(draft.StartTime)

	outbox, err := suite.repo.FetchUnsentOutbox(suite.ctx, 10)
	suite.Require().NoError(err)
	suite.Require().Len(outbox, 1)
	suite.Equal(events.EventTypeDraftStatusChanged, outbox[0].Event.Type)

	deadlines, err := suite.repo.ListActiveDeadlines(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(deadlines, 1)
	suite.Equal(f.draft.ID, deadlines[0].DraftID)
}

// TestTransitionDraftConflict tests the compare-and-set on status
func (suite *RepositoryTestSuite) TestTransitionDraftConflict() {
	f := suite.seed(2, 4, 2)
	ev, err := events.NewDraftStatusChanged(f.draft.ID, models.DraftStatusInProgress, models.DraftStatusPaused, nil, baseTime)
	suite.Require().NoError(err)

	_, err = suite.repo.TransitionDraft(suite.ctx, TransitionParams{
		DraftID: f.draft.ID,
		From:    models.DraftStatusInProgress,
		To:      models.DraftStatusPaused,
		At:      baseTime,
		Event:   ev,
	})
	suite.ErrorIs(err, ErrStatusConflict)

	ev.DraftID = uuid.New()
	_, err = suite.repo.TransitionDraft(suite.ctx, TransitionParams{
		DraftID: ev.DraftID,
		From:    models.DraftStatusInProgress,
		To:      models.DraftStatusPaused,
		At:      baseTime,
		Event:   ev,
	})
	suite.ErrorIs(err, ErrNotFound)

	n, err := suite.repo.CountUnsentOutbox(suite.ctx)
	suite.NoError(err)
	suite.Zero(n)
}

// TestTransitionDraftSlotsIncomplete tests that a start with missing slots rolls back
func (suite *RepositoryTestSuite) TestTransitionDraftSlotsIncomplete() {
	f := suite.seed(3, 6, 2)
	suite.Require().NoError(suite.repo.AssignDraftSlots(suite.ctx, f.draft.ID, map[uuid.UUID]int{
		f.participants[0].ID: 1,
		f.participants[1].ID: 2,
	}, baseTime))

	deadline := baseTime.Add(time.Minute)
	ev, err := events.NewDraftStatusChanged(f.draft.ID, models.DraftStatusPreDraft, models.DraftStatusInProgress, &deadline, baseTime)
	suite.Require().NoError(err)
	_, err = suite.repo.TransitionDraft(suite.ctx, TransitionParams{
		DraftID:       f.draft.ID,
		From:          models.DraftStatusPreDraft,
		To:            models.DraftStatusInProgress,
		TimerDeadline: &deadline,
		RequireSlots:  3,
		At:            baseTime,
		Event:         ev,
	})
	suite.ErrorIs(err, ErrSlotsIncomplete)

	draft, err := suite.repo.GetDraft(suite.ctx, f.draft.ID)
	suite.Require().NoError(err)
	suite.Equal(models.DraftStatusPreDraft, draft.Status)
}

// TestCommitPick tests the happy path of committing picks in order
func (suite *RepositoryTestSuite) TestCommitPick() {
	f := suite.seed(2, 4, 2)
	suite.start(f)

	pick, err := suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 1, f.resources[2]))
	suite.Require().NoError(err)
	suite.Equal(1, pick.PickNumber)

	draft, err := suite.repo.GetDraft(suite.ctx, f.draft.ID)
	suite.Require().NoError(err)
	suite.Equal(2, draft.CurrentPickNumber)
	suite.Require().NotNil(draft.TimerDeadline)
	suite.WithinDuration(baseTime.Add(time.Second+time.Minute), *draft.TimerDeadline, time.Millisecond)

	res, err := suite.repo.GetResource(suite.ctx, f.draft.ID, f.resources[2].ID)
	suite.Require().NoError(err)
	suite.True(res.Claimed())
	suite.Equal(pick.ID, *res.ClaimedBy)

	available, err := suite.repo.ListAvailableResources(suite.ctx, f.draft.ID, 0)
	suite.Require().NoError(err)
	suite.Len(available, 3)
	for _, r := range available {
		suite.NotEqual(f.resources[2].ID, r.ID)
	}

	cheapest, err := suite.repo.ListAvailableResources(suite.ctx, f.draft.ID, 1)
	suite.Require().NoError(err)
	suite.Require().Len(cheapest, 1)
	suite.Equal(f.resources[0].ID, cheapest[0].ID)

	picks, err := suite.repo.ListPicks(suite.ctx, f.draft.ID)
	suite.Require().NoError(err)
	suite.Require().Len(picks, 1)
	suite.Equal(pick.ResourceID, picks[0].ResourceID)
	suite.True(pick.CommittedAt.Equal(picks[0].CommittedAt))
}

// TestCommitPickLostRaceOnPickNumber tests that a second commit of the same pick number fails
func (suite *RepositoryTestSuite) TestCommitPickLostRaceOnPickNumber() {
	f := suite.seed(2, 4, 2)
	suite.start(f)

	_, err := suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 1, f.resources[0]))
	suite.Require().NoError(err)

	_, err = suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 1, f.resources[1]))
	suite.ErrorIs(err, ErrUniqueViolation)

	picks, err := suite.repo.ListPicks(suite.ctx, f.draft.ID)
	suite.NoError(err)
	suite.Len(picks, 1)
}

// TestCommitPickLostRaceOnResource tests that a resource can be claimed once
func (suite *RepositoryTestSuite) TestCommitPickLostRaceOnResource() {
	f := suite.seed(2, 4, 2)
	suite.start(f)

	_, err := suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 1, f.resources[0]))
	suite.Require().NoError(err)

	_, err = suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 2, f.resources[0]))
	suite.ErrorIs(err, ErrUniqueViolation)

	draft, err := suite.repo.GetDraft(suite.ctx, f.draft.ID)
	suite.NoError(err)
	suite.Equal(2, draft.CurrentPickNumber)
}

// TestCommitPickGap tests that skipping a pick number is rejected and rolled back
func (suite *RepositoryTestSuite) TestCommitPickGap() {
	f := suite.seed(2, 4, 2)
	suite.start(f)

	_, err := suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 2, f.resources[0]))
	suite.ErrorIs(err, ErrInvariantViolation)

	picks, err := suite.repo.ListPicks(suite.ctx, f.draft.ID)
	suite.NoError(err)
	suite.Empty(picks)
}

// TestCommitPickDraftNotActive tests that a pick cannot land on a draft that is not running
func (suite *RepositoryTestSuite) TestCommitPickDraftNotActive() {
	f := suite.seed(2, 4, 2)

	_, err := suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 1, f.resources[0]))
	suite.ErrorIs(err, ErrStatusConflict)

	picks, err := suite.repo.ListPicks(suite.ctx, f.draft.ID)
	suite.NoError(err)
	suite.Empty(picks)
	n, err := suite.repo.CountUnsentOutbox(suite.ctx)
	suite.NoError(err)
	suite.Zero(n)
}

// TestCommitPickCompletesDraft tests the final pick clearing the deadline
func (suite *RepositoryTestSuite) TestCommitPickCompletesDraft() {
	f := suite.seed(1, 1, 1)
	suite.start(f)

	params := suite.commitParams(f, 1, f.resources[0])
	end := params.Pick.CommittedAt
	params.NextStatus = models.DraftStatusCompleted
	params.TimerDeadline = nil
	params.EndTime = &end

	_, err := suite.repo.CommitPick(suite.ctx, params)
	suite.Require().NoError(err)

	draft, err := suite.repo.GetDraft(suite.ctx, f.draft.ID)
	suite.Require().NoError(err)
	suite.Equal(models.DraftStatusCompleted, draft.Status)
	suite.Nil(draft.TimerDeadline)
	suite.NotNil(draft.EndTime)
	suite.Equal(2, draft.CurrentPickNumber)

	deadlines, err := suite.repo.ListActiveDeadlines(suite.ctx)
	suite.NoError(err)
	suite.Empty(deadlines)
}

// TestOutboxOrdering tests fetch order, headers and marking events sent
func (suite *RepositoryTestSuite) TestOutboxOrdering() {
	f := suite.seed(2, 4, 2)
	suite.start(f)
	_, err := suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 1, f.resources[0]))
	suite.Require().NoError(err)
	_, err = suite.repo.CommitPick(suite.ctx, suite.commitParams(f, 2, f.resources[1]))
	suite.Require().NoError(err)

	outbox, err := suite.repo.FetchUnsentOutbox(suite.ctx, 10)
	suite.Require().NoError(err)
	suite.Require().Len(outbox, 3)
	suite.Equal(events.EventTypeDraftStatusChanged, outbox[0].Event.Type)
	suite.Equal(events.EventTypePickCommitted, outbox[1].Event.Type)
	suite.Equal("1", outbox[1].Event.Headers[events.HeaderPickNumber])
	suite.Equal("2", outbox[2].Event.Headers[events.HeaderPickNumber])
	suite.Less(outbox[0].Seq, outbox[1].Seq)
	suite.Less(outbox[1].Seq, outbox[2].Seq)

	payload, err := outbox[2].Event.PickCommitted()
	suite.Require().NoError(err)
	suite.Equal(2, payload.Pick.PickNumber)

	suite.Require().NoError(suite.repo.MarkOutboxSent(suite.ctx, outbox[0].Event.ID, baseTime))
	n, err := suite.repo.CountUnsentOutbox(suite.ctx)
	suite.NoError(err)
	suite.Equal(2, n)

	rest, err := suite.repo.FetchUnsentOutbox(suite.ctx, 1)
	suite.Require().NoError(err)
	suite.Require().Len(rest, 1)
	suite.Equal(outbox[1].Event.ID, rest[0].Event.ID)
}
