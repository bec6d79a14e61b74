package draft

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/auth"
	"github.com/mcdev12/pooldraft/go/internal/draft/draftapi"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftApp defines what the service layer needs from the draft application
type DraftApp interface {
	CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error)
	AssignDraftSlots(ctx context.Context, req AssignDraftSlotsRequest) ([]models.Participant, error)
	Start(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	Pause(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	Resume(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	CurrentDrafter(ctx context.Context, id uuid.UUID) (*Turn, error)
	GetDraftState(ctx context.Context, id uuid.UUID) (*models.DraftState, error)
}

// Service implements the DraftService RPC interface
type Service struct {
	app DraftApp
}

// NewService creates a new draft RPC service
func NewService(app DraftApp) *Service {
	return &Service{app: app}
}

// Verify that Service implements the DraftServiceHandler interface
var _ draftapi.DraftServiceHandler = (*Service)(nil)

// CreateDraft creates a new draft
func (s *Service) CreateDraft(ctx context.Context, req *connect.Request[draftapi.CreateDraftRequest]) (*connect.Response[draftapi.CreateDraftResponse], error) {
	msg := req.Msg
	if err := auth.RequireCommissioner(ctx, msg.LeagueID); err != nil {
		return nil, connectError(err)
	}

	draft, err := s.app.CreateDraft(ctx, CreateDraftRequest{
		LeagueID:         msg.LeagueID,
		ParticipantCount: msg.ParticipantCount,
		Rounds:           msg.Rounds,
		PickTimerSeconds: msg.PickTimerSeconds,
	})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&draftapi.CreateDraftResponse{Draft: *draft}), nil
}

// AssignDraftSlots sets the draft order before the draft starts
func (s *Service) AssignDraftSlots(ctx context.Context, req *connect.Request[draftapi.AssignDraftSlotsRequest]) (*connect.Response[draftapi.AssignDraftSlotsResponse], error) {
	if _, err := s.authorizeCommissioner(ctx, req.Msg.DraftID); err != nil {
		return nil, err
	}

	slots := make([]SlotAssignment, len(req.Msg.Slots))
	for i, sl := range req.Msg.Slots {
		slots[i] = SlotAssignment{ParticipantID: sl.ParticipantID, DraftSlot: sl.DraftSlot}
	}
	participants, err := s.app.AssignDraftSlots(ctx, AssignDraftSlotsRequest{DraftID: req.Msg.DraftID, Slots: slots})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&draftapi.AssignDraftSlotsResponse{Participants: participants}), nil
}

// StartDraft starts a draft
func (s *Service) StartDraft(ctx context.Context, req *connect.Request[draftapi.StartDraftRequest]) (*connect.Response[draftapi.StartDraftResponse], error) {
	return s.changeStatus(ctx, req.Msg.DraftID, s.app.Start)
}

// PauseDraft pauses a running draft
func (s *Service) PauseDraft(ctx context.Context, req *connect.Request[draftapi.PauseDraftRequest]) (*connect.Response[draftapi.PauseDraftResponse], error) {
	return s.changeStatus(ctx, req.Msg.DraftID, s.app.Pause)
}

// ResumeDraft resumes a paused draft
func (s *Service) ResumeDraft(ctx context.Context, req *connect.Request[draftapi.ResumeDraftRequest]) (*connect.Response[draftapi.ResumeDraftResponse], error) {
	return s.changeStatus(ctx, req.Msg.DraftID, s.app.Resume)
}

func (s *Service) changeStatus(ctx context.Context, draftID uuid.UUID, fn func(context.Context, uuid.UUID) (*models.Draft, error)) (*connect.Response[draftapi.DraftResponse], error) {
	if _, err := s.authorizeCommissioner(ctx, draftID); err != nil {
		return nil, err
	}
	draft, err := fn(ctx, draftID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&draftapi.DraftResponse{Draft: *draft}), nil
}

// GetDraft retrieves a draft by ID
func (s *Service) GetDraft(ctx context.Context, req *connect.Request[draftapi.GetDraftRequest]) (*connect.Response[draftapi.GetDraftResponse], error) {
	draft, err := s.authorizeMember(ctx, req.Msg.DraftID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&draftapi.GetDraftResponse{Draft: *draft}), nil
}

// CurrentDrafter returns the participant on the clock
func (s *Service) CurrentDrafter(ctx context.Context, req *connect.Request[draftapi.CurrentDrafterRequest]) (*connect.Response[draftapi.CurrentDrafterResponse], error) {
	if _, err := s.authorizeMember(ctx, req.Msg.DraftID); err != nil {
		return nil, err
	}
	turn, err := s.app.CurrentDrafter(ctx, req.Msg.DraftID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&draftapi.CurrentDrafterResponse{
		Participant: turn.Participant,
		PickNumber:  turn.PickNumber,
		Round:       turn.Round,
		PickInRound: turn.PickInRound,
	}), nil
}

// GetDraftState returns the full snapshot used for resync
func (s *Service) GetDraftState(ctx context.Context, req *connect.Request[draftapi.GetDraftStateRequest]) (*connect.Response[draftapi.GetDraftStateResponse], error) {
	if _, err := s.authorizeMember(ctx, req.Msg.DraftID); err != nil {
		return nil, err
	}
	state, err := s.app.GetDraftState(ctx, req.Msg.DraftID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&draftapi.GetDraftStateResponse{State: *state}), nil
}

func (s *Service) authorizeCommissioner(ctx context.Context, draftID uuid.UUID) (*models.Draft, error) {
	draft, err := s.app.GetDraft(ctx, draftID)
	if err != nil {
		return nil, connectError(err)
	}
	if err := auth.RequireCommissioner(ctx, draft.LeagueID); err != nil {
		return nil, connectError(err)
	}
	return draft, nil
}

func (s *Service) authorizeMember(ctx context.Context, draftID uuid.UUID) (*models.Draft, error) {
	draft, err := s.app.GetDraft(ctx, draftID)
	if err != nil {
		return nil, connectError(err)
	}
	if err := auth.RequireLeagueMember(ctx, draft.LeagueID); err != nil {
		return nil, connectError(err)
	}
	return draft, nil
}

func connectError(err error) *connect.Error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, auth.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, ErrInvalidDraft):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSlotsIncomplete), errors.Is(err, ErrNoCurrentDrafter):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, repository.ErrUniqueViolation):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, repository.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	}

	log.Error().Err(err).Msg("draft service internal error")
	return connect.NewError(connect.CodeInternal, err)
}
