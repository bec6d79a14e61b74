package pick

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

// PickApp defines what the service layer needs from the pick application
type PickApp interface {
	SubmitPick(ctx context.Context, req SubmitPickRequest) (*models.Pick, error)
	AutoPick(ctx context.Context, draftID uuid.UUID) (*models.Pick, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error)
	Participant(ctx context.Context, draftID, participantID uuid.UUID) (*models.Participant, error)
}

// DraftLookup resolves the league a draft belongs to, for authorization.
type DraftLookup interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
}

// Service implements the PickService RPC interface
type Service struct {
	app    PickApp
	drafts DraftLookup
}

// NewService creates a new pick RPC service
func NewService(app PickApp, drafts DraftLookup) *Service {
	return &Service{app: app, drafts: drafts}
}

// Verify that Service implements the PickServiceHandler interface
var _ draftapi.PickServiceHandler = (*Service)(nil)

// SubmitPick commits a manual pick for the caller's seat. The commissioner
// may submit on behalf of any seat.
func (s *Service) SubmitPick(ctx context.Context, req *connect.Request[draftapi.SubmitPickRequest]) (*connect.Response[draftapi.SubmitPickResponse], error) {
	msg := req.Msg
	seat, err := s.app.Participant(ctx, msg.DraftID, msg.ParticipantID)
	if err != nil {
		return nil, ConnectError(err)
	}
	if err := auth.RequireSeat(ctx, seat.LeagueID, seat.UserID); err != nil {
		return nil, ConnectError(err)
	}

	pick, err := s.app.SubmitPick(ctx, SubmitPickRequest{
		DraftID:       msg.DraftID,
		ParticipantID: msg.ParticipantID,
		ResourceID:    msg.ResourceID,
	})
	if err != nil {
		return nil, ConnectError(err)
	}

	return connect.NewResponse(&draftapi.SubmitPickResponse{Pick: *pick}), nil
}

// TriggerAutoPick lets any league member's client report an expired timer.
// Duplicate triggers are harmless: at most one of them commits.
func (s *Service) TriggerAutoPick(ctx context.Context, req *connect.Request[draftapi.TriggerAutoPickRequest]) (*connect.Response[draftapi.TriggerAutoPickResponse], error) {
	draft, err := s.drafts.GetDraft(ctx, req.Msg.DraftID)
	if err != nil {
		return nil, ConnectError(err)
	}
	if err := auth.RequireLeagueMember(ctx, draft.LeagueID); err != nil {
		return nil, ConnectError(err)
	}

	pick, err := s.app.AutoPick(ctx, draft.ID)
	if err != nil {
		return nil, ConnectError(err)
	}
	return connect.NewResponse(&draftapi.TriggerAutoPickResponse{Pick: pick}), nil
}

// ListPicks returns the committed picks of a draft
func (s *Service) ListPicks(ctx context.Context, req *connect.Request[draftapi.ListPicksRequest]) (*connect.Response[draftapi.ListPicksResponse], error) {
	draft, err := s.drafts.GetDraft(ctx, req.Msg.DraftID)
	if err != nil {
		return nil, ConnectError(err)
	}
	if err := auth.RequireLeagueMember(ctx, draft.LeagueID); err != nil {
		return nil, ConnectError(err)
	}

	picks, err := s.app.ListPicks(ctx, draft.ID)
	if err != nil {
		return nil, ConnectError(err)
	}
	if picks == nil {
		picks = []models.Pick{}
	}
	return connect.NewResponse(&draftapi.ListPicksResponse{Picks: picks}), nil
}

// ConnectError converts app and auth errors into connect errors. Rejections
// carry their reason in the Rejection-Reason header.
func ConnectError(err error) *connect.Error {
	if rej, ok := AsRejection(err); ok {
		code := connect.CodeFailedPrecondition
		switch rej.Reason {
		case ReasonResourceAlreadyClaimed, ReasonLostRace:
			code = connect.CodeAborted
		case ReasonDraftExhausted:
			code = connect.CodeResourceExhausted
		}
		cerr := connect.NewError(code, err)
		cerr.Meta().Set(draftapi.RejectionHeader, string(rej.Reason))
		return cerr
	}

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, auth.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, ErrInvalidPick):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, repository.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	}

	log.Error().Err(err).Msg("pick service internal error")
	return connect.NewError(connect.CodeInternal, err)
}

// RejectionFromError maps a connect error received by a client back to a
// *Rejection. It returns nil when the error carries no rejection reason.
func RejectionFromError(err error) *Rejection {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return nil
	}
	reason, ok := ParseReason(cerr.Meta().Get(draftapi.RejectionHeader))
	if !ok {
		return nil
	}
	return &Rejection{Reason: reason, Detail: cerr.Message(), Err: err}
}
