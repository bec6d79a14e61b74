package draftapi

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// DraftServiceName is the fully-qualified name of the DraftService service.
const DraftServiceName = "pooldraft.draft.v1.DraftService"

// DraftService procedures.
const (
	DraftServiceCreateDraftProcedure      = "/pooldraft.draft.v1.DraftService/CreateDraft"
	DraftServiceAssignDraftSlotsProcedure = "/pooldraft.draft.v1.DraftService/AssignDraftSlots"
	DraftServiceStartDraftProcedure       = "/pooldraft.draft.v1.DraftService/StartDraft"
	DraftServicePauseDraftProcedure       = "/pooldraft.draft.v1.DraftService/PauseDraft"
	DraftServiceResumeDraftProcedure      = "/pooldraft.draft.v1.DraftService/ResumeDraft"
	DraftServiceGetDraftProcedure         = "/pooldraft.draft.v1.DraftService/GetDraft"
	DraftServiceCurrentDrafterProcedure   = "/pooldraft.draft.v1.DraftService/CurrentDrafter"
	DraftServiceGetDraftStateProcedure    = "/pooldraft.draft.v1.DraftService/GetDraftState"
)

// DraftServiceHandler is implemented by the draft state machine service.
type DraftServiceHandler interface {
	CreateDraft(context.Context, *connect.Request[CreateDraftRequest]) (*connect.Response[CreateDraftResponse], error)
	AssignDraftSlots(context.Context, *connect.Request[AssignDraftSlotsRequest]) (*connect.Response[AssignDraftSlotsResponse], error)
	StartDraft(context.Context, *connect.Request[StartDraftRequest]) (*connect.Response[StartDraftResponse], error)
	PauseDraft(context.Context, *connect.Request[PauseDraftRequest]) (*connect.Response[PauseDraftResponse], error)
	ResumeDraft(context.Context, *connect.Request[ResumeDraftRequest]) (*connect.Response[ResumeDraftResponse], error)
	GetDraft(context.Context, *connect.Request[GetDraftRequest]) (*connect.Response[GetDraftResponse], error)
	CurrentDrafter(context.Context, *connect.Request[CurrentDrafterRequest]) (*connect.Response[CurrentDrafterResponse], error)
	GetDraftState(context.Context, *connect.Request[GetDraftStateRequest]) (*connect.Response[GetDraftStateResponse], error)
}

// NewDraftServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewDraftServiceHandler(svc DraftServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connect.WithCodec(Codec{}))

	mux := http.NewServeMux()
	mux.Handle(DraftServiceCreateDraftProcedure, connect.NewUnaryHandler(DraftServiceCreateDraftProcedure, svc.CreateDraft, opts...))
	mux.Handle(DraftServiceAssignDraftSlotsProcedure, connect.NewUnaryHandler(DraftServiceAssignDraftSlotsProcedure, svc.AssignDraftSlots, opts...))
	mux.Handle(DraftServiceStartDraftProcedure, connect.NewUnaryHandler(DraftServiceStartDraftProcedure, svc.StartDraft, opts...))
	mux.Handle(DraftServicePauseDraftProcedure, connect.NewUnaryHandler(DraftServicePauseDraftProcedure, svc.PauseDraft, opts...))
	mux.Handle(DraftServiceResumeDraftProcedure, connect.NewUnaryHandler(DraftServiceResumeDraftProcedure, svc.ResumeDraft, opts...))
	mux.Handle(DraftServiceGetDraftProcedure, connect.NewUnaryHandler(DraftServiceGetDraftProcedure, svc.GetDraft, opts...))
	mux.Handle(DraftServiceCurrentDrafterProcedure, connect.NewUnaryHandler(DraftServiceCurrentDrafterProcedure, svc.CurrentDrafter, opts...))
	mux.Handle(DraftServiceGetDraftStateProcedure, connect.NewUnaryHandler(DraftServiceGetDraftStateProcedure, svc.GetDraftState, opts...))
	return "/" + DraftServiceName + "/", mux
}

// DraftServiceClient is a client for DraftService.
type DraftServiceClient interface {
	CreateDraft(context.Context, *connect.Request[CreateDraftRequest]) (*connect.Response[CreateDraftResponse], error)
	AssignDraftSlots(context.Context, *connect.Request[AssignDraftSlotsRequest]) (*connect.Response[AssignDraftSlotsResponse], error)
	StartDraft(context.Context, *connect.Request[StartDraftRequest]) (*connect.Response[StartDraftResponse], error)
	PauseDraft(context.Context, *connect.Request[PauseDraftRequest]) (*connect.Response[PauseDraftResponse], error)
	ResumeDraft(context.Context, *connect.Request[ResumeDraftRequest]) (*connect.Response[ResumeDraftResponse], error)
	GetDraft(context.Context, *connect.Request[GetDraftRequest]) (*connect.Response[GetDraftResponse], error)
	CurrentDrafter(context.Context, *connect.Request[CurrentDrafterRequest]) (*connect.Response[CurrentDrafterResponse], error)
	GetDraftState(context.Context, *connect.Request[GetDraftStateRequest]) (*connect.Response[GetDraftStateResponse], error)
}

// NewDraftServiceClient constructs a client for DraftService. baseURL is the
// server root, e.g. http://localhost:8080.
func NewDraftServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) DraftServiceClient {
	opts = append(opts, connect.WithCodec(Codec{}))
	return &draftServiceClient{
		createDraft:      connect.NewClient[CreateDraftRequest, CreateDraftResponse](httpClient, baseURL+DraftServiceCreateDraftProcedure, opts...),
		assignDraftSlots: connect.NewClient[AssignDraftSlotsRequest, AssignDraftSlotsResponse](httpClient, baseURL+DraftServiceAssignDraftSlotsProcedure, opts...),
		startDraft:       connect.NewClient[StartDraftRequest, StartDraftResponse](httpClient, baseURL+DraftServiceStartDraftProcedure, opts...),
		pauseDraft:       connect.NewClient[PauseDraftRequest, PauseDraftResponse](httpClient, baseURL+DraftServicePauseDraftProcedure, opts...),
		resumeDraft:      connect.NewClient[ResumeDraftRequest, ResumeDraftResponse](httpClient, baseURL+DraftServiceResumeDraftProcedure, opts...),
		getDraft:         connect.NewClient[GetDraftRequest, GetDraftResponse](httpClient, baseURL+DraftServiceGetDraftProcedure, opts...),
		currentDrafter:   connect.NewClient[CurrentDrafterRequest, CurrentDrafterResponse](httpClient, baseURL+DraftServiceCurrentDrafterProcedure, opts...),
		getDraftState:    connect.NewClient[GetDraftStateRequest, GetDraftStateResponse](httpClient, baseURL+DraftServiceGetDraftStateProcedure, opts...),
	}
}

type draftServiceClient struct {
	createDraft      *connect.Client[CreateDraftRequest, CreateDraftResponse]
	assignDraftSlots *connect.Client[AssignDraftSlotsRequest, AssignDraftSlotsResponse]
	startDraft       *connect.Client[StartDraftRequest, StartDraftResponse]
	pauseDraft       *connect.Client[PauseDraftRequest, PauseDraftResponse]
	resumeDraft      *connect.Client[ResumeDraftRequest, ResumeDraftResponse]
	getDraft         *connect.Client[GetDraftRequest, GetDraftResponse]
	currentDrafter   *connect.Client[CurrentDrafterRequest, CurrentDrafterResponse]
	getDraftState    *connect.Client[GetDraftStateRequest, GetDraftStateResponse]
}

func (c *draftServiceClient) CreateDraft(ctx context.Context, req *connect.Request[CreateDraftRequest]) (*connect.Response[CreateDraftResponse], error) {
	return c.createDraft.CallUnary(ctx, req)
}

func (c *draftServiceClient) AssignDraftSlots(ctx context.Context, req *connect.Request[AssignDraftSlotsRequest]) (*connect.Response[AssignDraftSlotsResponse], error) {
	return c.assignDraftSlots.CallUnary(ctx, req)
}

func (c *draftServiceClient) StartDraft(ctx context.Context, req *connect.Request[StartDraftRequest]) (*connect.Response[StartDraftResponse], error) {
	return c.startDraft.CallUnary(ctx, req)
}

func (c *draftServiceClient) PauseDraft(ctx context.Context, req *connect.Request[PauseDraftRequest]) (*connect.Response[PauseDraftResponse], error) {
	return c.pauseDraft.CallUnary(ctx, req)
}

func (c *draftServiceClient) ResumeDraft(ctx context.Context, req *connect.Request[ResumeDraftRequest]) (*connect.Response[ResumeDraftResponse], error) {
	return c.resumeDraft.CallUnary(ctx, req)
}

func (c *draftServiceClient) GetDraft(ctx context.Context, req *connect.Request[GetDraftRequest]) (*connect.Response[GetDraftResponse], error) {
	return c.getDraft.CallUnary(ctx, req)
}

func (c *draftServiceClient) CurrentDrafter(ctx context.Context, req *connect.Request[CurrentDrafterRequest]) (*connect.Response[CurrentDrafterResponse], error) {
	return c.currentDrafter.CallUnary(ctx, req)
}

func (c *draftServiceClient) GetDraftState(ctx context.Context, req *connect.Request[GetDraftStateRequest]) (*connect.Response[GetDraftStateResponse], error) {
	return c.getDraftState.CallUnary(ctx, req)
}
