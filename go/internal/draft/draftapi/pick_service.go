package draftapi

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// PickServiceName is the fully-qualified name of the PickService service.
const PickServiceName = "pooldraft.draft.v1.PickService"

// PickService procedures.
const (
	PickServiceSubmitPickProcedure      = "/pooldraft.draft.v1.PickService/SubmitPick"
	PickServiceTriggerAutoPickProcedure = "/pooldraft.draft.v1.PickService/TriggerAutoPick"
	PickServiceListPicksProcedure       = "/pooldraft.draft.v1.PickService/ListPicks"
)

// PickServiceHandler is implemented by the pick committer service.
type PickServiceHandler interface {
	SubmitPick(context.Context, *connect.Request[SubmitPickRequest]) (*connect.Response[SubmitPickResponse], error)
	TriggerAutoPick(context.Context, *connect.Request[TriggerAutoPickRequest]) (*connect.Response[TriggerAutoPickResponse], error)
	ListPicks(context.Context, *connect.Request[ListPicksRequest]) (*connect.Response[ListPicksResponse], error)
}

// NewPickServiceHandler builds an HTTP handler from the service
// implementation.
func NewPickServiceHandler(svc PickServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connect.WithCodec(Codec{}))

	mux := http.NewServeMux()
	mux.Handle(PickServiceSubmitPickProcedure, connect.NewUnaryHandler(PickServiceSubmitPickProcedure, svc.SubmitPick, opts...))
	mux.Handle(PickServiceTriggerAutoPickProcedure, connect.NewUnaryHandler(PickServiceTriggerAutoPickProcedure, svc.TriggerAutoPick, opts...))
	mux.Handle(PickServiceListPicksProcedure, connect.NewUnaryHandler(PickServiceListPicksProcedure, svc.ListPicks, opts...))
	return "/" + PickServiceName + "/", mux
}

// PickServiceClient is a client for PickService.
type PickServiceClient interface {
	SubmitPick(context.Context, *connect.Request[SubmitPickRequest]) (*connect.Response[SubmitPickResponse], error)
	TriggerAutoPick(context.Context, *connect.Request[TriggerAutoPickRequest]) (*connect.Response[TriggerAutoPickResponse], error)
	ListPicks(context.Context, *connect.Request[ListPicksRequest]) (*connect.Response[ListPicksResponse], error)
}

func NewPickServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PickServiceClient {
	opts = append(opts, connect.WithCodec(Codec{}))
	return &pickServiceClient{
		submitPick:      connect.NewClient[SubmitPickRequest, SubmitPickResponse](httpClient, baseURL+PickServiceSubmitPickProcedure, opts...),
		triggerAutoPick: connect.NewClient[TriggerAutoPickRequest, TriggerAutoPickResponse](httpClient, baseURL+PickServiceTriggerAutoPickProcedure, opts...),
		listPicks:       connect.NewClient[ListPicksRequest, ListPicksResponse](httpClient, baseURL+PickServiceListPicksProcedure, opts...),
	}
}

type pickServiceClient struct {
	submitPick      *connect.Client[SubmitPickRequest, SubmitPickResponse]
	triggerAutoPick *connect.Client[TriggerAutoPickRequest, TriggerAutoPickResponse]
	listPicks       *connect.Client[ListPicksRequest, ListPicksResponse]
}

func (c *pickServiceClient) SubmitPick(ctx context.Context, req *connect.Request[SubmitPickRequest]) (*connect.Response[SubmitPickResponse], error) {
	return c.submitPick.CallUnary(ctx, req)
}

func (c *pickServiceClient) TriggerAutoPick(ctx context.Context, req *connect.Request[TriggerAutoPickRequest]) (*connect.Response[TriggerAutoPickResponse], error) {
	return c.triggerAutoPick.CallUnary(ctx, req)
}

func (c *pickServiceClient) ListPicks(ctx context.Context, req *connect.Request[ListPicksRequest]) (*connect.Response[ListPicksResponse], error) {
	return c.listPicks.CallUnary(ctx, req)
}
