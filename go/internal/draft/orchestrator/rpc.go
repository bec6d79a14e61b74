package orchestrator

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/draft/draftapi"
	"github.com/mcdev12/pooldraft/go/internal/draft/pick"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

// RPCPicker auto-picks through the PickService of a remote draft server.
// Rejections come back as *pick.Rejection so the orchestrator treats local
// and remote pickers alike.
type RPCPicker struct {
	client draftapi.PickServiceClient
}

func NewRPCPicker(client draftapi.PickServiceClient) *RPCPicker {
	return &RPCPicker{client: client}
}

func (p *RPCPicker) AutoPick(ctx context.Context, draftID uuid.UUID) (*models.Pick, error) {
	res, err := p.client.TriggerAutoPick(ctx, connect.NewRequest(&draftapi.TriggerAutoPickRequest{DraftID: draftID}))
	if err != nil {
		if rej := pick.RejectionFromError(err); rej != nil {
			rej.DraftID = draftID
			return nil, rej
		}
		return nil, fmt.Errorf("TriggerAutoPick failed: %w", err)
	}
	if res.Msg.Pick == nil {
		return nil, fmt.Errorf("TriggerAutoPick returned no pick for draft %s", draftID)
	}
	return res.Msg.Pick, nil
}
