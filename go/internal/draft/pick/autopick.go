package pick

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

// CheapestSource returns the unclaimed resource with the lowest rank.
type CheapestSource interface {
	CheapestAvailable(ctx context.Context, draftID uuid.UUID) (*models.Resource, error)
}

// Resolver chooses the resource an auto-pick claims. It never looks at
// participant preference.
type Resolver struct {
	pool CheapestSource
}

func NewResolver(pool CheapestSource) *Resolver {
	return &Resolver{pool: pool}
}

// Resolve returns the lowest-ranked unclaimed resource, ties broken by
// ascending id. It fails with ErrDraftExhausted when the pool is empty.
func (r *Resolver) Resolve(ctx context.Context, draftID uuid.UUID) (uuid.UUID, error) {
	res, err := r.pool.CheapestAvailable(ctx, draftID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve auto-pick: %w", err)
	}
	if res == nil {
		return uuid.Nil, &Rejection{
			Reason:  ReasonDraftExhausted,
			DraftID: draftID,
			Detail:  "no unclaimed resources remain",
		}
	}
	return res.ID, nil
}
