// Package pool answers availability questions about a draft's resources.
// Every call reads the pick ledger directly; there is no cache to go stale.
package pool

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

// ResourceReader is what the pool needs from storage.
type ResourceReader interface {
	GetResource(ctx context.Context, draftID, resourceID uuid.UUID) (*models.Resource, error)
	ListAvailableResources(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Resource, error)
}

type Pool struct {
	repo ResourceReader
}

func NewPool(repo ResourceReader) *Pool {
	return &Pool{repo: repo}
}

// IsAvailable reports whether the resource is still unclaimed. A resource
// outside the draft's league is an error wrapping repository.ErrNotFound.
func (p *Pool) IsAvailable(ctx context.Context, draftID, resourceID uuid.UUID) (bool, error) {
	res, err := p.repo.GetResource(ctx, draftID, resourceID)
	if err != nil {
		return false, fmt.Errorf("failed to check resource availability: %w", err)
	}
	return !res.Claimed(), nil
}

// CheapestAvailable returns the unclaimed resource with the lowest rank,
// ties broken by ascending id, or nil when the pool is empty.
func (p *Pool) CheapestAvailable(ctx context.Context, draftID uuid.UUID) (*models.Resource, error) {
	resources, err := p.repo.ListAvailableResources(ctx, draftID, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to find cheapest available resource: %w", err)
	}
	if len(resources) == 0 {
		return nil, nil
	}
	return &resources[0], nil
}

// Available returns every unclaimed resource in rank order.
func (p *Pool) Available(ctx context.Context, draftID uuid.UUID) ([]models.Resource, error) {
	resources, err := p.repo.ListAvailableResources(ctx, draftID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list available resources: %w", err)
	}
	return resources, nil
}
