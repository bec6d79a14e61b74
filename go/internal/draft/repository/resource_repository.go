package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/mcdev12/pooldraft/go/internal/sqlutil"
)

// Claims are read straight from the pick ledger, so a committed pick is
// visible to the next read with no cache in between.
const resourceSelect = `SELECT r.id, r.league_id, r.name, r.rank_or_seed, p.id
	FROM resources r
	JOIN drafts d ON d.league_id = r.league_id
	LEFT JOIN picks p ON p.draft_id = d.id AND p.resource_id = r.id`

// CreateResources inserts a league's draftable pool in one transaction.
func (r *Repository) CreateResources(ctx context.Context, resources []models.Resource) error {
	err := r.withTx(ctx, func(q *queries) error {
		for _, res := range resources {
			_, err := q.exec(ctx,
				`INSERT INTO resources (id, league_id, name, rank_or_seed) VALUES (?, ?, ?, ?)`,
				res.ID, res.LeagueID, res.Name, res.RankOrSeed,
			)
			if err != nil {
				return fmt.Errorf("failed to insert resource %s: %w", res.ID, asUniqueViolation(err))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create resources: %w", err)
	}
	return nil
}

// GetResource returns a resource in the draft's league with its claim.
func (r *Repository) GetResource(ctx context.Context, draftID, resourceID uuid.UUID) (*models.Resource, error) {
	res, err := scanResource(r.q.queryRow(ctx, resourceSelect+` WHERE d.id = ? AND r.id = ?`, draftID, resourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get resource: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

// ListResources returns the draft's whole pool, claimed or not, ordered by
// rank then id.
func (r *Repository) ListResources(ctx context.Context, draftID uuid.UUID) ([]models.Resource, error) {
	return r.listResources(ctx, resourceSelect+` WHERE d.id = ? ORDER BY r.rank_or_seed, r.id`, draftID)
}

// ListAvailableResources returns up to limit unclaimed resources ordered by
// rank then id. A limit of zero or less returns them all.
func (r *Repository) ListAvailableResources(ctx context.Context, draftID uuid.UUID, limit int) ([]models.Resource, error) {
	query := resourceSelect + ` WHERE d.id = ? AND p.id IS NULL ORDER BY r.rank_or_seed, r.id`
	if limit > 0 {
		return r.listResources(ctx, query+` LIMIT ?`, draftID, limit)
	}
	return r.listResources(ctx, query, draftID)
}

func (r *Repository) listResources(ctx context.Context, query string, args ...any) ([]models.Resource, error) {
	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var resources []models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

func scanResource(row rowScanner) (*models.Resource, error) {
	var (
		res       models.Resource
		claimedBy uuid.NullUUID
	)
	if err := row.Scan(&res.ID, &res.LeagueID, &res.Name, &res.RankOrSeed, &claimedBy); err != nil {
		return nil, err
	}
	res.ClaimedBy = sqlutil.FromNullUUID(claimedBy)
	return &res, nil
}
