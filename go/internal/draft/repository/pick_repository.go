package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/mcdev12/pooldraft/go/internal/sqlutil"
)

// CommitPick appends a pick to the ledger. The two unique indexes on
// (draft_id, pick_number) and (draft_id, resource_id) decide every race: the
// losing insert fails with a *UniqueViolationError. In the same transaction
// the ledger is checked for contiguity, the draft's status and deadline are
// advanced while it is still in_progress, and the outbox events are written.
func (r *Repository) CommitPick(ctx context.Context, req CommitPickParams) (*models.Pick, error) {
	pick := req.Pick
	pick.CommittedAt = pick.CommittedAt.UTC()

	err := r.withTx(ctx, func(q *queries) error {
		_, err := q.exec(ctx,
			`INSERT INTO picks (id, draft_id, pick_number, round, participant_id, resource_id, is_auto_pick, committed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			pick.ID, pick.DraftID, pick.PickNumber, pick.Round, pick.ParticipantID, pick.ResourceID,
			pick.IsAutoPick, pick.CommittedAt,
		)
		if err != nil {
			return asUniqueViolation(err)
		}

		var count, highest int
		if err := q.queryRow(ctx,
			`SELECT COUNT(*), MAX(pick_number) FROM picks WHERE draft_id = ?`, pick.DraftID,
		).Scan(&count, &highest); err != nil {
			return fmt.Errorf("failed to count picks: %w", err)
		}
		if count != pick.PickNumber || highest != pick.PickNumber {
			return fmt.Errorf("%w: committing pick %d but ledger holds %d picks up to %d",
				ErrInvariantViolation, pick.PickNumber, count, highest)
		}

		res, err := q.exec(ctx,
			`UPDATE drafts SET status = ?, timer_deadline = ?, end_time = COALESCE(?, end_time), updated_at = ?
			 WHERE id = ? AND status = ?`,
			string(req.NextStatus), sqlutil.ToNullTime(req.TimerDeadline), sqlutil.ToNullTime(req.EndTime),
			pick.CommittedAt, pick.DraftID, string(models.DraftStatusInProgress),
		)
		if err != nil {
			return fmt.Errorf("failed to advance draft: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			return err
		}

		for _, ev := range req.Events {
			if err := r.insertOutbox(ctx, q, ev, pick.CommittedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit pick %d: %w", pick.PickNumber, err)
	}

	return &pick, nil
}

// ListPicks returns a draft's committed picks in pick order.
func (r *Repository) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	rows, err := r.q.query(ctx,
		`SELECT id, draft_id, pick_number, round, participant_id, resource_id, is_auto_pick, committed_at
		 FROM picks WHERE draft_id = ? ORDER BY pick_number`,
		draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	defer rows.Close()

	var picks []models.Pick
	for rows.Next() {
		var p models.Pick
		if err := rows.Scan(&p.ID, &p.DraftID, &p.PickNumber, &p.Round, &p.ParticipantID, &p.ResourceID,
			&p.IsAutoPick, &p.CommittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}
		p.CommittedAt = p.CommittedAt.UTC()
		picks = append(picks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return picks, nil
}
