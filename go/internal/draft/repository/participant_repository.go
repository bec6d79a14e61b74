package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/mcdev12/pooldraft/go/internal/sqlutil"
)

// CreateParticipants inserts league seats in one transaction.
func (r *Repository) CreateParticipants(ctx context.Context, participants []models.Participant) error {
	err := r.withTx(ctx, func(q *queries) error {
		for _, p := range participants {
			_, err := q.exec(ctx,
				`INSERT INTO participants (id, league_id, draft_slot, display_label, user_id) VALUES (?, ?, ?, ?, ?)`,
				p.ID, p.LeagueID, sqlutil.ToNullSlot(p.DraftSlot), p.DisplayLabel, sqlutil.ToNullUUID(p.UserID),
			)
			if err != nil {
				return fmt.Errorf("failed to insert participant %s: %w", p.ID, asUniqueViolation(err))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create participants: %w", err)
	}
	return nil
}

// ListParticipants returns a league's seats ordered by draft slot, unassigned last.
func (r *Repository) ListParticipants(ctx context.Context, leagueID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.q.query(ctx,
		`SELECT id, league_id, draft_slot, display_label, user_id FROM participants
		 WHERE league_id = ?
		 ORDER BY CASE WHEN draft_slot IS NULL THEN 1 ELSE 0 END, draft_slot, id`,
		leagueID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var (
			p      models.Participant
			slot   sql.NullInt32
			userID uuid.NullUUID
		)
		if err := rows.Scan(&p.ID, &p.LeagueID, &slot, &p.DisplayLabel, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.DraftSlot = sqlutil.FromNullSlot(slot)
		p.UserID = sqlutil.FromNullUUID(userID)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

// AssignDraftSlots replaces the league's slot assignment. It only succeeds
// while the league's draft is in pre_draft; the draft row is touched first so
// a concurrent start waits for this transaction.
func (r *Repository) AssignDraftSlots(ctx context.Context, draftID uuid.UUID, slots map[uuid.UUID]int, at time.Time) error {
	err := r.withTx(ctx, func(q *queries) error {
		res, err := q.exec(ctx,
			`UPDATE drafts SET updated_at = ? WHERE id = ? AND status = ?`,
			at, draftID, string(models.DraftStatusPreDraft),
		)
		if err != nil {
			return fmt.Errorf("failed to lock draft: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			return r.statusConflict(ctx, q, draftID)
		}

		var leagueID uuid.UUID
		if err := q.queryRow(ctx, `SELECT league_id FROM drafts WHERE id = ?`, draftID).Scan(&leagueID); err != nil {
			return fmt.Errorf("failed to read draft league: %w", err)
		}

		if _, err := q.exec(ctx, `UPDATE participants SET draft_slot = NULL WHERE league_id = ?`, leagueID); err != nil {
			return fmt.Errorf("failed to clear draft slots: %w", err)
		}

		for participantID, slot := range slots {
			res, err := q.exec(ctx,
				`UPDATE participants SET draft_slot = ? WHERE id = ? AND league_id = ?`,
				sqlutil.ToNullSlot(slot), participantID, leagueID,
			)
			if err != nil {
				return fmt.Errorf("failed to assign slot %d: %w", slot, asUniqueViolation(err))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("participant %s: %w", participantID, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to assign draft slots: %w", err)
	}
	return nil
}
