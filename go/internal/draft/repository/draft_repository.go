package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/mcdev12/pooldraft/go/internal/sqlutil"
)

const draftColumns = `d.id, d.league_id, d.status, d.settings, d.timer_deadline, d.start_time, d.end_time,
	d.created_at, d.updated_at, (SELECT COUNT(*) FROM picks p WHERE p.draft_id = d.id) + 1`

func (r *Repository) CreateDraft(ctx context.Context, req CreateDraftParams) (*models.Draft, error) {
	settingsBytes, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft settings: %w", err)
	}

	_, err = r.q.exec(ctx,
		`INSERT INTO drafts (id, league_id, status, settings, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.LeagueID, string(models.DraftStatusPreDraft), settingsBytes, req.CreatedAt, req.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", asUniqueViolation(err))
	}

	return r.GetDraft(ctx, req.ID)
}

func (r *Repository) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	draft, err := scanDraft(r.q.queryRow(ctx, `SELECT `+draftColumns+` FROM drafts d WHERE d.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return draft, nil
}

func (r *Repository) GetDraftByLeague(ctx context.Context, leagueID uuid.UUID) (*models.Draft, error) {
	draft, err := scanDraft(r.q.queryRow(ctx, `SELECT `+draftColumns+` FROM drafts d WHERE d.league_id = ?`, leagueID))
	if err != nil {
		return nil, fmt.Errorf("failed to get draft by league: %w", err)
	}
	return draft, nil
}

// ListActiveDeadlines returns every in-progress draft's running deadline,
// soonest first. The timer manager uses it to recover after a restart.
func (r *Repository) ListActiveDeadlines(ctx context.Context) ([]ActiveDeadline, error) {
	rows, err := r.q.query(ctx,
		`SELECT id, timer_deadline FROM drafts WHERE status = ? AND timer_deadline IS NOT NULL ORDER BY timer_deadline, id`,
		string(models.DraftStatusInProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active deadlines: %w", err)
	}
	defer rows.Close()

	var deadlines []ActiveDeadline
	for rows.Next() {
		var (
			id       uuid.UUID
			deadline sql.NullTime
		)
		if err := rows.Scan(&id, &deadline); err != nil {
			return nil, fmt.Errorf("failed to scan active deadline: %w", err)
		}
		deadlines = append(deadlines, ActiveDeadline{DraftID: id, Deadline: deadline.Time.UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list active deadlines: %w", err)
	}
	return deadlines, nil
}

// TransitionDraft moves a draft from one status to another, failing with
// ErrStatusConflict when the stored status is no longer req.From. The
// transition event is written to the outbox in the same transaction.
func (r *Repository) TransitionDraft(ctx context.Context, req TransitionParams) (*models.Draft, error) {
	err := r.withTx(ctx, func(q *queries) error {
		res, err := q.exec(ctx,
			`UPDATE drafts
			 SET status = ?, timer_deadline = ?, start_time = COALESCE(?, start_time),
			     end_time = COALESCE(?, end_time), updated_at = ?
			 WHERE id = ? AND status = ?`,
			string(req.To), sqlutil.ToNullTime(req.TimerDeadline), sqlutil.ToNullTime(req.StartTime),
			sqlutil.ToNullTime(req.EndTime), req.At, req.DraftID, string(req.From),
		)
		if err != nil {
			return fmt.Errorf("failed to update draft status: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				return r.statusConflict(ctx, q, req.DraftID)
			}
			return err
		}

		if req.RequireSlots > 0 {
			if err := verifySlots(ctx, q, req.DraftID, req.RequireSlots); err != nil {
				return err
			}
		}

		return r.insertOutbox(ctx, q, req.Event, req.At)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transition draft: %w", err)
	}

	return r.GetDraft(ctx, req.DraftID)
}

// statusConflict distinguishes a missing draft from one whose status moved.
func (r *Repository) statusConflict(ctx context.Context, q *queries, draftID uuid.UUID) error {
	var one int
	err := q.queryRow(ctx, `SELECT 1 FROM drafts WHERE id = ?`, draftID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check draft: %w", err)
	}
	return ErrStatusConflict
}

func verifySlots(ctx context.Context, q *queries, draftID uuid.UUID, n int) error {
	var total, assigned int
	err := q.queryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT CASE WHEN p.draft_slot BETWEEN 1 AND ? THEN p.draft_slot END)
		 FROM participants p JOIN drafts d ON d.league_id = p.league_id
		 WHERE d.id = ?`,
		n, draftID,
	).Scan(&total, &assigned)
	if err != nil {
		return fmt.Errorf("failed to verify draft slots: %w", err)
	}
	if total != n || assigned != n {
		return fmt.Errorf("%w: %d participants, %d of %d slots assigned", ErrSlotsIncomplete, total, assigned, n)
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrStatusConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*models.Draft, error) {
	var (
		d             models.Draft
		status        string
		settingsBytes []byte
		deadline      sql.NullTime
		startTime     sql.NullTime
		endTime       sql.NullTime
	)
	err := row.Scan(&d.ID, &d.LeagueID, &status, &settingsBytes, &deadline, &startTime, &endTime,
		&d.CreatedAt, &d.UpdatedAt, &d.CurrentPickNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(settingsBytes, &d.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft settings: %w", err)
	}
	d.Status = models.DraftStatus(status)
	d.TimerDeadline = sqlutil.FromNullTime(deadline)
	d.StartTime = sqlutil.FromNullTime(startTime)
	d.EndTime = sqlutil.FromNullTime(endTime)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}
