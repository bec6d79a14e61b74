package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// insertOutbox writes an event row inside the caller's transaction and, on
// Postgres, announces its id on the notify channel. NOTIFY is delivered on
// commit, so listeners never see an id they cannot read yet.
func (r *Repository) insertOutbox(ctx context.Context, q *queries, ev events.Event, at time.Time) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid outbox event: %w", err)
	}

	headers := pqtype.NullRawMessage{}
	if len(ev.Headers) > 0 {
		raw, err := json.Marshal(ev.Headers)
		if err != nil {
			return fmt.Errorf("failed to marshal outbox headers: %w", err)
		}
		headers = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	_, err := q.exec(ctx,
		`INSERT INTO draft_outbox (id, draft_id, event_type, payload, headers, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.DraftID, string(ev.Type), []byte(ev.Payload), headers, at,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", ev.Type, err)
	}

	if r.dialect == dialectPostgres && r.notifyChannel != "" {
		if _, err := q.exec(ctx, `SELECT pg_notify(?, ?)`, r.notifyChannel, ev.ID.String()); err != nil {
			return fmt.Errorf("failed to notify outbox listeners: %w", err)
		}
	}
	return nil
}

// FetchUnsentOutbox returns up to limit unsent events in insertion order.
func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := r.q.query(ctx,
		`SELECT seq, id, draft_id, event_type, payload, headers, created_at, sent_at
		 FROM draft_outbox WHERE sent_at IS NULL ORDER BY seq LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var (
			row       OutboxEvent
			eventType string
			payload   []byte
			headers   []byte
			sentAt    sql.NullTime
		)
		if err := rows.Scan(&row.Seq, &row.Event.ID, &row.Event.DraftID, &eventType, &payload, &headers,
			&row.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		row.Event.Type = events.EventType(eventType)
		row.Event.Payload = json.RawMessage(payload)
		row.Event.Timestamp = row.CreatedAt.UTC()
		row.CreatedAt = row.CreatedAt.UTC()
		row.SentAt = sqlutil.FromNullTime(sentAt)

		nullHeaders := pqtype.NullRawMessage{RawMessage: headers, Valid: headers != nil}
		if nullHeaders.Valid {
			if err := json.Unmarshal(nullHeaders.RawMessage, &row.Event.Headers); err != nil {
				return nil, fmt.Errorf("failed to unmarshal outbox headers: %w", err)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	return out, nil
}

// MarkOutboxSent records that an event reached the bus.
func (r *Repository) MarkOutboxSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.q.exec(ctx, `UPDATE draft_outbox SET sent_at = ? WHERE id = ? AND sent_at IS NULL`, at, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

// CountUnsentOutbox reports the relay backlog.
func (r *Repository) CountUnsentOutbox(ctx context.Context) (int, error) {
	var n int
	if err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM draft_outbox WHERE sent_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unsent outbox events: %w", err)
	}
	return n, nil
}
