package sqlutil

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Helper functions for converting between Go types and sql.Null* types

// ToNullTime converts a Go time pointer to sql.NullTime
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// FromNullTime converts sql.NullTime to a UTC Go time pointer
func FromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// ToNullUUID converts a Go UUID pointer to uuid.NullUUID
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// FromNullUUID converts uuid.NullUUID to a Go UUID pointer
func FromNullUUID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}

// ToNullSlot converts a draft slot to sql.NullInt32, treating zero as unassigned
func ToNullSlot(slot int) sql.NullInt32 {
	if slot <= 0 {
		return sql.NullInt32{Valid: false}
	}
	return sql.NullInt32{Int32: int32(slot), Valid: true}
}

// FromNullSlot converts sql.NullInt32 to a draft slot, zero when unassigned
func FromNullSlot(slot sql.NullInt32) int {
	if !slot.Valid {
		return 0
	}
	return int(slot.Int32)
}
