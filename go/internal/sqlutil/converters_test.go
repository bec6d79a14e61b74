package sqlutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeConverters(t *testing.T) {
	assert.False(t, ToNullTime(nil).Valid)
	assert.Nil(t, FromNullTime(sql.NullTime{}))

	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2026, 9, 1, 13, 0, 0, 0, loc)
	got := FromNullTime(ToNullTime(&now))
	require.NotNil(t, got)
	assert.True(t, now.Equal(*got))
	assert.Equal(t, time.UTC, got.Location())
}

func TestUUIDConverters(t *testing.T) {
	assert.False(t, ToNullUUID(nil).Valid)
	assert.Nil(t, FromNullUUID(uuid.NullUUID{}))

	id := uuid.New()
	got := FromNullUUID(ToNullUUID(&id))
	require.NotNil(t, got)
	assert.Equal(t, id, *got)
}

func TestSlotConverters(t *testing.T) {
	assert.False(t, ToNullSlot(0).Valid)
	assert.False(t, ToNullSlot(-1).Valid)
	assert.Equal(t, sql.NullInt32{Int32: 3, Valid: true}, ToNullSlot(3))
	assert.Equal(t, 0, FromNullSlot(sql.NullInt32{}))
	assert.Equal(t, 5, FromNullSlot(sql.NullInt32{Int32: 5, Valid: true}))
}
