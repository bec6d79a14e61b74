package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

var (
	// ErrNotFound is returned when a draft, participant or resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict is returned when a conditional draft update matched no
	// row because the status moved underneath the caller.
	ErrStatusConflict = errors.New("draft status changed concurrently")
	// ErrSlotsIncomplete is returned when a draft is started before every
	// participant holds a distinct draft slot.
	ErrSlotsIncomplete = errors.New("draft order is not fully assigned")
	// ErrInvariantViolation is returned when the pick ledger disagrees with the
	// pick being committed. The transaction is rolled back.
	ErrInvariantViolation = errors.New("pick ledger invariant violated")
	// ErrUniqueViolation matches any *UniqueViolationError.
	ErrUniqueViolation = &UniqueViolationError{}
)

// UniqueViolationError wraps a driver error raised by a unique index.
type UniqueViolationError struct {
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("unique constraint %s violated: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("unique constraint violated: %v", e.Err)
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() comparison for UniqueViolationError
func (e *UniqueViolationError) Is(target error) bool {
	_, ok := target.(*UniqueViolationError)
	return ok
}

// CreateDraftParams represents a request to create a draft in pre_draft
type CreateDraftParams struct {
	ID        uuid.UUID
	LeagueID  uuid.UUID
	Settings  models.DraftSettings
	CreatedAt time.Time
}

// TransitionParams describes a compare-and-set on draft status. StartTime and
// EndTime are only written when non-nil. When RequireSlots is positive the
// transition also verifies, inside the same transaction, that exactly that many
// participants hold the distinct slots 1..RequireSlots.
type TransitionParams struct {
	DraftID       uuid.UUID
	From          models.DraftStatus
	To            models.DraftStatus
	TimerDeadline *time.Time
	StartTime     *time.Time
	EndTime       *time.Time
	RequireSlots  int
	At            time.Time
	Event         events.Event
}

// CommitPickParams is everything the committer writes atomically: the pick,
// the draft's next status and deadline, and the outbox events describing it.
type CommitPickParams struct {
	Pick          models.Pick
	NextStatus    models.DraftStatus
	TimerDeadline *time.Time
	EndTime       *time.Time
	Events        []events.Event
}

// ActiveDeadline is the running deadline of an in-progress draft.
type ActiveDeadline struct {
	DraftID  uuid.UUID
	Deadline time.Time
}

// OutboxEvent is an outbox row.
type OutboxEvent struct {
	Seq       int64
	Event     events.Event
	CreatedAt time.Time
	SentAt    *time.Time
}
