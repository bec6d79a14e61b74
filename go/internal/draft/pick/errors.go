package pick

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Reason names why a pick was not committed.
type Reason string

const (
	ReasonDraftNotActive         Reason = "DraftNotActive"
	ReasonNotYourTurn            Reason = "NotYourTurn"
	ReasonResourceAlreadyClaimed Reason = "ResourceAlreadyClaimed"
	ReasonLostRace               Reason = "LostRace"
	ReasonDraftExhausted         Reason = "DraftExhausted"
	ReasonTimerNotExpired        Reason = "TimerNotExpired"
)

// ParseReason maps a wire value back to a Reason.
func ParseReason(s string) (Reason, bool) {
	switch r := Reason(s); r {
	case ReasonDraftNotActive, ReasonNotYourTurn, ReasonResourceAlreadyClaimed,
		ReasonLostRace, ReasonDraftExhausted, ReasonTimerNotExpired:
		return r, true
	}
	return "", false
}

// Rejection is returned when a pick request is refused. It does not consume
// the requester's turn.
type Rejection struct {
	Reason     Reason
	DraftID    uuid.UUID
	PickNumber int
	Detail     string
	Err        error
}

func (e *Rejection) Error() string {
	msg := fmt.Sprintf("pick rejected: %s", e.Reason)
	if e.PickNumber > 0 {
		msg = fmt.Sprintf("%s (pick %d)", msg, e.PickNumber)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *Rejection) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() comparison for Rejection. A target without a reason
// matches any rejection.
func (e *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Validation rejections.
var (
	ErrDraftNotActive  = &Rejection{Reason: ReasonDraftNotActive}
	ErrNotYourTurn     = &Rejection{Reason: ReasonNotYourTurn}
	ErrTimerNotExpired = &Rejection{Reason: ReasonTimerNotExpired}
)

// Race rejections.
var (
	ErrResourceAlreadyClaimed = &Rejection{Reason: ReasonResourceAlreadyClaimed}
	ErrLostRace               = &Rejection{Reason: ReasonLostRace}
)

// ErrDraftExhausted means no unclaimed resource is left for an auto-pick.
var ErrDraftExhausted = &Rejection{Reason: ReasonDraftExhausted}

// ErrRejected matches every *Rejection.
var ErrRejected = &Rejection{}

// ErrInvalidPick is returned for malformed requests: missing ids, or a
// participant or resource that does not belong to the draft.
var ErrInvalidPick = errors.New("invalid pick request")

// AsRejection extracts a *Rejection from an error chain.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
