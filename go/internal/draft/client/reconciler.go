// Package client is the observer side of a draft: a reconciler that merges
// server events into a local view with optimistic picks on top, and a
// watcher that keeps it connected and reports expired timers.
package client

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/pick"
	"github.com/mcdev12/pooldraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotLoaded       = errors.New("draft state not loaded")
	ErrResourceTaken   = errors.New("resource already claimed or pending")
	ErrUnknownResource = errors.New("resource not in the draft pool")
)

// Outcome says what Apply did with an event.
type Outcome int

const (
	Applied Outcome = iota
	Duplicate
	Ignored
	// ResyncRequired means the view is stale and must be reloaded from a
	// full snapshot.
	ResyncRequired
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case Ignored:
		return "ignored"
	case ResyncRequired:
		return "resync_required"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// PendingPick is an optimistic pick the server has not confirmed yet.
type PendingPick struct {
	ParticipantID uuid.UUID
	ResourceID    uuid.UUID
	PickNumber    int
	SubmittedAt   time.Time
}

// View is a consistent copy of the reconciled state.
type View struct {
	Draft        models.Draft
	Participants []models.Participant
	Picks        []models.Pick
	Available    []models.Resource // unclaimed and not pending, rank order
	Pending      []PendingPick
	Remaining    time.Duration
	Stale        bool
}

// Reconciler keeps two layers: a confirmed base built from the snapshot and
// committed pick events, keyed by pick number and pick id, and a pending
// overlay of local submissions keyed by resource id. Pending entries are
// replaced by the authoritative pick or rolled back, never merged blindly.
type Reconciler struct {
	clock clockwork.Clock

	mu           sync.Mutex
	loaded       bool
	stale        bool
	draft        models.Draft
	participants []models.Participant
	resources    map[uuid.UUID]models.Resource
	byNumber     map[int]models.Pick
	byID         map[uuid.UUID]int
	pending      map[uuid.UUID]PendingPick
	statusAt     time.Time // last change applied to status or deadline
	skew         time.Duration // server time minus local time at the last load
}

func NewReconciler(clock clockwork.Clock) *Reconciler {
	return &Reconciler{
		clock:   clock,
		pending: make(map[uuid.UUID]PendingPick),
	}
}

// Load replaces the confirmed base with a snapshot. Pending picks survive
// only while their resource is still unclaimed.
func (r *Reconciler) Load(state *models.DraftState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draft = state.Draft
	r.participants = append([]models.Participant(nil), state.Participants...)
	r.resources = make(map[uuid.UUID]models.Resource, len(state.Resources))
	for _, res := range state.Resources {
		r.resources[res.ID] = res
	}
	r.byNumber = make(map[int]models.Pick, len(state.Picks))
	r.byID = make(map[uuid.UUID]int, len(state.Picks))
	for _, p := range state.Picks {
		r.byNumber[p.PickNumber] = p
		r.byID[p.ID] = p.PickNumber
		r.claimLocked(p)
	}
	for id := range r.pending {
		if res, ok := r.resources[id]; !ok || res.Claimed() {
			delete(r.pending, id)
		}
	}
	r.statusAt = state.Draft.UpdatedAt
	if !state.ServerTime.IsZero() {
		r.skew = state.ServerTime.Sub(r.clock.Now())
	}
	r.loaded = true
	r.stale = false

	log.Debug().
		Str("draft_id", state.Draft.ID.String()).
		Int("picks", len(state.Picks)).
		Int("pending", len(r.pending)).
		Msg("loaded draft snapshot")
}

// Apply merges one event. Re-delivered events are detected by pick id and
// leave the view unchanged.
func (r *Reconciler) Apply(ev events.Event) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded || r.stale {
		return ResyncRequired, nil
	}
	if ev.DraftID != r.draft.ID {
		return Ignored, nil
	}

	switch ev.Type {
	case events.EventTypePickCommitted:
		payload, err := ev.PickCommitted()
		if err != nil {
			return Ignored, err
		}
		return r.applyPickLocked(payload.Pick, payload.TimerDeadline), nil

	case events.EventTypeDraftStatusChanged:
		payload, err := ev.DraftStatusChanged()
		if err != nil {
			return Ignored, err
		}
		return r.applyStatusLocked(payload), nil
	}
	return Ignored, nil
}

// Confirm merges the pick returned to this client by SubmitPick.
func (r *Reconciler) Confirm(p models.Pick) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded || r.stale {
		return ResyncRequired
	}
	return r.applyPickLocked(p, nil)
}

func (r *Reconciler) applyPickLocked(p models.Pick, deadline *time.Time) Outcome {
	if _, seen := r.byID[p.ID]; seen {
		return Duplicate
	}

	next := len(r.byNumber) + 1
	switch {
	case p.PickNumber > next:
		log.Warn().
			Str("draft_id", r.draft.ID.String()).
			Int("expected", next).
			Int("got", p.PickNumber).
			Msg("gap in pick events, resync required")
		r.stale = true
		return ResyncRequired
	case p.PickNumber < next:
		// Another pick already holds this number in the confirmed base.
		log.Error().
			Str("draft_id", r.draft.ID.String()).
			Int("pick_number", p.PickNumber).
			Str("pick_id", p.ID.String()).
			Msg("conflicting pick for a confirmed number, resync required")
		r.stale = true
		return ResyncRequired
	}

	r.byNumber[p.PickNumber] = p
	r.byID[p.ID] = p.PickNumber
	r.claimLocked(p)
	delete(r.pending, p.ResourceID)

	r.draft.CurrentPickNumber = p.PickNumber + 1
	// A pause seen before this pick arrived keeps its cleared deadline.
	newer := p.CommittedAt.After(r.statusAt)
	switch {
	case p.PickNumber >= r.draft.TotalPicks():
		r.draft.Status = models.DraftStatusCompleted
		r.draft.TimerDeadline = nil
		r.draft.EndTime = &p.CommittedAt
		r.pending = make(map[uuid.UUID]PendingPick)
	case newer:
		if deadline == nil {
			// The committer restarts the full timer at commit time.
			d := p.CommittedAt.Add(r.draft.PickTimer())
			deadline = &d
		}
		r.draft.TimerDeadline = deadline
	}
	if newer {
		r.statusAt = p.CommittedAt
	}
	return Applied
}

func (r *Reconciler) applyStatusLocked(p events.DraftStatusChangedPayload) Outcome {
	if r.draft.Status == models.DraftStatusCompleted {
		return Ignored
	}
	// Events are not ordered across types on the wire. Anything no newer
	// than the last change already seen is a replay.
	if !p.ChangedAt.After(r.statusAt) {
		return Duplicate
	}
	r.draft.Status = p.Status
	r.draft.TimerDeadline = p.TimerDeadline
	r.statusAt = p.ChangedAt
	if p.Status == models.DraftStatusInProgress && r.draft.StartTime == nil {
		at := p.ChangedAt
		r.draft.StartTime = &at
	}
	return Applied
}

func (r *Reconciler) claimLocked(p models.Pick) {
	res, ok := r.resources[p.ResourceID]
	if !ok {
		return
	}
	id := p.ID
	res.ClaimedBy = &id
	r.resources[p.ResourceID] = res
}

// AddPending records an optimistic pick so the resource disappears from the
// local pool before the server answers.
func (r *Reconciler) AddPending(participantID, resourceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return ErrNotLoaded
	}
	res, ok := r.resources[resourceID]
	if !ok {
		return ErrUnknownResource
	}
	if _, pending := r.pending[resourceID]; pending || res.Claimed() {
		return ErrResourceTaken
	}
	r.pending[resourceID] = PendingPick{
		ParticipantID: participantID,
		ResourceID:    resourceID,
		PickNumber:    r.draft.CurrentPickNumber,
		SubmittedAt:   r.clock.Now(),
	}
	return nil
}

// Rollback drops a pending pick.
func (r *Reconciler) Rollback(resourceID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, resourceID)
}

// Resolve settles a pending pick with the result of its SubmitPick call. A
// race rejection also marks the view stale: the caller must refresh before
// picking again.
func (r *Reconciler) Resolve(resourceID uuid.UUID, p *models.Pick, err error) Outcome {
	if err == nil && p != nil {
		return r.Confirm(*p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, resourceID)
	if errors.Is(err, pick.ErrLostRace) || errors.Is(err, pick.ErrResourceAlreadyClaimed) {
		r.stale = true
		return ResyncRequired
	}
	return Ignored
}

// Stale reports whether the view needs a full resync.
func (r *Reconciler) Stale() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.loaded || r.stale
}

// MarkStale forces a resync, e.g. after a lost connection.
func (r *Reconciler) MarkStale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale = true
}

// Remaining is the time left on the clock, measured against the server's
// clock as of the last snapshot.
func (r *Reconciler) Remaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft.Remaining(r.clock.Now().Add(r.skew))
}

// Expired reports whether the pick on the clock has run out of time.
func (r *Reconciler) Expired() (pickNumber int, expired bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded || r.stale {
		return 0, false
	}
	return r.draft.CurrentPickNumber, r.draft.Expired(r.clock.Now().Add(r.skew))
}

// View returns a copy of the reconciled state.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		Draft:        r.draft,
		Participants: append([]models.Participant(nil), r.participants...),
		Picks:        make([]models.Pick, 0, len(r.byNumber)),
		Pending:      make([]PendingPick, 0, len(r.pending)),
		Remaining:    r.draft.Remaining(r.clock.Now().Add(r.skew)),
		Stale:        !r.loaded || r.stale,
	}
	for n := 1; n <= len(r.byNumber); n++ {
		v.Picks = append(v.Picks, r.byNumber[n])
	}
	for _, res := range r.resources {
		if _, pending := r.pending[res.ID]; !pending && !res.Claimed() {
			v.Available = append(v.Available, res)
		}
	}
	sort.Slice(v.Available, func(i, j int) bool {
		a, b := v.Available[i], v.Available[j]
		if a.RankOrSeed != b.RankOrSeed {
			return a.RankOrSeed < b.RankOrSeed
		}
		return a.ID.String() < b.ID.String()
	})
	for _, p := range r.pending {
		v.Pending = append(v.Pending, p)
	}
	sort.Slice(v.Pending, func(i, j int) bool {
		return v.Pending[i].SubmittedAt.Before(v.Pending[j].SubmittedAt)
	})
	return v
}
