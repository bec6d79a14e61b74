// Package memory is an in-process draft store with the same semantics as the
// SQL repository: unique pick numbers and resources per draft, conditional
// status updates and an ordered outbox. It backs DB_DRIVER=memory and the
// engine tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/mcdev12/pooldraft/go/internal/draft/repository"
	"github.com/mcdev12/pooldraft/go/internal/models"
)

type Store struct {
	mu           sync.Mutex
	drafts       map[uuid.UUID]models.Draft
	participants map[uuid.UUID]models.Participant
	resources    map[uuid.UUID]models.Resource
	picks        map[uuid.UUID][]models.Pick
	outbox       []repository.OutboxEvent
	seq          int64
	notify       chan string
	closed       bool
}

func NewStore() *Store {
	return &Store{
		drafts:       make(map[uuid.UUID]models.Draft),
		participants: make(map[uuid.UUID]models.Participant),
		resources:    make(map[uuid.UUID]models.Resource),
		picks:        make(map[uuid.UUID][]models.Pick),
		notify:       make(chan string, 256),
	}
}

func (s *Store) CreateDraft(_ context.Context, req repository.CreateDraftParams) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[req.ID]; ok {
		return nil, fmt.Errorf("failed to create draft: %w", &repository.UniqueViolationError{Constraint: "drafts_pkey"})
	}
	for _, d := range s.drafts {
		if d.LeagueID == req.LeagueID {
			return nil, fmt.Errorf("failed to create draft: %w", &repository.UniqueViolationError{Constraint: "drafts_league_id_key"})
		}
	}

	at := req.CreatedAt.UTC()
	s.drafts[req.ID] = models.Draft{
		ID:        req.ID,
		LeagueID:  req.LeagueID,
		Status:    models.DraftStatusPreDraft,
		Settings:  req.Settings,
		CreatedAt: at,
		UpdatedAt: at,
	}
	return s.draftLocked(req.ID), nil
}

func (s *Store) GetDraft(_ context.Context, id uuid.UUID) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[id]; !ok {
		return nil, fmt.Errorf("failed to get draft: %w", repository.ErrNotFound)
	}
	return s.draftLocked(id), nil
}

func (s *Store) GetDraftByLeague(_ context.Context, leagueID uuid.UUID) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range s.drafts {
		if d.LeagueID == leagueID {
			return s.draftLocked(id), nil
		}
	}
	return nil, fmt.Errorf("failed to get draft by league: %w", repository.ErrNotFound)
}

func (s *Store) ListActiveDeadlines(_ context.Context) ([]repository.ActiveDeadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []repository.ActiveDeadline
	for _, d := range s.drafts {
		if d.Status == models.DraftStatusInProgress && d.TimerDeadline != nil {
			out = append(out, repository.ActiveDeadline{DraftID: d.ID, Deadline: *d.TimerDeadline})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].DraftID.String() < out[j].DraftID.String()
	})
	return out, nil
}

func (s *Store) TransitionDraft(_ context.Context, req repository.TransitionParams) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[req.DraftID]
	if !ok {
		return nil, fmt.Errorf("failed to transition draft: %w", repository.ErrNotFound)
	}
	if d.Status != req.From {
		return nil, fmt.Errorf("failed to transition draft: %w", repository.ErrStatusConflict)
	}
	if req.RequireSlots > 0 {
		if err := s.verifySlotsLocked(d.LeagueID, req.RequireSlots); err != nil {
			return nil, fmt.Errorf("failed to transition draft: %w", err)
		}
	}
	if err := req.Event.Validate(); err != nil {
		return nil, fmt.Errorf("failed to transition draft: invalid outbox event: %w", err)
	}

	d.Status = req.To
	d.TimerDeadline = cloneTime(req.TimerDeadline)
	if req.StartTime != nil {
		d.StartTime = cloneTime(req.StartTime)
	}
	if req.EndTime != nil {
		d.EndTime = cloneTime(req.EndTime)
	}
	d.UpdatedAt = req.At.UTC()
	s.drafts[d.ID] = d

	s.appendOutboxLocked(req.Event, req.At)
	return s.draftLocked(d.ID), nil
}

func (s *Store) verifySlotsLocked(leagueID uuid.UUID, n int) error {
	total := 0
	seen := make(map[int]bool, n)
	for _, p := range s.participants {
		if p.LeagueID != leagueID {
			continue
		}
		total++
		if p.DraftSlot >= 1 && p.DraftSlot <= n {
			seen[p.DraftSlot] = true
		}
	}
	if total != n || len(seen) != n {
		return fmt.Errorf("%w: %d participants, %d of %d slots assigned", repository.ErrSlotsIncomplete, total, len(seen), n)
	}
	return nil
}

func (s *Store) CreateParticipants(_ context.Context, participants []models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range participants {
		if _, ok := s.participants[p.ID]; ok {
			return fmt.Errorf("failed to create participants: %w", &repository.UniqueViolationError{Constraint: "participants_pkey"})
		}
		if p.DraftSlot > 0 && (s.slotTakenLocked(p.LeagueID, p.DraftSlot) || slotIn(participants[:i], p.LeagueID, p.DraftSlot)) {
			return fmt.Errorf("failed to create participants: %w", &repository.UniqueViolationError{Constraint: "participants_league_slot_key"})
		}
	}
	for _, p := range participants {
		p.UserID = cloneUUID(p.UserID)
		s.participants[p.ID] = p
	}
	return nil
}

func (s *Store) slotTakenLocked(leagueID uuid.UUID, slot int) bool {
	for _, p := range s.participants {
		if p.LeagueID == leagueID && p.DraftSlot == slot {
			return true
		}
	}
	return false
}

func slotIn(ps []models.Participant, leagueID uuid.UUID, slot int) bool {
	for _, p := range ps {
		if p.LeagueID == leagueID && p.DraftSlot == slot {
			return true
		}
	}
	return false
}

func (s *Store) ListParticipants(_ context.Context, leagueID uuid.UUID) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Participant
	for _, p := range s.participants {
		if p.LeagueID == leagueID {
			p.UserID = cloneUUID(p.UserID)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.DraftSlot == 0) != (b.DraftSlot == 0) {
			return b.DraftSlot == 0
		}
		if a.DraftSlot != b.DraftSlot {
			return a.DraftSlot < b.DraftSlot
		}
		return a.ID.String() < b.ID.String()
	})
	return out, nil
}

func (s *Store) AssignDraftSlots(_ context.Context, draftID uuid.UUID, slots map[uuid.UUID]int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[draftID]
	if !ok {
		return fmt.Errorf("failed to assign draft slots: %w", repository.ErrNotFound)
	}
	if d.Status != models.DraftStatusPreDraft {
		return fmt.Errorf("failed to assign draft slots: %w", repository.ErrStatusConflict)
	}

	used := make(map[int]bool, len(slots))
	for participantID, slot := range slots {
		p, ok := s.participants[participantID]
		if !ok || p.LeagueID != d.LeagueID {
			return fmt.Errorf("failed to assign draft slots: participant %s: %w", participantID, repository.ErrNotFound)
		}
		if slot > 0 {
			if used[slot] {
				return fmt.Errorf("failed to assign draft slots: %w", &repository.UniqueViolationError{Constraint: "participants_league_slot_key"})
			}
			used[slot] = true
		}
	}

	for id, p := range s.participants {
		if p.LeagueID == d.LeagueID {
			p.DraftSlot = slots[id]
			s.participants[id] = p
		}
	}
	d.UpdatedAt = at.UTC()
	s.drafts[draftID] = d
	return nil
}

func (s *Store) CreateResources(_ context.Context, resources []models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range resources {
		if _, ok := s.resources[r.ID]; ok {
			return fmt.Errorf("failed to create resources: %w", &repository.UniqueViolationError{Constraint: "resources_pkey"})
		}
	}
	for _, r := range resources {
		r.ClaimedBy = nil
		s.resources[r.ID] = r
	}
	return nil
}

func (s *Store) GetResource(_ context.Context, draftID, resourceID uuid.UUID) (*models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("failed to get resource: %w", repository.ErrNotFound)
	}
	r, ok := s.resources[resourceID]
	if !ok || r.LeagueID != d.LeagueID {
		return nil, fmt.Errorf("failed to get resource: %w", repository.ErrNotFound)
	}
	r.ClaimedBy = s.claimLocked(draftID, resourceID)
	return &r, nil
}

func (s *Store) ListResources(_ context.Context, draftID uuid.UUID) ([]models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listResourcesLocked(draftID, false, 0), nil
}

func (s *Store) ListAvailableResources(_ context.Context, draftID uuid.UUID, limit int) ([]models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listResourcesLocked(draftID, true, limit), nil
}

func (s *Store) listResourcesLocked(draftID uuid.UUID, availableOnly bool, limit int) []models.Resource {
	d, ok := s.drafts[draftID]
	if !ok {
		return nil
	}
	var out []models.Resource
	for _, r := range s.resources {
		if r.LeagueID != d.LeagueID {
			continue
		}
		r.ClaimedBy = s.claimLocked(draftID, r.ID)
		if availableOnly && r.ClaimedBy != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RankOrSeed != out[j].RankOrSeed {
			return out[i].RankOrSeed < out[j].RankOrSeed
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) claimLocked(draftID, resourceID uuid.UUID) *uuid.UUID {
	for _, p := range s.picks[draftID] {
		if p.ResourceID == resourceID {
			id := p.ID
			return &id
		}
	}
	return nil
}

// CommitPick applies the same checks, in the same order, as the SQL
// transaction: both unique keys, ledger contiguity, then the status guard.
func (s *Store) CommitPick(_ context.Context, req repository.CommitPickParams) (*models.Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pick := req.Pick
	pick.CommittedAt = pick.CommittedAt.UTC()

	fail := func(err error) (*models.Pick, error) {
		return nil, fmt.Errorf("failed to commit pick %d: %w", pick.PickNumber, err)
	}

	d, ok := s.drafts[pick.DraftID]
	if !ok {
		return fail(fmt.Errorf("draft %s: %w", pick.DraftID, repository.ErrNotFound))
	}
	ledger := s.picks[pick.DraftID]
	for _, p := range ledger {
		if p.PickNumber == pick.PickNumber {
			return fail(&repository.UniqueViolationError{Constraint: "picks_draft_pick_number_key"})
		}
		if p.ResourceID == pick.ResourceID {
			return fail(&repository.UniqueViolationError{Constraint: "picks_draft_resource_key"})
		}
	}
	if len(ledger)+1 != pick.PickNumber {
		return fail(fmt.Errorf("%w: committing pick %d but ledger holds %d picks",
			repository.ErrInvariantViolation, pick.PickNumber, len(ledger)))
	}
	if d.Status != models.DraftStatusInProgress {
		return fail(repository.ErrStatusConflict)
	}
	for _, ev := range req.Events {
		if err := ev.Validate(); err != nil {
			return fail(fmt.Errorf("invalid outbox event: %w", err))
		}
	}

	s.picks[pick.DraftID] = append(ledger, pick)
	d.Status = req.NextStatus
	d.TimerDeadline = cloneTime(req.TimerDeadline)
	if req.EndTime != nil {
		d.EndTime = cloneTime(req.EndTime)
	}
	d.UpdatedAt = pick.CommittedAt
	s.drafts[d.ID] = d

	for _, ev := range req.Events {
		s.appendOutboxLocked(ev, pick.CommittedAt)
	}
	return &pick, nil
}

func (s *Store) ListPicks(_ context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.picks[draftID]
	out := make([]models.Pick, len(ledger))
	copy(out, ledger)
	return out, nil
}

func (s *Store) FetchUnsentOutbox(_ context.Context, limit int) ([]repository.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []repository.OutboxEvent
	for _, row := range s.outbox {
		if row.SentAt != nil {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].Event.ID == id && s.outbox[i].SentAt == nil {
			sent := at.UTC()
			s.outbox[i].SentAt = &sent
		}
	}
	return nil
}

func (s *Store) CountUnsentOutbox(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, row := range s.outbox {
		if row.SentAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) appendOutboxLocked(ev events.Event, at time.Time) {
	s.seq++
	ev.Timestamp = at.UTC()
	s.outbox = append(s.outbox, repository.OutboxEvent{Seq: s.seq, Event: ev, CreatedAt: at.UTC()})
	if s.closed {
		return
	}
	select {
	case s.notify <- ev.ID.String():
	default:
		// The relay drains in batches, a dropped wake-up is picked up by the
		// next one or by the fallback poll.
	}
}

// draftLocked returns a copy of the stored draft with the derived pick pointer.
func (s *Store) draftLocked(id uuid.UUID) *models.Draft {
	d := s.drafts[id]
	d.CurrentPickNumber = len(s.picks[id]) + 1
	d.TimerDeadline = cloneTime(d.TimerDeadline)
	d.StartTime = cloneTime(d.StartTime)
	d.EndTime = cloneTime(d.EndTime)
	return &d
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
