// Package notify holds the consumers of the participant lifecycle events:
// the admin roster view and the participant email notifier. Delivery from
// the bus is at-least-once with no replay, so every consumer here must be
// a no-op on duplicate events.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/confero/checkin-api/internal/domain"
	"github.com/confero/checkin-api/pkg/events"
	"github.com/confero/checkin-api/pkg/logger"
)

type RosterEntry struct {
	ParticipantID string                `json:"participant_id"`
	Name          string                `json:"name"`
	Email         string                `json:"email"`
	Status        domain.ApprovalStatus `json:"status"`
	Approved      bool                  `json:"approved"`
}

type RosterSummary struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

// Roster is the admin dashboard's in-memory view of participants. It is
// primed from the store at startup and then patched by id from the event
// stream, adjusting aggregate counters by delta rather than refetching.
type Roster struct {
	mu      sync.RWMutex
	entries map[string]RosterEntry
	counts  map[domain.ApprovalStatus]int
}

func NewRoster() *Roster {
	return &Roster{
		entries: make(map[string]RosterEntry),
		counts:  make(map[domain.ApprovalStatus]int),
	}
}

// Prime loads the current participant set before the roster starts
// consuming events.
func (r *Roster) Prime(participants []domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range participants {
		r.entries[p.ID] = RosterEntry{
			ParticipantID: p.ID,
			Name:          p.Name,
			Email:         p.Email,
			Status:        p.Status,
			Approved:      p.Approved(),
		}
		r.counts[p.Status]++
	}
}

// Apply patches the roster from one event. The old status is compared to
// the new one before any counter moves, so a duplicate delivery (old==new)
// changes nothing.
func (r *Roster) Apply(ev events.ParticipantUpdatedEvent) {
	status, ok := domain.ParseApprovalStatus(ev.Status)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := RosterEntry{
		ParticipantID: ev.ParticipantID,
		Name:          ev.Name,
		Email:         ev.Email,
		Status:        status,
		Approved:      ev.Approved,
	}

	old, known := r.entries[ev.ParticipantID]
	r.entries[ev.ParticipantID] = entry

	if !known {
		r.counts[status]++
		return
	}
	if old.Status == status {
		return
	}
	r.counts[old.Status]--
	r.counts[status]++
}

func (r *Roster) Summary() RosterSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RosterSummary{
		Total:    len(r.entries),
		Approved: r.counts[domain.StatusApproved],
		Pending:  r.counts[domain.StatusPending],
		Rejected: r.counts[domain.StatusRejected],
	}
}

func (r *Roster) Get(participantID string) (RosterEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[participantID]
	return e, ok
}

// Clear drops every entry. Applied on a bulk reset; safe to apply more than
// once since clearing an empty roster is itself a no-op.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]RosterEntry)
	r.counts = make(map[domain.ApprovalStatus]int)
}

// Start subscribes the roster to the participant event stream.
func (r *Roster) Start(bus events.Subscriber) error {
	if err := bus.Subscribe(events.ParticipantUpdated, func(msg *events.Message) {
		var ev events.ParticipantUpdatedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Error("Failed to decode participant event", "error", err, "subject", msg.Subject)
			return
		}
		r.Apply(ev)
	}); err != nil {
		return err
	}

	return bus.Subscribe(events.ParticipantBulkReset, func(msg *events.Message) {
		r.Clear()
	})
}
