package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ScheduleProposal is an organizer's menu of candidate slots plus the
// responses accumulated so far. It is a value: every device holds its own
// copy, and a copy is stale as soon as another device sends a newer one.
type ScheduleProposal struct {
	ID            string
	Title         string
	Description   *string // nil when absent
	OrganizerName string
	CreatedAt     time.Time
	Slots         []TimeSlot
	Responses     map[string]ParticipantResponse // participant ID -> response
}

// NewScheduleProposal creates a proposal with a fresh ID and no responses.
func NewScheduleProposal(title string, description *string, organizer string, slots []TimeSlot, now time.Time) ScheduleProposal {
	return ScheduleProposal{
		ID:            NewID(),
		Title:         title,
		Description:   description,
		OrganizerName: organizer,
		CreatedAt:     now,
		Slots:         cloneSlots(slots),
		Responses:     map[string]ParticipantResponse{},
	}
}

// Clone returns a deep copy sharing no slices or maps with the receiver.
func (p ScheduleProposal) Clone() ScheduleProposal {
	out := p
	if p.Description != nil {
		d := *p.Description
		out.Description = &d
	}
	out.Slots = cloneSlots(p.Slots)
	out.Responses = make(map[string]ParticipantResponse, len(p.Responses))
	for pid, r := range p.Responses {
		out.Responses[pid] = r.Clone()
	}
	return out
}

// SlotByID finds a slot by its ID.
func (p ScheduleProposal) SlotByID(id string) (TimeSlot, bool) {
	for _, s := range p.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// TopSlots returns up to limit slots, most selected first. Slots with equal
// counts keep their order in the proposal.
func (p ScheduleProposal) TopSlots(limit int) []TimeSlot {
	if limit <= 0 {
		return nil
	}
	ranked := cloneSlots(p.Slots)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SelectionCount() > ranked[j].SelectionCount()
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ResponseCount returns how many participants have answered with anything
// other than pending.
func (p ScheduleProposal) ResponseCount() int {
	n := 0
	for _, r := range p.Responses {
		if r.Status() != StatusPending {
			n++
		}
	}
	return n
}

// Validate checks required metadata, every slot, and that every selected
// slot ID in every response references a slot of this proposal.
func (p ScheduleProposal) Validate() error {
	switch {
	case p.ID == "":
		return errors.New("proposal has no id")
	case p.Title == "":
		return errors.New("proposal has no title")
	case p.OrganizerName == "":
		return errors.New("proposal has no organizer")
	case p.CreatedAt.IsZero():
		return errors.New("proposal has no creation time")
	}

	ids := make(map[string]struct{}, len(p.Slots))
	for _, s := range p.Slots {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("duplicate slot id %s", s.ID)
		}
		ids[s.ID] = struct{}{}
	}

	for pid, r := range p.Responses {
		if r.ParticipantID != pid {
			return fmt.Errorf("response keyed %q belongs to %q", pid, r.ParticipantID)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("response of %s: %w", pid, err)
		}
		for _, id := range r.SelectedSlotIDs() {
			if _, ok := ids[id]; !ok {
				return fmt.Errorf("response of %s selects unknown slot %s", pid, id)
			}
		}
	}
	return nil
}
