package models

import (
	"errors"
	"fmt"
	"time"
)

// ResponseStatus is the wire tag of a participant's answer to a proposal.
type ResponseStatus string

const (
	StatusPending             ResponseStatus = "pending"
	StatusSelectedSuggested   ResponseStatus = "selected_suggested"
	StatusProposedAlternative ResponseStatus = "proposed_alternative"
	StatusNoneWork            ResponseStatus = "none_work"
)

// ParseResponseStatus maps a wire string to a ResponseStatus.
func ParseResponseStatus(s string) (ResponseStatus, bool) {
	switch st := ResponseStatus(s); st {
	case StatusPending, StatusSelectedSuggested, StatusProposedAlternative, StatusNoneWork:
		return st, true
	}
	return "", false
}

// Choice is what a participant decided. Exactly one of Pending,
// SelectedSuggested, ProposedAlternative or NoneWork.
type Choice interface {
	Status() ResponseStatus
	validate() error
	clone() Choice
}

// Pending means the participant has not decided yet.
type Pending struct{}

// SelectedSuggested lists the offered slots the participant accepted.
type SelectedSuggested struct {
	SlotIDs []string
}

// ProposedAlternative carries the participant's own availability when none
// of the offered slots work.
type ProposedAlternative struct {
	Slots []TimeSlot
}

// NoneWork means no offered slot works and no alternative was given.
type NoneWork struct{}

func (Pending) Status() ResponseStatus             { return StatusPending }
func (SelectedSuggested) Status() ResponseStatus   { return StatusSelectedSuggested }
func (ProposedAlternative) Status() ResponseStatus { return StatusProposedAlternative }
func (NoneWork) Status() ResponseStatus            { return StatusNoneWork }

func (Pending) validate() error  { return nil }
func (NoneWork) validate() error { return nil }

func (c SelectedSuggested) validate() error {
	if len(c.SlotIDs) == 0 {
		return errors.New("selected_suggested requires at least one slot id")
	}
	seen := make(map[string]struct{}, len(c.SlotIDs))
	for _, id := range c.SlotIDs {
		if id == "" {
			return errors.New("selected_suggested contains an empty slot id")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("slot %s selected twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (c ProposedAlternative) validate() error {
	if len(c.Slots) == 0 {
		return errors.New("proposed_alternative requires at least one custom slot")
	}
	for _, s := range c.Slots {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("custom availability: %w", err)
		}
	}
	return nil
}

func (c Pending) clone() Choice  { return c }
func (c NoneWork) clone() Choice { return c }

func (c SelectedSuggested) clone() Choice {
	return SelectedSuggested{SlotIDs: append([]string(nil), c.SlotIDs...)}
}

func (c ProposedAlternative) clone() Choice {
	return ProposedAlternative{Slots: cloneSlots(c.Slots)}
}

// ParticipantResponse is one participant's answer to a ScheduleProposal.
type ParticipantResponse struct {
	ParticipantID string    // Opaque, platform supplied
	RespondedAt   time.Time // Display and ordering only
	Choice        Choice
}

// Status returns the response's tag. A nil Choice reads as pending.
func (r ParticipantResponse) Status() ResponseStatus {
	if r.Choice == nil {
		return StatusPending
	}
	return r.Choice.Status()
}

// SelectedSlotIDs returns the accepted slot IDs, empty unless the choice is
// SelectedSuggested.
func (r ParticipantResponse) SelectedSlotIDs() []string {
	if c, ok := r.Choice.(SelectedSuggested); ok {
		return c.SlotIDs
	}
	return nil
}

// CustomAvailability returns the participant's own slots, empty unless the
// choice is ProposedAlternative.
func (r ParticipantResponse) CustomAvailability() []TimeSlot {
	if c, ok := r.Choice.(ProposedAlternative); ok {
		return c.Slots
	}
	return nil
}

// Validate enforces the invariants of the response's variant.
func (r ParticipantResponse) Validate() error {
	if r.ParticipantID == "" {
		return errors.New("response has no participant id")
	}
	if r.Choice == nil {
		return nil
	}
	return r.Choice.validate()
}

// Clone returns a deep copy of the response.
func (r ParticipantResponse) Clone() ParticipantResponse {
	out := r
	if r.Choice != nil {
		out.Choice = r.Choice.clone()
	}
	return out
}
