// Package aggregate applies one participant's answer to a decoded proposal
// or event and returns the updated value.
//
// The result is meant to be re-encoded as a full snapshot. Two participants
// answering from stale copies will each send a snapshot that lacks the
// other's answer, and whichever arrives last wins. Nothing here detects or
// merges that.
package aggregate

import (
	"calinvite/internal/models"
)

// ApplyResponse records r as participantID's answer and sets that
// participant's selection on every slot: true where the slot's ID is among
// the selected IDs, an explicit false everywhere else.
//
// An invalid response leaves p untouched; p is returned as-is together with
// a *ValidationError. Applying the same response twice gives the same value.
func ApplyResponse(p models.ScheduleProposal, participantID string, r models.ParticipantResponse) (models.ScheduleProposal, error) {
	if err := validateResponse(p, participantID, r); err != nil {
		return p, err
	}

	r = r.Clone()
	r.ParticipantID = participantID
	if r.Choice == nil {
		r.Choice = models.Pending{}
	}

	selected := make(map[string]struct{}, len(r.SelectedSlotIDs()))
	for _, id := range r.SelectedSlotIDs() {
		selected[id] = struct{}{}
	}

	out := p.Clone()
	out.Responses[participantID] = r
	for i := range out.Slots {
		_, ok := selected[out.Slots[i].ID]
		out.Slots[i].Selections[participantID] = ok
	}
	return out, nil
}

func validateResponse(p models.ScheduleProposal, participantID string, r models.ParticipantResponse) error {
	if participantID == "" {
		return invalid(participantID, "participant id is empty")
	}
	if r.ParticipantID != "" && r.ParticipantID != participantID {
		return invalid(participantID, "response belongs to %q", r.ParticipantID)
	}
	r.ParticipantID = participantID
	if err := r.Validate(); err != nil {
		return &ValidationError{ParticipantID: participantID, Reason: err}
	}
	for _, id := range r.SelectedSlotIDs() {
		if _, ok := p.SlotByID(id); !ok {
			return invalid(participantID, "slot %s is not part of proposal %s", id, p.ID)
		}
	}
	return nil
}

// TopSlots returns the limit most selected slots of p, ties in list order.
func TopSlots(p models.ScheduleProposal, limit int) []models.TimeSlot {
	return p.TopSlots(limit)
}

// ApplyRSVP records status as participantID's answer to e.
func ApplyRSVP(e models.CalendarEvent, participantID string, status models.RSVPStatus) (models.CalendarEvent, error) {
	if participantID == "" {
		return e, invalid(participantID, "participant id is empty")
	}
	if _, ok := models.ParseRSVPStatus(string(status)); !ok {
		return e, invalid(participantID, "unknown rsvp status %q", status)
	}
	out := e.Clone()
	out.Responses[participantID] = status
	return out, nil
}
