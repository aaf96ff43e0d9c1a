package models

import (
	"errors"
	"time"
)

// RSVPStatus is a participant's answer to a CalendarEvent.
type RSVPStatus string

const (
	RSVPPending  RSVPStatus = "pending"
	RSVPAccepted RSVPStatus = "accepted"
	RSVPDeclined RSVPStatus = "declined"
)

// ParseRSVPStatus maps a wire string to an RSVPStatus.
func ParseRSVPStatus(s string) (RSVPStatus, bool) {
	switch st := RSVPStatus(s); st {
	case RSVPPending, RSVPAccepted, RSVPDeclined:
		return st, true
	}
	return "", false
}

// CalendarEvent is a fixed-time invitation answered with a simple RSVP.
type CalendarEvent struct {
	ID            string
	Title         string
	Start         time.Time
	End           time.Time
	Location      *string // nil when absent
	Notes         *string // nil when absent
	OrganizerName string
	Responses     map[string]RSVPStatus // participant ID -> answer
}

// NewCalendarEvent creates an event with a fresh ID and no responses.
func NewCalendarEvent(title string, start, end time.Time, location, notes *string, organizer string) CalendarEvent {
	return CalendarEvent{
		ID:            NewID(),
		Title:         title,
		Start:         start,
		End:           end,
		Location:      location,
		Notes:         notes,
		OrganizerName: organizer,
		Responses:     map[string]RSVPStatus{},
	}
}

// Clone returns a deep copy of the event.
func (e CalendarEvent) Clone() CalendarEvent {
	out := e
	if e.Location != nil {
		l := *e.Location
		out.Location = &l
	}
	if e.Notes != nil {
		n := *e.Notes
		out.Notes = &n
	}
	out.Responses = make(map[string]RSVPStatus, len(e.Responses))
	for pid, st := range e.Responses {
		out.Responses[pid] = st
	}
	return out
}

// Tally counts the responses per status.
func (e CalendarEvent) Tally() map[RSVPStatus]int {
	out := map[RSVPStatus]int{}
	for _, st := range e.Responses {
		out[st]++
	}
	return out
}

// Validate checks the event's required fields.
func (e CalendarEvent) Validate() error {
	switch {
	case e.ID == "":
		return errors.New("event has no id")
	case e.Title == "":
		return errors.New("event has no title")
	case e.OrganizerName == "":
		return errors.New("event has no organizer")
	case !e.End.After(e.Start):
		return errors.New("event ends at or before its start")
	}
	return nil
}
