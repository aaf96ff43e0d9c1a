package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Interval is a half-open span of time [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two half-open intervals share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// TimeSlot is one candidate interval of a proposal together with the
// per-participant selections made against it.
type TimeSlot struct {
	ID         string          // Stable across encode/decode
	Start      time.Time       // Inclusive start
	End        time.Time       // Exclusive end
	Selections map[string]bool // participant ID -> selected this slot
}

// NewTimeSlot creates a slot with a freshly generated ID and no selections.
func NewTimeSlot(start, end time.Time) TimeSlot {
	return TimeSlot{
		ID:         NewID(),
		Start:      start,
		End:        end,
		Selections: map[string]bool{},
	}
}

// NewID returns a new opaque identifier.
func NewID() string {
	return uuid.New().String()
}

// Interval returns the slot's time span.
func (s TimeSlot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// SelectionCount counts the participants that selected this slot.
// It is always derived from Selections and never stored.
func (s TimeSlot) SelectionCount() int {
	n := 0
	for _, selected := range s.Selections {
		if selected {
			n++
		}
	}
	return n
}

// Clone returns a copy of the slot that shares no map with the receiver.
func (s TimeSlot) Clone() TimeSlot {
	out := s
	out.Selections = make(map[string]bool, len(s.Selections))
	for pid, selected := range s.Selections {
		out.Selections[pid] = selected
	}
	return out
}

// Validate checks the slot's own invariants.
func (s TimeSlot) Validate() error {
	if s.ID == "" {
		return errors.New("time slot has no id")
	}
	if !s.End.After(s.Start) {
		return fmt.Errorf("time slot %s ends at or before its start", s.ID)
	}
	return nil
}

func cloneSlots(slots []TimeSlot) []TimeSlot {
	if slots == nil {
		return nil
	}
	out := make([]TimeSlot, len(slots))
	for i, s := range slots {
		out[i] = s.Clone()
	}
	return out
}
