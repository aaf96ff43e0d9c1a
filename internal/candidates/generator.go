// Package candidates builds the initial menu of time slots for a proposal
// from an organizer's preferences and drops anything that clashes with the
// organizer's existing calendar.
package candidates

import (
	"context"
	"fmt"
	"sort"
	"time"

	"calinvite/internal/models"
)

// BusyReader reports the busy intervals of a calendar within [from, to].
type BusyReader interface {
	BusyIntervals(ctx context.Context, from, to time.Time) ([]models.Interval, error)
}

// Generate emits raw candidate slots for every allowed day in
// [today, today+HorizonDays). A day whose window is empty or crosses
// midnight contributes nothing. A trailing partial slot is dropped.
func Generate(prefs Preferences, now time.Time) []models.TimeSlot {
	slots := []models.TimeSlot{}
	if prefs.Duration <= 0 || prefs.WindowEnd.minutes() <= prefs.WindowStart.minutes() {
		return slots
	}

	loc := prefs.location()
	today := now.In(loc)
	stride := prefs.stride()

	for offset := 0; offset < prefs.HorizonDays; offset++ {
		// time.Date normalises day overflow and DST for us.
		day := time.Date(today.Year(), today.Month(), today.Day()+offset, 0, 0, 0, 0, loc)
		if !prefs.allows(day.Weekday()) {
			continue
		}

		windowStart := prefs.WindowStart.on(day.Year(), day.Month(), day.Day(), loc)
		windowEnd := prefs.WindowEnd.on(day.Year(), day.Month(), day.Day(), loc)
		if !windowEnd.After(windowStart) {
			continue
		}

		for start := windowStart; start.Before(windowEnd); start = start.Add(stride) {
			end := start.Add(prefs.Duration)
			if end.After(windowEnd) {
				break
			}
			slots = append(slots, models.NewTimeSlot(start, end))
		}
	}
	return slots
}

// Filter drops every slot that overlaps any busy interval.
func Filter(slots []models.TimeSlot, busy []models.Interval) []models.TimeSlot {
	free := make([]models.TimeSlot, 0, len(slots))
	for _, s := range slots {
		clash := false
		for _, b := range busy {
			if s.Interval().Overlaps(b) {
				clash = true
				break
			}
		}
		if !clash {
			free = append(free, s)
		}
	}
	return free
}

// Candidates runs the whole pipeline against an already fetched set of busy
// intervals: generate, filter, sort by start and cap at MaxSlots.
// An empty result means "no availability" and is not an error.
func Candidates(prefs Preferences, now time.Time, busy []models.Interval) []models.TimeSlot {
	return finish(prefs, Filter(Generate(prefs, now), busy))
}

// Span returns [earliest start, latest end] over the slots.
func Span(slots []models.TimeSlot) (models.Interval, bool) {
	if len(slots) == 0 {
		return models.Interval{}, false
	}
	span := slots[0].Interval()
	for _, s := range slots[1:] {
		if s.Start.Before(span.Start) {
			span.Start = s.Start
		}
		if s.End.After(span.End) {
			span.End = s.End
		}
	}
	return span, true
}

func finish(prefs Preferences, slots []models.TimeSlot) []models.TimeSlot {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	if prefs.MaxSlots > 0 && len(slots) > prefs.MaxSlots {
		slots = slots[:prefs.MaxSlots]
	}
	return slots
}

// Generator asks a calendar for busy time and suggests free slots.
type Generator struct {
	Reader BusyReader
}

// NewGenerator creates a Generator backed by reader.
func NewGenerator(reader BusyReader) *Generator {
	return &Generator{Reader: reader}
}

// Suggest generates candidates and filters them against the calendar with a
// single query covering every generated slot. Nothing is queried when no
// slot was generated.
func (g *Generator) Suggest(ctx context.Context, prefs Preferences, now time.Time) ([]models.TimeSlot, error) {
	raw := Generate(prefs, now)
	span, ok := Span(raw)
	if !ok || g.Reader == nil {
		return finish(prefs, raw), nil
	}

	busy, err := g.Reader.BusyIntervals(ctx, span.Start, span.End)
	if err != nil {
		return nil, fmt.Errorf("failed to read busy intervals: %w", err)
	}
	return finish(prefs, Filter(raw, busy)), nil
}
