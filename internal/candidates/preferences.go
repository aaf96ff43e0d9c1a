package candidates

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay reads "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// on returns the instant of t on the given calendar date in loc.
func (t TimeOfDay) on(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, t.Hour, t.Minute, 0, 0, loc)
}

// Preferences describe when an organizer is willing to meet.
type Preferences struct {
	Weekdays    []time.Weekday // Allowed days
	WindowStart TimeOfDay      // Daily window start
	WindowEnd   TimeOfDay      // Daily window end; must be after WindowStart on the same day
	Duration    time.Duration  // Length of each slot
	Stride      time.Duration  // Distance between slot starts; zero means Duration
	HorizonDays int            // Days to look ahead, starting today
	MaxSlots    int            // Cap on the returned candidates
	Location    *time.Location // Zone the window is interpreted in; nil means time.Local
}

// DefaultPreferences returns weekend afternoons, one hour each, over the
// next two weeks, capped at five suggestions.
func DefaultPreferences() Preferences {
	return Preferences{
		Weekdays:    []time.Weekday{time.Saturday, time.Sunday},
		WindowStart: TimeOfDay{Hour: 14},
		WindowEnd:   TimeOfDay{Hour: 18},
		Duration:    time.Hour,
		HorizonDays: 14,
		MaxSlots:    5,
	}
}

// ParseWeekday accepts English weekday names and their three-letter forms.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if s == full || s == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func (p Preferences) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p Preferences) stride() time.Duration {
	if p.Stride <= 0 {
		return p.Duration
	}
	return p.Stride
}

func (p Preferences) allows(d time.Weekday) bool {
	for _, w := range p.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}
