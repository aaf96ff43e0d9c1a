// Package feed treats a published .ics subscription (holidays, a shared
// team calendar, a booking system export) as a read-only busy source.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"calinvite/internal/models"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

const (
	maxOccurrencesPerEvent = 5000
	maxFeedBytes           = 10 << 20
)

// ErrFeedTooLarge is returned when a feed body exceeds the size limit.
var ErrFeedTooLarge = errors.New("ics feed too large")

// Reader fetches one ICS URL on every query.
type Reader struct {
	url      string
	client   *http.Client
	logger   *slog.Logger
	location *time.Location
	maxBytes int64
}

// NewReader creates a Reader for url. Floating times are read in loc.
func NewReader(logger *slog.Logger, url string, loc *time.Location) *Reader {
	if loc == nil {
		loc = time.Local
	}
	return &Reader{
		url:      url,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
		location: loc,
		maxBytes: maxFeedBytes,
	}
}

// BusyIntervals downloads the feed and returns the opaque events that
// overlap [from, to].
func (r *Reader) BusyIntervals(ctx context.Context, from, to time.Time) ([]models.Interval, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("ics feed fetch start", "url", redactURL(r.url))
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	if int64(len(body)) > r.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFeedTooLarge, r.maxBytes)
	}

	busy, err := Parse(body, from, to, r.location, r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Info("ics feed parsed", "url", redactURL(r.url), "count", len(busy))
	return busy, nil
}

// Parse reads an ICS payload and returns its busy intervals within [from, to].
// Events that fail to parse are logged and skipped.
func Parse(body []byte, from, to time.Time, loc *time.Location, logger *slog.Logger) ([]models.Interval, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ICS: %w", err)
	}

	window := models.Interval{Start: from, End: to}
	var out []models.Interval
	for _, ve := range cal.Events() {
		occ, err := occurrences(ve, from, to, loc)
		if err != nil {
			logger.Warn("ics vevent skipped", "error", err)
			continue
		}
		for _, iv := range occ {
			if iv.Overlaps(window) {
				out = append(out, iv)
			}
		}
	}
	return out, nil
}

func occurrences(ve *ical.VEvent, from, to time.Time, loc *time.Location) ([]models.Interval, error) {
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, string(ical.TransparencyTransparent)) {
		return nil, nil
	}

	start, end, err := bounds(ve, loc)
	if err != nil {
		return nil, err
	}

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		return []models.Interval{{Start: start, End: end}}, nil
	}

	rule, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE %q: %w", rruleProp.Value, err)
	}
	rule.DTStart(start)

	var set rrule.Set
	set.RRule(rule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), loc); err == nil {
				set.ExDate(t.In(start.Location()))
			}
		}
	}

	duration := end.Sub(start)
	times := set.Between(from.Add(-duration), to, true)
	if len(times) > maxOccurrencesPerEvent {
		times = times[:maxOccurrencesPerEvent]
	}
	out := make([]models.Interval, 0, len(times))
	for _, t := range times {
		out = append(out, models.Interval{Start: t, End: t.Add(duration)})
	}
	return out, nil
}

// bounds returns DTSTART and DTEND. Date-only events cover whole days in loc.
func bounds(ve *ical.VEvent, loc *time.Location) (time.Time, time.Time, error) {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return time.Time{}, time.Time{}, errors.New("missing DTSTART")
	}

	if !strings.Contains(dtStart.Value, "T") {
		start, err := parseICSTime(dtStart.Value, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end := start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if t, err := parseICSTime(dtEnd.Value, loc); err == nil && t.After(start) {
				end = t
			}
		}
		return start, end, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		end = start
	}
	return start, end, nil
}

// parseICSTime handles the bare DATE and DATE-TIME forms used by EXDATE
// and all-day DTSTART/DTEND.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// redactURL keeps only scheme and host; feed URLs often embed secrets.
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return "ics://...(redacted)"
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host + "/...(redacted)"
}
