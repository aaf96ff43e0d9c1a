package dav

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"calinvite/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
)

const busyICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calinvite//test//EN
BEGIN:VEVENT
UID:daily@test
DTSTAMP:20250601T000000Z
DTSTART:20250606T090000Z
DTEND:20250606T093000Z
RRULE:FREQ=DAILY;COUNT=5
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:single@test
DTSTAMP:20250601T000000Z
DTSTART:20250607T150000Z
DTEND:20250607T170000Z
SUMMARY:Football
END:VEVENT
BEGIN:VEVENT
UID:free@test
DTSTAMP:20250601T000000Z
DTSTART:20250607T120000Z
DTEND:20250607T130000Z
TRANSP:TRANSPARENT
SUMMARY:Optional
END:VEVENT
END:VCALENDAR
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func utc(day, hour, min int) time.Time {
	return time.Date(2025, 6, day, hour, min, 0, 0, time.UTC)
}

func TestBusyFromCalendar(t *testing.T) {
	t.Parallel()

	cal, err := ical.NewDecoder(strings.NewReader(strings.ReplaceAll(busyICS, "\n", "\r\n"))).Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	// Sat 7th 09:15 to Sun 8th 23:59: the standup already running on the
	// 7th, the one on the 8th and the football match.
	got := BusyFromCalendar(cal, utc(7, 9, 15), utc(8, 23, 59), time.UTC, testLogger())
	sort.Slice(got, func(i, j int) bool { return got[i].Start.Before(got[j].Start) })

	want := []models.Interval{
		{Start: utc(7, 9, 0), End: utc(7, 9, 30)},
		{Start: utc(7, 15, 0), End: utc(7, 17, 0)},
		{Start: utc(8, 9, 0), End: utc(8, 9, 30)},
	}
	if len(got) != len(want) {
		t.Fatalf("BusyFromCalendar() returned %d intervals, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Errorf("interval %d = %v-%v, want %v-%v", i, got[i].Start, got[i].End, want[i].Start, want[i].End)
		}
	}
}

func TestToICal(t *testing.T) {
	t.Parallel()

	where := "Luigi's"
	e := models.CalendarEvent{
		ID:            "ev-1",
		Title:         "Dinner",
		Start:         utc(7, 19, 0),
		End:           utc(7, 21, 0),
		Location:      &where,
		OrganizerName: "Sam",
	}
	ve := ToICal(e, "uid-1", utc(1, 0, 0))

	event := ical.Event{Component: ve}
	if uid, _ := event.Props.Text(ical.PropUID); uid != "uid-1" {
		t.Errorf("UID = %q", uid)
	}
	if summary, _ := event.Props.Text(ical.PropSummary); summary != "Dinner" {
		t.Errorf("SUMMARY = %q", summary)
	}
	if loc, _ := event.Props.Text(ical.PropLocation); loc != where {
		t.Errorf("LOCATION = %q", loc)
	}
	if event.Props.Get(ical.PropDescription) != nil {
		t.Errorf("DESCRIPTION set without notes")
	}
	start, err := event.DateTimeStart(time.UTC)
	if err != nil || !start.Equal(e.Start) {
		t.Errorf("DTSTART = %v, %v", start, err)
	}
	end, err := event.DateTimeEnd(time.UTC)
	if err != nil || !end.Equal(e.End) {
		t.Errorf("DTEND = %v, %v", end, err)
	}
}

func TestCreateEventPutsICS(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		gotURL string
		body   bytes.Buffer
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, gotURL = r.Method, r.URL.Path
		_, _ = io.Copy(&body, r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	wc, err := webdav.NewClient(srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("webdav.NewClient() error = %v", err)
	}
	c := &Client{
		webdavClient: wc,
		logger:       testLogger(),
		endpoint:     srv.URL,
		calendarPath: "/calendars/me/home/",
		location:     time.UTC,
	}

	e := models.NewCalendarEvent("Dinner", utc(7, 19, 0), utc(7, 21, 0), nil, nil, "Sam")
	uid, err := c.CreateEvent(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if want := "/calendars/me/home/" + uid + ".ics"; gotURL != want {
		t.Errorf("path = %s, want %s", gotURL, want)
	}
	for _, line := range []string{"BEGIN:VEVENT", "SUMMARY:Dinner", "UID:" + uid} {
		if !strings.Contains(body.String(), line) {
			t.Errorf("uploaded calendar lacks %q:\n%s", line, body.String())
		}
	}
}
