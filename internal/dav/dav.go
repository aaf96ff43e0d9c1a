// Package dav talks to CalDAV servers (iCloud by default) for busy time
// and for saving accepted invitations.
package dav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"calinvite/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

const (
	// ICloudEndpoint is used when no endpoint is configured.
	ICloudEndpoint = "https://caldav.icloud.com/"

	productID = "-//calinvite//EN"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "calinvite/1.0")
	return t.Transport.RoundTrip(req)
}

// Client reads busy time from and writes events to one CalDAV calendar.
type Client struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	calendarPath string
	location     *time.Location
}

// NewClient connects to endpoint and resolves the calendar named calendarName.
// Floating times in the calendar are read in loc.
func NewClient(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string, loc *time.Location) (*Client, error) {
	if endpoint == "" {
		endpoint = ICloudEndpoint
	}
	if loc == nil {
		loc = time.UTC
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     endpoint,
		location:     loc,
	}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return c, nil
}

// BusyIntervals returns the opaque events of the calendar that overlap
// [from, to], with recurring events expanded.
func (c *Client) BusyIntervals(ctx context.Context, from, to time.Time) ([]models.Interval, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from,
				End:   to,
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var out []models.Interval
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		out = append(out, BusyFromCalendar(obj.Data, from, to, c.location, c.logger)...)
	}
	c.logger.Info("Fetched busy periods from CalDAV", "objects", len(objects), "count", len(out))
	return out, nil
}

// BusyFromCalendar extracts busy intervals overlapping [from, to] from a
// parsed iCalendar object. Transparent events are free time and skipped.
func BusyFromCalendar(cal *ical.Calendar, from, to time.Time, loc *time.Location, logger *slog.Logger) []models.Interval {
	window := models.Interval{Start: from, End: to}

	var out []models.Interval
	for _, ev := range cal.Events() {
		if transp, _ := ev.Props.Text(ical.PropTransparency); strings.EqualFold(transp, "TRANSPARENT") {
			continue
		}
		start, err := ev.DateTimeStart(loc)
		if err != nil {
			logger.Warn("Skipping event without usable start", "error", err)
			continue
		}
		end, err := ev.DateTimeEnd(loc)
		if err != nil || !end.After(start) {
			end = start.Add(24 * time.Hour)
		}
		duration := end.Sub(start)

		set, err := ev.RecurrenceSet(loc)
		if err != nil {
			logger.Warn("Skipping event with invalid recurrence", "error", err)
			continue
		}
		if set == nil {
			iv := models.Interval{Start: start, End: end}
			if iv.Overlaps(window) {
				out = append(out, iv)
			}
			continue
		}

		// Occurrences that started before from may still be running.
		for _, occ := range set.Between(from.Add(-duration), to, true) {
			iv := models.Interval{Start: occ, End: occ.Add(duration)}
			if iv.Overlaps(window) {
				out = append(out, iv)
			}
		}
	}
	return out
}

// CreateEvent writes e into the calendar and returns the UID it was stored under.
func (c *Client) CreateEvent(ctx context.Context, e models.CalendarEvent) (string, error) {
	uid := GenerateUID()
	c.logger.Debug("Writing event to CalDAV", "eventTitle", e.Title, "uid", uid)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, ToICal(e, uid, time.Now().UTC()))

	eventPath := path.Join(c.calendarPath, fmt.Sprintf("%s.ics", uid))

	writer, err := c.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return "", fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to upload event: %w", err)
	}

	c.logger.Info("Successfully wrote event to CalDAV", "eventTitle", e.Title, "uid", uid)
	return uid, nil
}

// ToICal converts an invitation into a VEVENT component.
func ToICal(e models.CalendarEvent, uid string, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, e.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, e.End)

	if e.Notes != nil && *e.Notes != "" {
		ve.Props.SetText(ical.PropDescription, *e.Notes)
	}
	if e.Location != nil && *e.Location != "" {
		ve.Props.SetText(ical.PropLocation, *e.Location)
	}
	return ve
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
