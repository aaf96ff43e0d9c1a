package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"calinvite/internal/models"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient points a CalendarClient at handler instead of Google.
func newTestClient(t *testing.T, handler http.HandlerFunc, calendarIDs ...string) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	service, err := calendar.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/calendar/v3/"),
	)
	if err != nil {
		t.Fatalf("calendar.NewService() error = %v", err)
	}
	return &CalendarClient{service: service, logger: testLogger(), account: "test", calendarIDs: calendarIDs}
}

func TestBusyIntervals(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		req calendar.FreeBusyRequest
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/freeBusy") {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(calendar.FreeBusyResponse{
			Calendars: map[string]calendar.FreeBusyCalendar{
				"primary": {Busy: []*calendar.TimePeriod{
					{Start: "2025-06-07T09:00:00Z", End: "2025-06-07T10:00:00Z"},
					{Start: "garbage", End: "2025-06-07T12:00:00Z"},
				}},
				"team": {Busy: []*calendar.TimePeriod{
					{Start: "2025-06-07T14:00:00+02:00", End: "2025-06-07T15:00:00+02:00"},
				}},
				"gone": {Errors: []*calendar.Error{{Domain: "global", Reason: "notFound"}}},
			},
		})
	}, "primary", "team", "gone")

	from := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	got, err := c.BusyIntervals(context.Background(), from, from.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("BusyIntervals() error = %v", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Start.Before(got[j].Start) })

	want := []models.Interval{
		{Start: time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)},
		{Start: time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 7, 13, 0, 0, 0, time.UTC)},
	}
	if len(got) != len(want) {
		t.Fatalf("BusyIntervals() = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Errorf("interval %d = %v, want %v", i, got[i], want[i])
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(req.Items) != 3 || req.TimeMin != "2025-06-07T00:00:00Z" {
		t.Errorf("request = %+v", req)
	}
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotPath string
		gotBody calendar.Event
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(calendar.Event{Id: "abc123"})
	}, "work@example.com", "other")

	notes := "Table for four"
	start := time.Date(2025, 6, 7, 19, 0, 0, 0, time.UTC)
	e := models.NewCalendarEvent("Dinner", start, start.Add(2*time.Hour), nil, &notes, "Sam")

	id, err := c.CreateEvent(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if id != "abc123" {
		t.Errorf("id = %q", id)
	}
	if !strings.HasSuffix(gotPath, "/calendars/work@example.com/events") {
		t.Errorf("path = %q, want the first calendar", gotPath)
	}
	if gotBody.Summary != "Dinner" || gotBody.Description != notes || gotBody.Location != "" {
		t.Errorf("body = %+v", gotBody)
	}
	if gotBody.Start == nil || gotBody.Start.DateTime != "2025-06-07T19:00:00Z" {
		t.Errorf("start = %+v", gotBody.Start)
	}
}

func TestTokenFilesAndAccounts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	for _, name := range []string{"token-personal.json", "token-work.json"} {
		if err := SaveToken(filepath.Join(dir, name), tok); err != nil {
			t.Fatalf("SaveToken() error = %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "credentials.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	accounts, err := GetTokenAccounts(dir)
	if err != nil {
		t.Fatalf("GetTokenAccounts() error = %v", err)
	}
	sort.Strings(accounts)
	if len(accounts) != 2 || accounts[0] != "personal" || accounts[1] != "work" {
		t.Fatalf("GetTokenAccounts() = %v", accounts)
	}

	back, err := tokenFromFile(filepath.Join(dir, "token-work.json"))
	if err != nil || back.RefreshToken != "refresh" {
		t.Fatalf("tokenFromFile() = %+v, %v", back, err)
	}
	info, err := os.Stat(filepath.Join(dir, "token-work.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("token file mode = %o, want 600", perm)
	}
}

func TestOAuthConfigFromEnvValues(t *testing.T) {
	t.Parallel()

	cfg, err := GetOAuthConfigForAuthFlow("id", "secret")
	if err != nil {
		t.Fatalf("GetOAuthConfigForAuthFlow() error = %v", err)
	}
	if cfg.ClientID != "id" || len(cfg.Scopes) != 2 {
		t.Fatalf("config = %+v", cfg)
	}
}
