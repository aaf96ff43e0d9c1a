package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"calinvite/internal/candidates"
	"calinvite/internal/config"
	"calinvite/internal/dav"
	"calinvite/internal/feed"
	"calinvite/internal/google"
	"calinvite/internal/session"
)

// calendars holds every calendar the environment configures.
type calendars struct {
	readers []candidates.BusyReader
	google  []*google.CalendarClient
	dav     *dav.Client
}

// connectCalendars loads all Google accounts that have a token, the CalDAV
// calendar if credentials are set, and the ICS feeds from the config file.
func connectCalendars(ctx context.Context, logger *slog.Logger, cfg *config.Config, loc *time.Location) (*calendars, error) {
	cals := &calendars{}

	accounts, err := google.GetTokenAccounts(".")
	if err != nil {
		return nil, fmt.Errorf("could not look for google accounts: %w", err)
	}
	var calendarIDs []string
	if ids := os.Getenv("GOOGLE_CALENDAR_IDS"); ids != "" {
		calendarIDs = strings.Split(ids, ",")
	}
	for _, acc := range accounts {
		gClient, err := google.NewClient(ctx, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), acc, calendarIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client for account %s: %w", acc, err)
		}
		if len(calendarIDs) == 0 && os.Getenv("GOOGLE_DISCOVER_CALENDARS") == "true" {
			if _, err := gClient.DiscoverCalendars(ctx); err != nil {
				logger.Warn("Calendar discovery failed, using primary", "account", acc, "error", err)
			}
		}
		cals.google = append(cals.google, gClient)
		cals.readers = append(cals.readers, gClient)
	}
	if len(cals.google) > 0 {
		logger.Info("Initialized Google clients for all accounts.", "count", len(cals.google))
	}

	if user := os.Getenv("CALDAV_USERNAME"); user != "" {
		dClient, err := dav.NewClient(ctx, logger, os.Getenv("CALDAV_URL"), user, os.Getenv("CALDAV_PASSWORD"), os.Getenv("CALDAV_CALENDAR_NAME"), loc)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		cals.dav = dClient
		cals.readers = append(cals.readers, dClient)
	}

	for _, u := range cfg.Feeds {
		cals.readers = append(cals.readers, feed.NewReader(logger, u, loc))
	}
	return cals, nil
}

// writer picks the calendar accepted invitations are saved to. CALENDAR_WRITER
// selects "google" or "caldav"; otherwise CalDAV wins when configured.
func (c *calendars) writer() (session.CalendarWriter, error) {
	switch strings.ToLower(os.Getenv("CALENDAR_WRITER")) {
	case "google":
		if len(c.google) == 0 {
			return nil, fmt.Errorf("no google accounts found. Run the 'auth' command first")
		}
		return c.google[0], nil
	case "caldav":
		if c.dav == nil {
			return nil, fmt.Errorf("CALDAV_USERNAME environment variable not set")
		}
		return c.dav, nil
	case "":
		if c.dav != nil {
			return c.dav, nil
		}
		if len(c.google) > 0 {
			return c.google[0], nil
		}
		return nil, fmt.Errorf("no calendar configured")
	default:
		return nil, fmt.Errorf("unknown CALENDAR_WRITER %q", os.Getenv("CALENDAR_WRITER"))
	}
}
