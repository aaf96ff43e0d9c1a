package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"calinvite/internal/aggregate"
	"calinvite/internal/config"
	"calinvite/internal/flatcodec"
	"calinvite/internal/message"
	"calinvite/internal/models"
	"calinvite/internal/session"

	"github.com/urfave/cli/v2"
)

const defaultStateFile = "calinvite-state.json"

func proposeCommand() *cli.Command {
	return &cli.Command{
		Name:  "propose",
		Usage: "Suggest free time slots and print a proposal link.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Required: true},
			&cli.StringFlag{Name: "description"},
			&cli.StringFlag{Name: "organizer", Usage: "Overrides organizer_name from the config file."},
			&cli.StringSliceFlag{Name: "day", Usage: "Allowed weekday; repeat for several. Overrides the config file."},
			&cli.StringFlag{Name: "from", Usage: "Daily window start, HH:MM."},
			&cli.StringFlag{Name: "to", Usage: "Daily window end, HH:MM."},
			&cli.DurationFlag{Name: "duration", Usage: "Slot length, e.g. 90m."},
			&cli.DurationFlag{Name: "stride", Usage: "Spacing between slot starts. Defaults to the slot length."},
			&cli.IntFlag{Name: "horizon", Usage: "Days ahead to search, starting today."},
			&cli.IntFlag{Name: "max", Usage: "Maximum number of suggestions."},
			&cli.BoolFlag{Name: "no-calendar", Usage: "Do not check any calendar for conflicts."},
		},
		Action: func(c *cli.Context) error {
			logger := envLogger()
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			applyPreferenceFlags(c, cfg)

			prefs, err := cfg.Preferences()
			if err != nil {
				return err
			}

			opts := session.Options{BaseURL: cfg.BaseURL}
			if !c.Bool("no-calendar") {
				cals, err := connectCalendars(c.Context, logger, cfg, prefs.Location)
				if err != nil {
					return err
				}
				opts.Readers = cals.readers
			}
			coord, err := session.NewCoordinator(logger, opts)
			if err != nil {
				return err
			}

			slots, err := coord.Suggest(c.Context, prefs)
			if err != nil {
				return err
			}
			if len(slots) == 0 {
				fmt.Fprintln(c.App.Writer, "No availability. Adjust the days, window or duration and try again.")
				return nil
			}

			var description *string
			if c.IsSet("description") {
				d := c.String("description")
				description = &d
			}
			p, payload, err := coord.Propose(c.String("title"), description, cfg.OrganizerName, slots)
			if err != nil {
				return err
			}
			printProposal(c.App.Writer, p, prefs.Location)
			return message.WriterSender{W: c.App.Writer}.Send(c.Context, payload)
		},
	}
}

func applyPreferenceFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("organizer") {
		cfg.OrganizerName = c.String("organizer")
	}
	if c.IsSet("day") {
		cfg.Days = c.StringSlice("day")
	}
	if c.IsSet("from") {
		cfg.WindowStart = c.String("from")
	}
	if c.IsSet("to") {
		cfg.WindowEnd = c.String("to")
	}
	if c.IsSet("duration") {
		cfg.DurationMinutes = int(c.Duration("duration") / time.Minute)
	}
	if c.IsSet("stride") {
		cfg.StrideMinutes = int(c.Duration("stride") / time.Minute)
	}
	if c.IsSet("horizon") {
		cfg.HorizonDays = c.Int("horizon")
	}
	if c.IsSet("max") {
		cfg.MaxSlots = c.Int("max")
	}
	cfg.Normalize()
}

func respondCommand() *cli.Command {
	return &cli.Command{
		Name:      "respond",
		Usage:     "Answer a proposal and print the updated link.",
		ArgsUsage: "<payload-url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "participant", Required: true, Usage: "Your participant id."},
			&cli.StringSliceFlag{Name: "select", Usage: "Slot id or index (0-based) that works; repeat for several."},
			&cli.StringSliceFlag{Name: "alt", Usage: "Alternative START/END (RFC 3339 or 2006-01-02T15:04); repeat for several."},
			&cli.BoolFlag{Name: "none", Usage: "None of the suggested times work."},
		},
		Action: func(c *cli.Context) error {
			logger := envLogger()
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			payloadURL, err := payloadArg(c)
			if err != nil {
				return err
			}

			coord, err := session.NewCoordinator(logger, session.Options{BaseURL: cfg.BaseURL})
			if err != nil {
				return err
			}
			msg, err := coord.Open(payloadURL)
			if err != nil {
				return err
			}
			if msg.Kind != flatcodec.KindProposal {
				return fmt.Errorf("%w: use rsvp for invitations", session.ErrWrongKind)
			}

			choice, err := buildChoice(msg.Proposal, c.StringSlice("select"), c.StringSlice("alt"), c.Bool("none"), loc)
			if err != nil {
				return err
			}
			participant := c.String("participant")
			p, payload, err := coord.Respond(payloadURL, participant, models.ParticipantResponse{
				ParticipantID: participant,
				Choice:        choice,
			})
			if err != nil {
				return err
			}
			printProposal(c.App.Writer, p, loc)
			return message.WriterSender{W: c.App.Writer}.Send(c.Context, payload)
		},
	}
}

// buildChoice turns the respond flags into exactly one response variant.
func buildChoice(p models.ScheduleProposal, selects, alts []string, none bool, loc *time.Location) (models.Choice, error) {
	given := 0
	for _, set := range []bool{len(selects) > 0, len(alts) > 0, none} {
		if set {
			given++
		}
	}
	if given > 1 {
		return nil, errors.New("use only one of --select, --alt and --none")
	}

	switch {
	case len(selects) > 0:
		ids := make([]string, 0, len(selects))
		for _, s := range selects {
			id, err := resolveSlot(p, s)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return models.SelectedSuggested{SlotIDs: ids}, nil
	case len(alts) > 0:
		slots := make([]models.TimeSlot, 0, len(alts))
		for _, a := range alts {
			startStr, endStr, ok := strings.Cut(a, "/")
			if !ok {
				return nil, fmt.Errorf("alternative %q must be START/END", a)
			}
			start, err := parseInstant(startStr, loc)
			if err != nil {
				return nil, err
			}
			end, err := parseInstant(endStr, loc)
			if err != nil {
				return nil, err
			}
			slots = append(slots, models.NewTimeSlot(start, end))
		}
		return models.ProposedAlternative{Slots: slots}, nil
	case none:
		return models.NoneWork{}, nil
	}
	return models.Pending{}, nil
}

// resolveSlot accepts either a slot id or a 0-based index into the slot list.
func resolveSlot(p models.ScheduleProposal, s string) (string, error) {
	if _, ok := p.SlotByID(s); ok {
		return s, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(p.Slots) {
		return p.Slots[n].ID, nil
	}
	return "", fmt.Errorf("no slot %q in proposal", s)
}

func parseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t, nil
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Decode a link and print what it contains.",
		ArgsUsage: "<payload-url>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "top", Value: 3, Usage: "How many of the most selected slots to highlight."},
		},
		Action: func(c *cli.Context) error {
			logger := envLogger()
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			payloadURL, err := payloadArg(c)
			if err != nil {
				return err
			}
			coord, err := session.NewCoordinator(logger, session.Options{BaseURL: cfg.BaseURL})
			if err != nil {
				return err
			}
			msg, err := coord.Open(payloadURL)
			if err != nil {
				return err
			}

			switch msg.Kind {
			case flatcodec.KindProposal:
				printProposal(c.App.Writer, msg.Proposal, loc)
				printTopSlots(c.App.Writer, msg.Proposal, c.Int("top"), loc)
			case flatcodec.KindEvent:
				printEvent(c.App.Writer, msg.Event, loc)
			}
			return nil
		},
	}
}

func inviteCommand() *cli.Command {
	return &cli.Command{
		Name:  "invite",
		Usage: "Create a fixed-time invitation link.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Required: true},
			&cli.StringFlag{Name: "start", Required: true, Usage: "RFC 3339 or 2006-01-02T15:04."},
			&cli.StringFlag{Name: "end", Required: true, Usage: "RFC 3339 or 2006-01-02T15:04."},
			&cli.StringFlag{Name: "location"},
			&cli.StringFlag{Name: "notes"},
			&cli.StringFlag{Name: "organizer"},
		},
		Action: func(c *cli.Context) error {
			logger := envLogger()
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if c.IsSet("organizer") {
				cfg.OrganizerName = c.String("organizer")
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			start, err := parseInstant(c.String("start"), loc)
			if err != nil {
				return err
			}
			end, err := parseInstant(c.String("end"), loc)
			if err != nil {
				return err
			}

			coord, err := session.NewCoordinator(logger, session.Options{BaseURL: cfg.BaseURL})
			if err != nil {
				return err
			}
			e, payload, err := coord.Invite(c.String("title"), start, end, optional(c, "location"), optional(c, "notes"), cfg.OrganizerName)
			if err != nil {
				return err
			}
			printEvent(c.App.Writer, e, loc)
			return message.WriterSender{W: c.App.Writer}.Send(c.Context, payload)
		},
	}
}

func rsvpCommand() *cli.Command {
	return &cli.Command{
		Name:      "rsvp",
		Usage:     "Answer an invitation and print the updated link.",
		ArgsUsage: "<payload-url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "participant", Required: true, Usage: "Your participant id."},
			&cli.StringFlag{Name: "status", Value: string(models.RSVPAccepted), Usage: "accepted, declined or pending."},
			&cli.BoolFlag{Name: "add-to-calendar", Usage: "Save an accepted invitation to your calendar."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log the calendar write instead of performing it."},
		},
		Action: func(c *cli.Context) error {
			logger := envLogger()
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			payloadURL, err := payloadArg(c)
			if err != nil {
				return err
			}
			status, ok := models.ParseRSVPStatus(c.String("status"))
			if !ok {
				return fmt.Errorf("unknown status %q", c.String("status"))
			}

			opts := session.Options{
				BaseURL:   cfg.BaseURL,
				StatePath: defaultStateFile,
				DryRun:    c.Bool("dry-run"),
			}
			if c.Bool("add-to-calendar") && status == models.RSVPAccepted {
				cals, err := connectCalendars(c.Context, logger, cfg, loc)
				if err != nil {
					return err
				}
				w, err := cals.writer()
				if err != nil {
					return err
				}
				opts.Writer = w
			}
			coord, err := session.NewCoordinator(logger, opts)
			if err != nil {
				return err
			}

			e, payload, err := coord.RSVP(c.Context, payloadURL, c.String("participant"), status, c.Bool("add-to-calendar"))
			if err != nil {
				return err
			}
			printEvent(c.App.Writer, e, loc)
			return message.WriterSender{W: c.App.Writer}.Send(c.Context, payload)
		},
	}
}

func payloadArg(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return c.Args().First(), nil
	}
	// Allow piping a link in.
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	u := strings.TrimSpace(string(data))
	if u == "" {
		return "", errors.New("no payload url given")
	}
	return u, nil
}

func optional(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func printProposal(w io.Writer, p models.ScheduleProposal, loc *time.Location) {
	fmt.Fprintf(w, "%s (organized by %s)\n", p.Title, p.OrganizerName)
	if p.Description != nil {
		fmt.Fprintf(w, "  %s\n", *p.Description)
	}
	for i, s := range p.Slots {
		fmt.Fprintf(w, "  [%d] %s  %d selected  id=%s\n", i, message.FormatRange(s.Start.In(loc), s.End.In(loc)), s.SelectionCount(), s.ID)
	}
	for _, pid := range sortedParticipants(p.Responses) {
		r := p.Responses[pid]
		fmt.Fprintf(w, "  %s: %s\n", pid, r.Status())
		for _, s := range r.CustomAvailability() {
			fmt.Fprintf(w, "      could do %s\n", message.FormatRange(s.Start.In(loc), s.End.In(loc)))
		}
	}
}

// printTopSlots lists the limit most selected slots with their counts.
func printTopSlots(w io.Writer, p models.ScheduleProposal, limit int, loc *time.Location) {
	top := aggregate.TopSlots(p, limit)
	if len(top) == 0 {
		return
	}
	fmt.Fprintln(w, "Most popular:")
	for _, s := range top {
		fmt.Fprintf(w, "  %s (%d)\n", message.FormatRange(s.Start.In(loc), s.End.In(loc)), s.SelectionCount())
	}
}

func printEvent(w io.Writer, e models.CalendarEvent, loc *time.Location) {
	fmt.Fprintf(w, "%s (organized by %s)\n", e.Title, e.OrganizerName)
	fmt.Fprintf(w, "  %s\n", message.FormatRange(e.Start.In(loc), e.End.In(loc)))
	if e.Location != nil {
		fmt.Fprintf(w, "  at %s\n", *e.Location)
	}
	tally := e.Tally()
	fmt.Fprintf(w, "  going %d, can't go %d, pending %d\n", tally[models.RSVPAccepted], tally[models.RSVPDeclined], tally[models.RSVPPending])
}

func sortedParticipants(m map[string]models.ParticipantResponse) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
