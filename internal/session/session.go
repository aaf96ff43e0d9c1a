// Package session runs the organizer and participant flows end to end:
// suggest slots, build a payload, open a received payload, apply an answer
// and build the next payload.
//
// Every outgoing payload is a full snapshot of what this device last
// decoded. Two participants answering the same stale snapshot each send a
// copy without the other's answer, and the later one wins. There is no
// server of record to detect this.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"calinvite/internal/aggregate"
	"calinvite/internal/candidates"
	"calinvite/internal/flatcodec"
	"calinvite/internal/message"
	"calinvite/internal/models"
)

var (
	// ErrNoSlots is returned when a proposal would have nothing to choose from.
	ErrNoSlots = errors.New("no candidate time slots")
	// ErrWrongKind is returned when a payload holds a different aggregate
	// than the operation expects.
	ErrWrongKind = errors.New("payload holds a different kind of message")
	// ErrNoCalendar is returned when calendars are configured but none of
	// them could be read.
	ErrNoCalendar = errors.New("no calendar could be read")
)

// CalendarWriter saves an accepted invitation to a calendar and returns the
// identifier it was stored under.
type CalendarWriter interface {
	CreateEvent(ctx context.Context, e models.CalendarEvent) (string, error)
}

// AddedState records which invitations were already written to the local
// calendar. The key is the invitation's event ID, the value the calendar's ID for it.
type AddedState map[string]string

// Coordinator orchestrates the flows for one device.
type Coordinator struct {
	logger    *slog.Logger
	readers   []candidates.BusyReader
	writer    CalendarWriter
	baseURL   string
	statePath string
	state     AddedState
	dryRun    bool
	now       func() time.Time
}

// Options configure a Coordinator.
type Options struct {
	Readers   []candidates.BusyReader
	Writer    CalendarWriter
	BaseURL   string
	StatePath string // empty disables the added-events state file
	DryRun    bool
	Now       func() time.Time
}

// NewCoordinator creates a Coordinator and loads its state file.
func NewCoordinator(logger *slog.Logger, opts Options) (*Coordinator, error) {
	state := AddedState{}
	if opts.StatePath != "" {
		loaded, err := loadState(opts.StatePath)
		switch {
		case err == nil:
			state = loaded
		case os.IsNotExist(err):
			logger.Info("No state file found, starting fresh.", "file", opts.StatePath)
		default:
			return nil, fmt.Errorf("failed to load state: %w", err)
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		logger:    logger,
		readers:   opts.Readers,
		writer:    opts.Writer,
		baseURL:   opts.BaseURL,
		statePath: opts.StatePath,
		state:     state,
		dryRun:    opts.DryRun,
		now:       now,
	}, nil
}

// BusyIntervals queries every configured calendar once. A calendar that
// fails is logged and skipped so one broken source does not block the rest,
// but when no calendar could be read at all the joined errors are returned.
func (c *Coordinator) BusyIntervals(ctx context.Context, from, to time.Time) ([]models.Interval, error) {
	var (
		all  []models.Interval
		errs []error
	)
	for i, r := range c.readers {
		busy, err := r.BusyIntervals(ctx, from, to)
		if err != nil {
			c.logger.Error("Could not read busy time from a calendar", "source", i, "error", err)
			errs = append(errs, fmt.Errorf("calendar %d: %w", i, err))
			continue
		}
		all = append(all, busy...)
	}
	if len(c.readers) > 0 && len(errs) == len(c.readers) {
		return nil, fmt.Errorf("%w: %w", ErrNoCalendar, errors.Join(errs...))
	}
	c.logger.Info("Collected busy intervals.", "sources", len(c.readers), "failed", len(errs), "count", len(all))
	return all, nil
}

// Suggest produces candidate slots filtered against every calendar.
// An empty result means no availability.
func (c *Coordinator) Suggest(ctx context.Context, prefs candidates.Preferences) ([]models.TimeSlot, error) {
	slots, err := candidates.NewGenerator(c).Suggest(ctx, prefs, c.now())
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		c.logger.Info("No availability in the requested window.")
	}
	return slots, nil
}

// Propose builds a new proposal over slots and its first payload.
func (c *Coordinator) Propose(title string, description *string, organizer string, slots []models.TimeSlot) (models.ScheduleProposal, message.Payload, error) {
	if len(slots) == 0 {
		return models.ScheduleProposal{}, message.Payload{}, ErrNoSlots
	}
	p := models.NewScheduleProposal(title, description, organizer, slots, c.now())
	if err := p.Validate(); err != nil {
		return models.ScheduleProposal{}, message.Payload{}, fmt.Errorf("invalid proposal: %w", err)
	}

	payload, err := message.ComposeProposal(c.baseURL, p, message.InviteCaption(organizer, title))
	if err != nil {
		return models.ScheduleProposal{}, message.Payload{}, err
	}
	c.logger.Info("Created proposal.", "id", p.ID, "slots", len(p.Slots))
	return p, payload, nil
}

// Open decodes a received payload of either kind.
func (c *Coordinator) Open(payloadURL string) (flatcodec.Message, error) {
	msg, err := message.Open(payloadURL)
	if err != nil {
		return flatcodec.Message{}, err
	}
	c.logger.Debug("Opened payload.", "kind", msg.Kind)
	return msg, nil
}

// Respond applies participantID's answer to the proposal in payloadURL and
// returns the next snapshot.
func (c *Coordinator) Respond(payloadURL, participantID string, r models.ParticipantResponse) (models.ScheduleProposal, message.Payload, error) {
	msg, err := c.Open(payloadURL)
	if err != nil {
		return models.ScheduleProposal{}, message.Payload{}, err
	}
	if msg.Kind != flatcodec.KindProposal {
		return models.ScheduleProposal{}, message.Payload{}, fmt.Errorf("%w: got %s, want proposal", ErrWrongKind, msg.Kind)
	}

	if r.RespondedAt.IsZero() {
		r.RespondedAt = c.now()
	}
	updated, err := aggregate.ApplyResponse(msg.Proposal, participantID, r)
	if err != nil {
		return msg.Proposal, message.Payload{}, err
	}

	payload, err := message.ComposeProposal(c.baseURL, updated, message.ResponseCaption(r.Status()))
	if err != nil {
		return models.ScheduleProposal{}, message.Payload{}, err
	}
	c.logger.Info("Applied response.", "proposal", updated.ID, "participant", participantID, "status", r.Status())
	return updated, payload, nil
}

// Invite builds a fixed-time invitation and its first payload.
func (c *Coordinator) Invite(title string, start, end time.Time, location, notes *string, organizer string) (models.CalendarEvent, message.Payload, error) {
	e := models.NewCalendarEvent(title, start, end, location, notes, organizer)
	if err := e.Validate(); err != nil {
		return models.CalendarEvent{}, message.Payload{}, fmt.Errorf("invalid event: %w", err)
	}
	payload, err := message.ComposeEvent(c.baseURL, e, message.InviteCaption(organizer, title))
	if err != nil {
		return models.CalendarEvent{}, message.Payload{}, err
	}
	c.logger.Info("Created invitation.", "id", e.ID, "title", e.Title)
	return e, payload, nil
}

// RSVP answers the invitation in payloadURL. When the answer is accepted and
// addToCalendar is set, the event is written to the calendar once per device.
func (c *Coordinator) RSVP(ctx context.Context, payloadURL, participantID string, status models.RSVPStatus, addToCalendar bool) (models.CalendarEvent, message.Payload, error) {
	msg, err := c.Open(payloadURL)
	if err != nil {
		return models.CalendarEvent{}, message.Payload{}, err
	}
	if msg.Kind != flatcodec.KindEvent {
		return models.CalendarEvent{}, message.Payload{}, fmt.Errorf("%w: got %s, want event", ErrWrongKind, msg.Kind)
	}

	updated, err := aggregate.ApplyRSVP(msg.Event, participantID, status)
	if err != nil {
		return msg.Event, message.Payload{}, err
	}
	payload, err := message.ComposeEvent(c.baseURL, updated, message.RSVPCaption(status))
	if err != nil {
		return models.CalendarEvent{}, message.Payload{}, err
	}

	if status == models.RSVPAccepted && addToCalendar {
		if err := c.addToCalendar(ctx, updated); err != nil {
			// The RSVP itself still goes out.
			c.logger.Error("Failed to add event to calendar", "title", updated.Title, "error", err)
		}
	}
	c.logger.Info("Applied RSVP.", "event", updated.ID, "participant", participantID, "status", status)
	return updated, payload, nil
}

func (c *Coordinator) addToCalendar(ctx context.Context, e models.CalendarEvent) error {
	if id, exists := c.state[e.ID]; exists {
		c.logger.Debug("Event already in calendar, skipping.", "title", e.Title, "calendarID", id)
		return nil
	}
	if c.writer == nil {
		return errors.New("no calendar configured")
	}
	if c.dryRun {
		c.logger.Info("[DRY RUN] Would add event to calendar", "title", e.Title, "startTime", e.Start)
		return nil
	}

	id, err := c.writer.CreateEvent(ctx, e)
	if err != nil {
		return fmt.Errorf("failed to create calendar event: %w", err)
	}
	c.state[e.ID] = id
	if c.statePath != "" {
		if err := saveState(c.statePath, c.state); err != nil {
			c.logger.Error("Failed to save state", "error", err)
		}
	}
	return nil
}

// loadState loads the added-events state from a JSON file.
func loadState(path string) (AddedState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state AddedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = AddedState{}
	}
	return state, nil
}

// saveState saves the added-events state to a JSON file.
func saveState(path string, state AddedState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
