// Package message wraps encoded proposals and events into the URL payload
// that travels between devices, and opens such payloads again.
package message

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"calinvite/internal/flatcodec"
	"calinvite/internal/models"
)

// ErrUnrecognized is returned when a payload matches no known schema.
var ErrUnrecognized = errors.New("unrecognized message")

// Payload is what gets handed to the messaging platform.
type Payload struct {
	URL        string
	Caption    string
	Subcaption string
}

// Sender delivers a payload. Delivery is not ordered and may duplicate.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// ComposeProposal builds the payload for a proposal snapshot.
func ComposeProposal(base string, p models.ScheduleProposal, caption string) (Payload, error) {
	u, err := withQuery(base, flatcodec.EncodeProposal(p))
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		URL:        u,
		Caption:    caption,
		Subcaption: fmt.Sprintf("%d time slots, %d responded", len(p.Slots), p.ResponseCount()),
	}, nil
}

// ComposeEvent builds the payload for an event snapshot.
func ComposeEvent(base string, e models.CalendarEvent, caption string) (Payload, error) {
	u, err := withQuery(base, flatcodec.EncodeEvent(e))
	if err != nil {
		return Payload{}, err
	}
	return Payload{URL: u, Caption: caption, Subcaption: FormatRange(e.Start, e.End)}, nil
}

func withQuery(base string, pairs flatcodec.Pairs) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	u.RawQuery = pairs.Query()
	return u.String(), nil
}

// Open parses a payload URL and decodes whichever aggregate it carries.
func Open(rawURL string) (flatcodec.Message, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return flatcodec.Message{}, fmt.Errorf("invalid payload url: %w", err)
	}
	pairs, err := flatcodec.ParseQuery(u.RawQuery)
	if err != nil {
		return flatcodec.Message{}, fmt.Errorf("invalid payload query: %w", err)
	}
	msg, ok := flatcodec.Decode(pairs)
	if !ok {
		return flatcodec.Message{}, ErrUnrecognized
	}
	return msg, nil
}

// InviteCaption is the caption of a freshly created event or proposal.
func InviteCaption(organizer, title string) string {
	return fmt.Sprintf("📅 %s invited you to %s", organizer, title)
}

// RSVPCaption is the caption sent back with an RSVP.
func RSVPCaption(status models.RSVPStatus) string {
	switch status {
	case models.RSVPAccepted:
		return "📅 ✅ You are going!"
	case models.RSVPDeclined:
		return "📅 ❌ You declined."
	}
	return "📅 ⏳ You have not decided yet."
}

// ResponseCaption is the caption sent back with a proposal response.
func ResponseCaption(status models.ResponseStatus) string {
	switch status {
	case models.StatusSelectedSuggested:
		return "🗓️ Picked times that work"
	case models.StatusProposedAlternative:
		return "🗓️ Suggested other times"
	case models.StatusNoneWork:
		return "🗓️ None of these times work"
	}
	return "🗓️ Still deciding"
}

// FormatRange renders a time range, collapsing the date when both ends fall
// on the same day.
func FormatRange(start, end time.Time) string {
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return fmt.Sprintf("%s from %s to %s", start.Format("Jan 2, 2006"), start.Format("3:04 PM"), end.Format("3:04 PM"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 2, 2006 3:04 PM"), end.Format("Jan 2, 2006 3:04 PM"))
}

// WriterSender prints payloads, for terminals and pipes.
type WriterSender struct {
	W io.Writer
}

// Send writes the caption, subcaption and URL on separate lines.
func (s WriterSender) Send(_ context.Context, p Payload) error {
	_, err := fmt.Fprintf(s.W, "%s\n%s\n%s\n", p.Caption, p.Subcaption, p.URL)
	return err
}
