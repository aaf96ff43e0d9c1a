package message

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"calinvite/internal/flatcodec"
	"calinvite/internal/models"
)

var base = time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)

func TestComposeAndOpenProposal(t *testing.T) {
	t.Parallel()

	p := models.NewScheduleProposal("Hike & picnic", nil, "Alex", []models.TimeSlot{
		models.NewTimeSlot(base, base.Add(time.Hour)),
		models.NewTimeSlot(base.Add(time.Hour), base.Add(2*time.Hour)),
	}, base)
	p.Responses["u1"] = models.ParticipantResponse{ParticipantID: "u1", Choice: models.NoneWork{}}

	payload, err := ComposeProposal("calinvite://message", p, InviteCaption("Alex", p.Title))
	if err != nil {
		t.Fatalf("ComposeProposal() error = %v", err)
	}
	if !strings.HasPrefix(payload.URL, "calinvite://message?") {
		t.Errorf("URL = %q", payload.URL)
	}
	if payload.Caption != "📅 Alex invited you to Hike & picnic" {
		t.Errorf("Caption = %q", payload.Caption)
	}
	if payload.Subcaption != "2 time slots, 1 responded" {
		t.Errorf("Subcaption = %q", payload.Subcaption)
	}

	msg, err := Open(payload.URL)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if msg.Kind != flatcodec.KindProposal || msg.Proposal.ID != p.ID || msg.Proposal.Title != p.Title {
		t.Fatalf("Open() = %+v", msg)
	}
	if len(msg.Proposal.Slots) != 2 || msg.Proposal.Slots[1].ID != p.Slots[1].ID {
		t.Errorf("slots = %+v", msg.Proposal.Slots)
	}
}

func TestComposeAndOpenEvent(t *testing.T) {
	t.Parallel()

	where := "Main St 1"
	e := models.NewCalendarEvent("Dinner", base, base.Add(2*time.Hour), &where, nil, "Sam")
	payload, err := ComposeEvent("https://example.com/invite", e, InviteCaption("Sam", "Dinner"))
	if err != nil {
		t.Fatalf("ComposeEvent() error = %v", err)
	}
	if payload.Subcaption != "Jun 7, 2025 from 2:00 PM to 4:00 PM" {
		t.Errorf("Subcaption = %q", payload.Subcaption)
	}

	msg, err := Open(payload.URL)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if msg.Kind != flatcodec.KindEvent || msg.Event.ID != e.ID || msg.Event.Location == nil || *msg.Event.Location != where {
		t.Fatalf("Open() = %+v", msg)
	}
}

func TestOpenRejects(t *testing.T) {
	t.Parallel()

	if _, err := Open("calinvite://message?foo=bar"); !errors.Is(err, ErrUnrecognized) {
		t.Errorf("Open(unknown) error = %v, want ErrUnrecognized", err)
	}
	if _, err := Open("calinvite://message?title=%zz"); err == nil || errors.Is(err, ErrUnrecognized) {
		t.Errorf("Open(bad escape) error = %v, want a parse error", err)
	}
	if _, err := ComposeEvent("::", models.CalendarEvent{}, ""); err == nil {
		t.Errorf("ComposeEvent accepted an invalid base url")
	}
}

func TestCaptions(t *testing.T) {
	t.Parallel()

	if got := RSVPCaption(models.RSVPAccepted); !strings.Contains(got, "going") {
		t.Errorf("RSVPCaption(accepted) = %q", got)
	}
	if got := ResponseCaption(models.StatusNoneWork); !strings.Contains(got, "None") {
		t.Errorf("ResponseCaption(none_work) = %q", got)
	}
	if got := FormatRange(base, base.Add(26*time.Hour)); got != "Jun 7, 2025 2:00 PM - Jun 8, 2025 4:00 PM" {
		t.Errorf("FormatRange() across days = %q", got)
	}
}

func TestWriterSender(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriterSender{W: &buf}.Send(context.Background(), Payload{URL: "u", Caption: "c", Subcaption: "s"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if buf.String() != "c\ns\nu\n" {
		t.Fatalf("Send() wrote %q", buf.String())
	}
}
