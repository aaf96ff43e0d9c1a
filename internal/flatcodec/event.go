package flatcodec

import (
	"strings"
	"time"

	"calinvite/internal/models"
)

// EncodeEvent flattens a calendar event.
func EncodeEvent(e models.CalendarEvent) Pairs {
	ps := Pairs{
		{fieldTitle, e.Title},
		{fieldStartDate, FormatTimestamp(e.Start)},
		{fieldEndDate, FormatTimestamp(e.End)},
		{fieldEventID, e.ID},
		{fieldOrganizerName, e.OrganizerName},
	}
	if e.Location != nil {
		ps = append(ps, Pair{fieldLocation, *e.Location})
	}
	if e.Notes != nil {
		ps = append(ps, Pair{fieldNotes, *e.Notes})
	}
	for _, pid := range sortedKeys(e.Responses) {
		ps = append(ps, Pair{name(prefixResponse, EscapeKey(pid)), string(e.Responses[pid])})
	}
	return ps
}

// DecodeEvent rebuilds a calendar event. Same failure rules as
// DecodeProposal; unrecognised RSVP values are skipped.
func DecodeEvent(pairs Pairs) (models.CalendarEvent, bool) {
	var (
		id, title, organizer *string
		location, notes      *string
		start, end           *time.Time
	)
	responses := map[string]models.RSVPStatus{}

	for _, p := range pairs {
		v := p.Value
		switch p.Name {
		case fieldEventID:
			id = &v
		case fieldTitle:
			title = &v
		case fieldOrganizerName:
			organizer = &v
		case fieldLocation:
			location = &v
		case fieldNotes:
			notes = &v
		case fieldStartDate, fieldEndDate:
			t, ok := ParseTimestamp(v)
			if !ok {
				return models.CalendarEvent{}, false
			}
			if p.Name == fieldStartDate {
				start = &t
			} else {
				end = &t
			}
		default:
			escPID, ok := strings.CutPrefix(p.Name, prefixResponse+sep)
			if !ok || escPID == "" || strings.Contains(escPID, sep) {
				continue
			}
			if st, ok := models.ParseRSVPStatus(v); ok {
				responses[UnescapeKey(escPID)] = st
			}
		}
	}

	if id == nil || title == nil || organizer == nil || start == nil || end == nil {
		return models.CalendarEvent{}, false
	}
	return models.CalendarEvent{
		ID:            *id,
		Title:         *title,
		Start:         *start,
		End:           *end,
		Location:      location,
		Notes:         notes,
		OrganizerName: *organizer,
		Responses:     responses,
	}, true
}
