package flatcodec

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"calinvite/internal/models"
)

// Scalar field names.
const (
	fieldEventID       = "eventID"
	fieldTitle         = "title"
	fieldDescription   = "description"
	fieldOrganizerName = "organizerName"
	fieldCreatedDate   = "createdDate"
	fieldStartDate     = "startDate"
	fieldEndDate       = "endDate"
	fieldLocation      = "location"
	fieldNotes         = "notes"

	prefixSlot     = "slot"
	prefixResponse = "response"

	subID          = "id"
	subStart       = "start"
	subEnd         = "end"
	subParticipant = "participant"
	subStatus      = "status"
	subDate        = "date"
	subSelected    = "selected"
	subCustom      = "custom"
)

// EncodeProposal flattens a proposal. Output is deterministic: scalars,
// then slots in list order, then responses by participant ID.
func EncodeProposal(p models.ScheduleProposal) Pairs {
	ps := Pairs{
		{fieldEventID, p.ID},
		{fieldTitle, p.Title},
		{fieldOrganizerName, p.OrganizerName},
		{fieldCreatedDate, FormatTimestamp(p.CreatedAt)},
	}
	if p.Description != nil {
		ps = append(ps, Pair{fieldDescription, *p.Description})
	}

	for i, s := range p.Slots {
		ps = appendSlot(ps, name(prefixSlot, strconv.Itoa(i)), s)
	}

	for _, pid := range sortedKeys(p.Responses) {
		r := p.Responses[pid]
		prefix := name(prefixResponse, EscapeKey(pid))
		ps = append(ps, Pair{name(prefix, subStatus), string(r.Status())})
		if !r.RespondedAt.IsZero() {
			ps = append(ps, Pair{name(prefix, subDate), FormatTimestamp(r.RespondedAt)})
		}
		for i, id := range r.SelectedSlotIDs() {
			ps = append(ps, Pair{name(prefix, subSelected, strconv.Itoa(i)), id})
		}
		for i, s := range r.CustomAvailability() {
			ps = appendSlot(ps, name(prefix, subCustom, strconv.Itoa(i)), s)
		}
	}
	return ps
}

func appendSlot(ps Pairs, prefix string, s models.TimeSlot) Pairs {
	ps = append(ps,
		Pair{name(prefix, subID), s.ID},
		Pair{name(prefix, subStart), FormatTimestamp(s.Start)},
		Pair{name(prefix, subEnd), FormatTimestamp(s.End)},
	)
	for _, pid := range sortedKeys(s.Selections) {
		ps = append(ps, Pair{
			name(prefix, subParticipant, EscapeKey(pid)),
			strconv.FormatBool(s.Selections[pid]),
		})
	}
	return ps
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeProposal rebuilds a proposal from pairs in any order. It reports
// false when a required scalar is missing or a timestamp or boolean does not
// parse. Unknown names are ignored.
func DecodeProposal(pairs Pairs) (models.ScheduleProposal, bool) {
	b := proposalBuilder{
		slots:     map[int]*slotBuilder{},
		responses: map[string]*responseBuilder{},
	}
	for _, p := range pairs {
		if !b.add(p) {
			return models.ScheduleProposal{}, false
		}
	}
	return b.build()
}

// proposalBuilder holds a proposal under construction. Nothing is required
// until build.
type proposalBuilder struct {
	id, title, organizer *string
	description          *string
	createdAt            *time.Time
	slots                map[int]*slotBuilder
	responses            map[string]*responseBuilder
}

type slotBuilder struct {
	id         string
	start, end time.Time
	selections map[string]bool
}

type responseBuilder struct {
	status   models.ResponseStatus
	date     time.Time
	selected map[int]string
	custom   map[int]*slotBuilder
}

func (b *proposalBuilder) add(p Pair) bool {
	v := p.Value
	switch p.Name {
	case fieldEventID:
		b.id = &v
	case fieldTitle:
		b.title = &v
	case fieldOrganizerName:
		b.organizer = &v
	case fieldDescription:
		b.description = &v
	case fieldCreatedDate:
		t, ok := ParseTimestamp(v)
		if !ok {
			return false
		}
		b.createdAt = &t
	default:
		head, rest, _ := strings.Cut(p.Name, sep)
		switch head {
		case prefixSlot:
			return addIndexedSlot(b.slots, rest, v)
		case prefixResponse:
			return b.addResponse(rest, v)
		}
	}
	return true
}

func (b *proposalBuilder) addResponse(rest, v string) bool {
	escPID, sub, ok := strings.Cut(rest, sep)
	if !ok || escPID == "" {
		// response_<pid> on its own is an RSVP, not ours.
		return true
	}
	field, tail, _ := strings.Cut(sub, sep)
	switch field {
	case subStatus, subDate, subSelected, subCustom:
	default:
		return true
	}

	pid := UnescapeKey(escPID)
	rb := b.responses[pid]
	if rb == nil {
		rb = &responseBuilder{
			status:   models.StatusPending,
			selected: map[int]string{},
			custom:   map[int]*slotBuilder{},
		}
		b.responses[pid] = rb
	}

	switch field {
	case subStatus:
		if st, ok := models.ParseResponseStatus(v); ok {
			rb.status = st
		}
	case subDate:
		t, ok := ParseTimestamp(v)
		if !ok {
			return false
		}
		rb.date = t
	case subSelected:
		if n, ok := parseIndex(tail); ok {
			rb.selected[n] = v
		}
	case subCustom:
		return addIndexedSlot(rb.custom, tail, v)
	}
	return true
}

// addIndexedSlot applies "<n>_<field>" to the slot builder at index n.
func addIndexedSlot(slots map[int]*slotBuilder, rest, v string) bool {
	idx, field, ok := strings.Cut(rest, sep)
	if !ok {
		return true
	}
	n, ok := parseIndex(idx)
	if !ok {
		return true
	}
	sb := slots[n]
	if sb == nil {
		sb = &slotBuilder{selections: map[string]bool{}}
		slots[n] = sb
	}

	sub, key, _ := strings.Cut(field, sep)
	switch sub {
	case subID:
		sb.id = v
	case subStart:
		t, ok := ParseTimestamp(v)
		if !ok {
			return false
		}
		sb.start = t
	case subEnd:
		t, ok := ParseTimestamp(v)
		if !ok {
			return false
		}
		sb.end = t
	case subParticipant:
		if key == "" {
			return true
		}
		selected, ok := ParseBool(v)
		if !ok {
			return false
		}
		sb.selections[UnescapeKey(key)] = selected
	}
	return true
}

func (b *proposalBuilder) build() (models.ScheduleProposal, bool) {
	if b.id == nil || b.title == nil || b.organizer == nil || b.createdAt == nil {
		return models.ScheduleProposal{}, false
	}

	p := models.ScheduleProposal{
		ID:            *b.id,
		Title:         *b.title,
		Description:   b.description,
		OrganizerName: *b.organizer,
		CreatedAt:     *b.createdAt,
		Slots:         finishSlots(b.slots),
		Responses:     make(map[string]models.ParticipantResponse, len(b.responses)),
	}
	for pid, rb := range b.responses {
		p.Responses[pid] = models.ParticipantResponse{
			ParticipantID: pid,
			RespondedAt:   rb.date,
			Choice:        rb.choice(),
		}
	}
	return p, true
}

func (rb *responseBuilder) choice() models.Choice {
	switch rb.status {
	case models.StatusSelectedSuggested:
		ids := make([]string, 0, len(rb.selected))
		for _, n := range sortedIndexes(rb.selected) {
			ids = append(ids, rb.selected[n])
		}
		return models.SelectedSuggested{SlotIDs: ids}
	case models.StatusProposedAlternative:
		return models.ProposedAlternative{Slots: finishSlots(rb.custom)}
	case models.StatusNoneWork:
		return models.NoneWork{}
	default:
		return models.Pending{}
	}
}

func finishSlots(slots map[int]*slotBuilder) []models.TimeSlot {
	out := make([]models.TimeSlot, 0, len(slots))
	for _, n := range sortedIndexes(slots) {
		sb := slots[n]
		out = append(out, models.TimeSlot{
			ID:         sb.id,
			Start:      sb.start,
			End:        sb.end,
			Selections: sb.selections,
		})
	}
	return out
}

func sortedIndexes[V any](m map[int]V) []int {
	idx := make([]int, 0, len(m))
	for n := range m {
		idx = append(idx, n)
	}
	sort.Ints(idx)
	return idx
}
