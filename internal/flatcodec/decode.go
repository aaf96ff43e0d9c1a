package flatcodec

import "calinvite/internal/models"

// Kind identifies which aggregate a payload decoded into.
type Kind int

const (
	KindUnknown Kind = iota
	KindProposal
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindProposal:
		return "proposal"
	case KindEvent:
		return "event"
	}
	return "unknown"
}

// Message is a decoded payload. Only the field matching Kind is set.
type Message struct {
	Kind     Kind
	Proposal models.ScheduleProposal
	Event    models.CalendarEvent
}

// Decode tries each known schema in turn, proposal first. It reports false
// when none matches.
func Decode(pairs Pairs) (Message, bool) {
	if p, ok := DecodeProposal(pairs); ok {
		return Message{Kind: KindProposal, Proposal: p}, true
	}
	if e, ok := DecodeEvent(pairs); ok {
		return Message{Kind: KindEvent, Event: e}, true
	}
	return Message{}, false
}
