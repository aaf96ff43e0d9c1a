// Package flatcodec turns proposals and events into an ordered list of
// name/value string pairs and back. The pairs travel as a URL query string,
// so the whole aggregate has to survive being flattened.
//
// Names follow a positional grammar:
//
//	title | description | organizerName | eventID | createdDate
//	startDate | endDate | location | notes
//	slot_<n>_id | slot_<n>_start | slot_<n>_end
//	slot_<n>_participant_<pid>          "true" | "false"
//	response_<pid>_status | response_<pid>_date
//	response_<pid>_selected_<n>
//	response_<pid>_custom_<n>_id|start|end|participant_<pid>
//	response_<pid>                      RSVP status of a CalendarEvent
//
// Map keys embedded in names (participant IDs) are escaped so they never
// contain the "_" separator. Keys free of "_" and "%" are written verbatim.
package flatcodec

import (
	"fmt"
	"net/url"
	"strings"
)

const sep = "_"

// Pair is a single name/value entry of an encoded payload.
type Pair struct {
	Name  string
	Value string
}

// Pairs is an ordered list of pairs. Order is preserved on the wire but
// decoders never depend on it.
type Pairs []Pair

// Get returns the value of the last pair with the given name.
func (ps Pairs) Get(name string) (string, bool) {
	for i := len(ps) - 1; i >= 0; i-- {
		if ps[i].Name == name {
			return ps[i].Value, true
		}
	}
	return "", false
}

// Query renders the pairs as a URL query string, keeping their order.
func (ps Pairs) Query() string {
	var b strings.Builder
	for i, p := range ps {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// ParseQuery splits a raw query string into pairs, keeping their order.
// url.ParseQuery is not used because url.Values loses it.
func ParseQuery(raw string) (Pairs, error) {
	var out Pairs
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		rawName, rawValue, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return nil, fmt.Errorf("invalid pair name %q: %w", rawName, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", name, err)
		}
		out = append(out, Pair{Name: name, Value: value})
	}
	return out, nil
}

var (
	keyEscaper   = strings.NewReplacer("%", "%25", sep, "%5F")
	keyUnescaper = strings.NewReplacer("%25", "%", "%5F", sep, "%5f", sep)
)

// EscapeKey makes a map key safe to embed in a pair name.
func EscapeKey(key string) string {
	return keyEscaper.Replace(key)
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(key string) string {
	return keyUnescaper.Replace(key)
}

func name(parts ...string) string {
	return strings.Join(parts, sep)
}
