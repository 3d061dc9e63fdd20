package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04",
}

// parseTimestamp returns the zero time for null, empty, or unparseable input.
func parseTimestamp(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return time.Time{}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

func optionalTimestamp(raw json.RawMessage) *time.Time {
	t := parseTimestamp(raw)
	if t.IsZero() {
		return nil
	}
	return &t
}

// UnmarshalJSON accepts a populated participant object or a bare id string.
// FUNCTIONAL DISCOVERY: list endpoints populate mentor and mentee, but some
// mutation responses leave them as ids
func (p *Participant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = Participant{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &p.ID)
	}

	type plain Participant
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Participant(decoded)
	return nil
}

// Weekdays are the availability days in the order the backend stores them.
var Weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Availability flags which weekdays a mentor takes sessions, Monday first.
type Availability [7]bool

type availabilitySlot struct {
	Day       string `json:"day"`
	Available bool   `json:"available"`
}

// ParseWeekday resolves a day name (case-insensitive, three-letter prefixes allowed)
// to its Availability index.
func ParseWeekday(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}
	for i, day := range Weekdays {
		if strings.HasPrefix(strings.ToLower(day), name) {
			return i, true
		}
	}
	return 0, false
}

// AvailabilityFromDays builds an Availability with the named days set.
func AvailabilityFromDays(days []string) (Availability, error) {
	var a Availability
	for _, day := range days {
		i, ok := ParseWeekday(day)
		if !ok {
			return Availability{}, &UnknownWeekdayError{Day: day}
		}
		a[i] = true
	}
	return a, nil
}

// Days returns the names of the available days in week order.
func (a Availability) Days() []string {
	days := make([]string, 0, len(a))
	for i, available := range a {
		if available {
			days = append(days, Weekdays[i])
		}
	}
	return days
}

// MarshalJSON always emits all seven days.
func (a Availability) MarshalJSON() ([]byte, error) {
	slots := make([]availabilitySlot, len(Weekdays))
	for i, day := range Weekdays {
		slots[i] = availabilitySlot{Day: day, Available: a[i]}
	}
	return json.Marshal(slots)
}

// UnmarshalJSON accepts the backend's [{day, available}] array. Days missing from the
// array are unavailable; unknown day names are ignored.
func (a *Availability) UnmarshalJSON(data []byte) error {
	*a = Availability{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var slots []availabilitySlot
	if err := json.Unmarshal(data, &slots); err != nil {
		return err
	}
	for _, slot := range slots {
		if i, ok := ParseWeekday(slot.Day); ok {
			a[i] = slot.Available
		}
	}
	return nil
}
