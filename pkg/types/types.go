package types

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Status is the backend lifecycle status of a session.
// FUNCTIONAL DISCOVERY: status only moves forward; declined and completed are terminal
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusCompleted:
		return true
	default:
		return false
	}
}

// Role is the side an actor plays in a session.
type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// Valid reports whether r is mentor or mentee.
func (r Role) Valid() bool {
	return r == RoleMentor || r == RoleMentee
}

// Counterpart returns the other side of the session.
func (r Role) Counterpart() Role {
	if r == RoleMentor {
		return RoleMentee
	}
	return RoleMentor
}

// Participant references a mentor or mentee on a session.
type Participant struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Feedback is one rating left on a session. At most one entry exists per role.
type Feedback struct {
	From      Role       `json:"from"`
	Rating    int        `json:"rating"`
	Comment   string     `json:"comment"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Session is a scheduled mentor-mentee meeting as returned by the backend.
// ARCHITECTURAL DISCOVERY: StartTime/EndTime stay zero when the backend omits them or
// sends something unparseable; the lifecycle evaluator reports those records as malformed
type Session struct {
	ID         string      `json:"_id"`
	Mentor     Participant `json:"mentor"`
	Mentee     Participant `json:"mentee"`
	StartTime  time.Time   `json:"startTime"`
	EndTime    time.Time   `json:"endTime"`
	Status     Status      `json:"status"`
	Notes      string      `json:"notes,omitempty"`
	MeetingURL string      `json:"meetingUrl,omitempty"`
	Feedback   []Feedback  `json:"feedback,omitempty"`
	CreatedAt  *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time  `json:"updatedAt,omitempty"`
}

// UnmarshalJSON decodes a session without failing on bad timestamps, so one broken
// record never poisons a whole session list.
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var raw struct {
		plain
		StartTime json.RawMessage `json:"startTime"`
		EndTime   json.RawMessage `json:"endTime"`
		CreatedAt json.RawMessage `json:"createdAt"`
		UpdatedAt json.RawMessage `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Session(raw.plain)
	s.StartTime = parseTimestamp(raw.StartTime)
	s.EndTime = parseTimestamp(raw.EndTime)
	s.CreatedAt = optionalTimestamp(raw.CreatedAt)
	s.UpdatedAt = optionalTimestamp(raw.UpdatedAt)
	return nil
}

// Duration is EndTime - StartTime; zero when either bound is missing.
func (s *Session) Duration() time.Duration {
	if s.StartTime.IsZero() || s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Participant returns the participant playing role on this session.
func (s *Session) Participant(role Role) Participant {
	if role == RoleMentor {
		return s.Mentor
	}
	return s.Mentee
}

// Bucket is the mutually exclusive display category of a session.
type Bucket string

const (
	BucketPending   Bucket = "pending"
	BucketUpcoming  Bucket = "upcoming"
	BucketCompleted Bucket = "completed"
	BucketDeclined  Bucket = "declined"
	BucketNone      Bucket = "none"
)

// Buckets lists the four display buckets in presentation order.
var Buckets = []Bucket{BucketPending, BucketUpcoming, BucketCompleted, BucketDeclined}

// Action is something an actor may do to a session.
type Action string

const (
	ActionApprove         Action = "approve"
	ActionDecline         Action = "decline"
	ActionJoinMeeting     Action = "join_meeting"
	ActionProvideFeedback Action = "provide_feedback"
)

// allActions fixes the canonical ordering used by ActionSet.List.
var allActions = []Action{ActionApprove, ActionDecline, ActionJoinMeeting, ActionProvideFeedback}

// ActionSet is an immutable set of actions.
type ActionSet uint8

func (a Action) bit() ActionSet {
	for i, known := range allActions {
		if known == a {
			return 1 << uint(i)
		}
	}
	return 0
}

// NewActionSet builds a set from the given actions; unknown actions are ignored.
func NewActionSet(actions ...Action) ActionSet {
	var set ActionSet
	for _, a := range actions {
		set |= a.bit()
	}
	return set
}

// With returns a copy of the set that also contains a.
func (s ActionSet) With(a Action) ActionSet { return s | a.bit() }

// Has reports whether a is in the set.
func (s ActionSet) Has(a Action) bool {
	bit := a.bit()
	return bit != 0 && s&bit != 0
}

// Len is the number of actions in the set.
func (s ActionSet) Len() int {
	n := 0
	for _, a := range allActions {
		if s.Has(a) {
			n++
		}
	}
	return n
}

// List returns the actions in canonical order.
func (s ActionSet) List() []Action {
	actions := make([]Action, 0, len(allActions))
	for _, a := range allActions {
		if s.Has(a) {
			actions = append(actions, a)
		}
	}
	return actions
}

// MarshalJSON encodes the set as an ordered array of action names.
func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// Account is the authenticated user as reported by the auth endpoints.
// TECHNICAL DISCOVERY: the backend reports the id as either _id or userId depending
// on the endpoint, Key returns whichever one is present
type Account struct {
	ID            string  `json:"_id,omitempty"`
	UserID        string  `json:"userId,omitempty"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Role          Role    `json:"role"`
	AverageRating float64 `json:"averageRating,omitempty"`
}

// Key returns the account identifier used in session participant references.
func (a Account) Key() string {
	if a.UserID != "" {
		return a.UserID
	}
	return a.ID
}

// MentorSummary is one entry of the mentor directory.
type MentorSummary struct {
	ID            string   `json:"_id"`
	Name          string   `json:"name"`
	Avatar        string   `json:"avatar,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	Expertise     []string `json:"expertise,omitempty"`
	AverageRating float64  `json:"averageRating"`
	TotalSessions int      `json:"totalSessions"`
}

// Profile is the editable account metadata. AverageRating, Email and Role are
// owned by the backend and only echoed back on update.
type Profile struct {
	ID            string       `json:"_id,omitempty"`
	Name          string       `json:"name" validate:"required,max=100"`
	Email         string       `json:"email,omitempty"`
	Role          Role         `json:"role,omitempty"`
	Timezone      string       `json:"timezone,omitempty" validate:"omitempty,timezone"`
	Bio           string       `json:"bio,omitempty" validate:"max=2000"`
	AverageRating float64      `json:"averageRating,omitempty"`
	Availability  Availability `json:"availability"`
}

// EffectiveTimezone returns the profile's timezone, or the machine's zone when
// none is set. local reports whether the fallback was used.
func (p *Profile) EffectiveTimezone() (name string, local bool) {
	if p.Timezone != "" {
		return p.Timezone, false
	}
	return LocalTimezone(), true
}

// LocalTimezone names the machine's IANA zone from $TZ or the /etc/localtime
// link, falling back to UTC when neither resolves.
func LocalTimezone() string {
	if tz := strings.TrimPrefix(os.Getenv("TZ"), ":"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	if target, err := filepath.EvalSymlinks("/etc/localtime"); err == nil {
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			name := target[i+len("zoneinfo/"):]
			if _, err := time.LoadLocation(name); err == nil {
				return name
			}
		}
	}
	return "UTC"
}

// IntegrityWarning describes a session record that was excluded from derived views.
type IntegrityWarning struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}
