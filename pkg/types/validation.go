package types

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// FUNCTIONAL DISCOVERY: validator and sanitizer policy built once at package
// initialization; both are safe for concurrent use
var (
	validate    = validator.New(validator.WithRequiredStructEnabled())
	stripMarkup = bluemonday.StrictPolicy()
)

// FeedbackInput is the payload of a feedback submission.
type FeedbackInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

// SessionRequest is a mentee's request for a new session with a mentor.
type SessionRequest struct {
	MentorID  string    `json:"mentorId" validate:"required"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Notes     string    `json:"notes,omitempty" validate:"max=1000"`
}

// Credentials are the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the sign-up payload.
type Registration struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     Role   `json:"role" validate:"required,oneof=mentor mentee"`
}

// CheckIntegrity reports whether the session carries everything the lifecycle
// evaluator needs. It returns a *MalformedSessionError otherwise.
func (s *Session) CheckIntegrity() error {
	switch {
	case s.StartTime.IsZero():
		return &MalformedSessionError{SessionID: s.ID, Reason: "missing or invalid startTime"}
	case s.EndTime.IsZero():
		return &MalformedSessionError{SessionID: s.ID, Reason: "missing or invalid endTime"}
	case !s.EndTime.After(s.StartTime):
		return &MalformedSessionError{SessionID: s.ID, Reason: "endTime is not after startTime"}
	case !s.Status.Valid():
		return &MalformedSessionError{SessionID: s.ID, Reason: fmt.Sprintf("unknown status %q", s.Status)}
	}
	return nil
}

// Normalize strips markup and surrounding whitespace from the comment.
func (in FeedbackInput) Normalize() FeedbackInput {
	in.Comment = StripMarkup(in.Comment)
	return in
}

// Validate checks the rating range and that the comment is non-empty.
func (in FeedbackInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFeedback, describe(err))
	}
	if strings.TrimSpace(in.Comment) == "" {
		return fmt.Errorf("%w: comment is required", ErrInvalidFeedback)
	}
	return nil
}

// Normalize strips markup from the notes.
func (r SessionRequest) Normalize() SessionRequest {
	r.Notes = StripMarkup(r.Notes)
	r.MentorID = strings.TrimSpace(r.MentorID)
	return r
}

// Validate checks the mentor reference and the time window.
func (r SessionRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSessionRequest, describe(err))
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return fmt.Errorf("%w: start and end time are required", ErrInvalidSessionRequest)
	}
	if !r.EndTime.After(r.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidSessionRequest)
	}
	return nil
}

// Validate checks the login payload.
func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, describe(err))
	}
	return nil
}

// Validate checks the sign-up payload.
func (r Registration) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRegistration, describe(err))
	}
	return nil
}

// Validate checks the editable profile fields.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, describe(err))
	}
	return nil
}

// ParseRole converts user input into a Role.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", ErrUnknownRole
	}
	return role, nil
}

// ParseBucket converts user input into one of the four display buckets.
func ParseBucket(value string) (Bucket, error) {
	bucket := Bucket(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Buckets {
		if bucket == known {
			return bucket, nil
		}
	}
	return "", ErrUnknownBucket
}

// StripMarkup removes HTML from free text and returns it trimmed and unescaped.
func StripMarkup(text string) string {
	return strings.TrimSpace(html.UnescapeString(stripMarkup.Sanitize(text)))
}

// describe flattens validator errors into one line, field by field.
func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
