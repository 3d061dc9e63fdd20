// Package feedback answers whether a participant has already rated a session.
package feedback

import "mentorhub/pkg/types"

// HasFeedback reports whether the session carries a feedback entry from role.
func HasFeedback(s *types.Session, role types.Role) bool {
	_, ok := Entry(s, role)
	return ok
}

// Entry returns the first feedback entry submitted by role.
// FUNCTIONAL DISCOVERY: the backend should reject duplicates, but if two entries
// share a role the earliest one wins everywhere it is read
func Entry(s *types.Session, role types.Role) (types.Feedback, bool) {
	if s == nil {
		return types.Feedback{}, false
	}
	for _, f := range s.Feedback {
		if f.From == role {
			return f, true
		}
	}
	return types.Feedback{}, false
}

// Missing lists the roles that have not yet left feedback, mentor first.
func Missing(s *types.Session) []types.Role {
	missing := make([]types.Role, 0, 2)
	for _, role := range []types.Role{types.RoleMentor, types.RoleMentee} {
		if !HasFeedback(s, role) {
			missing = append(missing, role)
		}
	}
	return missing
}

// Completion counts how many completed sessions have feedback from each side.
type Completion struct {
	CompletedSessions int `json:"completedSessions"`
	MentorSubmitted   int `json:"mentorSubmitted"`
	MenteeSubmitted   int `json:"menteeSubmitted"`
	BothSubmitted     int `json:"bothSubmitted"`
}

// Observe folds one session into the counts. Sessions that are not completed are ignored.
func (c *Completion) Observe(s *types.Session) {
	if s == nil || s.Status != types.StatusCompleted {
		return
	}

	c.CompletedSessions++
	mentor := HasFeedback(s, types.RoleMentor)
	mentee := HasFeedback(s, types.RoleMentee)
	if mentor {
		c.MentorSubmitted++
	}
	if mentee {
		c.MenteeSubmitted++
	}
	if mentor && mentee {
		c.BothSubmitted++
	}
}

// Rate returns the share of completed sessions rated by both sides, 0 when there are none.
func (c Completion) Rate() float64 {
	if c.CompletedSessions == 0 {
		return 0
	}
	return float64(c.BothSubmitted) / float64(c.CompletedSessions)
}
