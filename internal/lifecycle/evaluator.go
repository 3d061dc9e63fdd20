// Package lifecycle classifies sessions into display buckets and decides which
// actions a participant may take on them. Every function is pure; callers pass
// the wall-clock time and actor role explicitly.
package lifecycle

import (
	"errors"
	"sort"
	"time"

	"mentorhub/internal/feedback"
	"mentorhub/pkg/types"
)

// Classify returns the display bucket of s at now. Approved sessions whose start
// time has passed belong to no bucket and yield types.BucketNone.
func Classify(s *types.Session, now time.Time) (types.Bucket, error) {
	if err := s.CheckIntegrity(); err != nil {
		return types.BucketNone, err
	}

	switch s.Status {
	case types.StatusPending:
		return types.BucketPending, nil
	case types.StatusApproved:
		if s.StartTime.After(now) {
			return types.BucketUpcoming, nil
		}
		return types.BucketNone, nil
	case types.StatusCompleted:
		return types.BucketCompleted, nil
	case types.StatusDeclined:
		return types.BucketDeclined, nil
	}
	return types.BucketNone, nil
}

// PermittedActions returns the actions role may currently take on s.
func PermittedActions(s *types.Session, role types.Role) (types.ActionSet, error) {
	if err := s.CheckIntegrity(); err != nil {
		return 0, err
	}
	if !role.Valid() {
		return 0, types.ErrUnknownRole
	}

	var actions types.ActionSet
	if role == types.RoleMentor && s.Status == types.StatusPending {
		actions = actions.With(types.ActionApprove).With(types.ActionDecline)
	}
	if (s.Status == types.StatusApproved || s.Status == types.StatusCompleted) && s.MeetingURL != "" {
		actions = actions.With(types.ActionJoinMeeting)
	}
	if s.Status == types.StatusCompleted && !feedback.HasFeedback(s, role) {
		actions = actions.With(types.ActionProvideFeedback)
	}
	return actions, nil
}

// transitions lists the forward moves of the status machine. approved -> completed
// is performed by the backend only; clients observe it.
var transitions = map[types.Status][]types.Status{
	types.StatusPending:  {types.StatusApproved, types.StatusDeclined},
	types.StatusApproved: {types.StatusCompleted},
}

// CanTransition reports whether the status machine allows from -> to.
func CanTransition(from, to types.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status types.Status) bool {
	return status == types.StatusDeclined || status == types.StatusCompleted
}

// RoleFor resolves the role userID plays on s. When userID matches neither
// participant, fallback (the account's own role) is returned.
func RoleFor(s *types.Session, userID string, fallback types.Role) types.Role {
	switch {
	case userID == "":
		return fallback
	case s.Mentor.ID == userID:
		return types.RoleMentor
	case s.Mentee.ID == userID:
		return types.RoleMentee
	}
	return fallback
}

// Partition groups the well-formed sessions by bucket, keeping input order within
// each bucket. Malformed sessions are left out and reported as warnings sorted by
// session id; approved sessions already under way fall under types.BucketNone.
func Partition(sessions []types.Session, now time.Time) (map[types.Bucket][]types.Session, []types.IntegrityWarning) {
	groups := make(map[types.Bucket][]types.Session, len(types.Buckets)+1)
	for _, b := range types.Buckets {
		groups[b] = []types.Session{}
	}

	var warnings []types.IntegrityWarning
	for i := range sessions {
		bucket, err := Classify(&sessions[i], now)
		if err != nil {
			warnings = append(warnings, Warning(&sessions[i], err))
			continue
		}
		groups[bucket] = append(groups[bucket], sessions[i])
	}

	SortWarnings(warnings)
	return groups, warnings
}

// Warning converts a classification error into an integrity warning.
func Warning(s *types.Session, err error) types.IntegrityWarning {
	var malformed *types.MalformedSessionError
	if errors.As(err, &malformed) {
		return malformed.Warning()
	}
	return types.IntegrityWarning{SessionID: s.ID, Reason: err.Error()}
}

// SortWarnings orders warnings by session id, then reason.
func SortWarnings(warnings []types.IntegrityWarning) {
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].SessionID != warnings[j].SessionID {
			return warnings[i].SessionID < warnings[j].SessionID
		}
		return warnings[i].Reason < warnings[j].Reason
	})
}
