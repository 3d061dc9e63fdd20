// Package dashboard is the view-model layer: it fetches from the repository,
// derives buckets, actions and metrics with the pure core, and re-derives after
// every mutation. It keeps no session state between calls.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mentorhub/internal/client"
	"mentorhub/internal/feedback"
	"mentorhub/internal/lifecycle"
	"mentorhub/internal/metrics"
	"mentorhub/pkg/types"
)

// Repository is the part of the Session Repository Client the service uses.
type Repository interface {
	Me(ctx context.Context) (*types.Account, error)
	ListSessions(ctx context.Context) ([]types.Session, error)
	GetSession(ctx context.Context, id string) (*types.Session, error)
	ApproveSession(ctx context.Context, id string) (*types.Session, error)
	DeclineSession(ctx context.Context, id string) (*types.Session, error)
	SubmitFeedback(ctx context.Context, id string, in types.FeedbackInput) error
	RequestSession(ctx context.Context, req types.SessionRequest) (*types.Session, error)
	GetProfile(ctx context.Context) (*types.Profile, error)
	PutProfile(ctx context.Context, profile types.Profile) (*types.Profile, error)
	ListMentors(ctx context.Context) ([]types.MentorSummary, error)
	Analytics(ctx context.Context) (*types.Analytics, error)
	MentorDashboard(ctx context.Context) (*types.MentorDashboard, error)
}

// WarningRecorder persists integrity warnings.
type WarningRecorder interface {
	RecordWarnings(ctx context.Context, warnings []types.IntegrityWarning, seen time.Time) error
}

// Notifier tells connected views that a session changed and they should re-fetch.
type Notifier interface {
	SessionsChanged(sessionID string, userIDs ...string)
}

// Service derives views for the account behind its repository.
type Service struct {
	repo     Repository
	warnings WarningRecorder
	notifier Notifier
	now      func() time.Time
	log      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithWarningRecorder records every integrity warning raised while loading.
func WithWarningRecorder(r WarningRecorder) Option {
	return func(s *Service) { s.warnings = r }
}

// WithNotifier announces successful mutations.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log.Named("dashboard") }
}

// NewService builds a Service over repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		now:  time.Now,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionView is one well-formed session as seen by the current account.
type SessionView struct {
	Session         types.Session   `json:"session"`
	Bucket          types.Bucket    `json:"bucket"`
	Role            types.Role      `json:"role"`
	Actions         types.ActionSet `json:"actions"`
	MissingFeedback []types.Role    `json:"missingFeedback,omitempty"`
}

// View is everything a dashboard renders.
type View struct {
	Account     types.Account            `json:"account"`
	Profile     *types.Profile           `json:"profile,omitempty"`
	Sessions    []SessionView            `json:"sessions"`
	Counts      map[types.Bucket]int     `json:"counts"`
	Metrics     metrics.Metrics          `json:"metrics"`
	Warnings    []types.IntegrityWarning `json:"warnings"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// InBucket returns the sessions in bucket, in view order.
func (v *View) InBucket(bucket types.Bucket) []SessionView {
	out := []SessionView{}
	for _, sv := range v.Sessions {
		if sv.Bucket == bucket {
			out = append(out, sv)
		}
	}
	return out
}

// Load fetches the account, its sessions and profile concurrently and derives the view.
func (s *Service) Load(ctx context.Context) (*View, error) {
	var (
		account  *types.Account
		sessions []types.Session
		profile  *types.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = s.repo.Me(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = s.repo.ListSessions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = s.repo.GetProfile(gctx)
		// FUNCTIONAL DISCOVERY: accounts created before profiles existed have none yet
		if errors.Is(err, client.ErrNotFound) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := s.derive(*account, sessions)
	view.Profile = profile
	s.recordWarnings(ctx, view.Warnings, view.GeneratedAt)

	s.log.Debug("dashboard derived",
		zap.String("user", account.Key()),
		zap.Int("sessions", len(sessions)),
		zap.Int("warnings", len(view.Warnings)))
	return view, nil
}

// derive is the pure part of Load. Sessions are listed bucket by bucket in
// dashboard order, keeping fetch order within a bucket.
func (s *Service) derive(account types.Account, sessions []types.Session) *View {
	now := s.now()
	groups, warnings := lifecycle.Partition(sessions, now)
	if warnings == nil {
		warnings = []types.IntegrityWarning{}
	}

	view := &View{
		Account:     account,
		Sessions:    make([]SessionView, 0, len(sessions)),
		Counts:      make(map[types.Bucket]int, len(types.Buckets)),
		Metrics:     metrics.Compute(sessions, now).Metrics,
		Warnings:    warnings,
		GeneratedAt: now,
	}
	order := append(append([]types.Bucket{}, types.Buckets...), types.BucketNone)
	for _, bucket := range order {
		if bucket != types.BucketNone {
			view.Counts[bucket] = len(groups[bucket])
		}
		for i := range groups[bucket] {
			sv, err := s.sessionView(&groups[bucket][i], bucket, account)
			if err != nil {
				continue
			}
			view.Sessions = append(view.Sessions, sv)
		}
	}
	return view
}

func (s *Service) sessionView(session *types.Session, bucket types.Bucket, account types.Account) (SessionView, error) {
	role := lifecycle.RoleFor(session, account.Key(), account.Role)
	actions, err := lifecycle.PermittedActions(session, role)
	if err != nil {
		return SessionView{}, err
	}

	sv := SessionView{Session: *session, Bucket: bucket, Role: role, Actions: actions}
	if session.Status == types.StatusCompleted {
		sv.MissingFeedback = feedback.Missing(session)
	}
	return sv, nil
}

func (s *Service) recordWarnings(ctx context.Context, warnings []types.IntegrityWarning, seen time.Time) {
	if len(warnings) == 0 {
		return
	}
	for _, w := range warnings {
		s.log.Warn("session excluded from views", zap.String("session_id", w.SessionID), zap.String("reason", w.Reason))
	}
	if s.warnings == nil {
		return
	}
	if err := s.warnings.RecordWarnings(ctx, warnings, seen); err != nil {
		s.log.Error("failed to record integrity warnings", zap.Error(err))
	}
}

// CalendarEntry is an approved or completed session placed on the calendar.
type CalendarEntry struct {
	SessionView
	With types.Participant `json:"with"`
}

// Calendar lists approved and completed sessions in start-time order.
func (s *Service) Calendar(ctx context.Context) ([]CalendarEntry, error) {
	view, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	entries := []CalendarEntry{}
	for _, sv := range view.Sessions {
		if sv.Session.Status != types.StatusApproved && sv.Session.Status != types.StatusCompleted {
			continue
		}
		entries = append(entries, CalendarEntry{
			SessionView: sv,
			With:        sv.Session.Participant(sv.Role.Counterpart()),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Session.StartTime.Before(entries[j].Session.StartTime)
	})
	return entries, nil
}

// ActionResult is the outcome of a mutation.
type ActionResult struct {
	Session types.Session `json:"session"`
	// MeetingURLMissing is set when an approval succeeded without a meeting link.
	MeetingURLMissing bool `json:"meetingUrlMissing"`
	// NeedsRefetch is set when the write landed but the updated session could
	// not be read back; Session then holds the copy from before the write.
	NeedsRefetch bool `json:"needsRefetch,omitempty"`
}

// errRefetch wraps a failed read-back after a successful write.
var errRefetch = errors.New("session written but not re-fetched")

// Approve approves a pending session on behalf of its mentor.
func (s *Service) Approve(ctx context.Context, id string) (*ActionResult, error) {
	return s.act(ctx, id, types.ActionApprove, types.StatusApproved, s.repo.ApproveSession)
}

// Decline declines a pending session on behalf of its mentor.
func (s *Service) Decline(ctx context.Context, id string) (*ActionResult, error) {
	return s.act(ctx, id, types.ActionDecline, types.StatusDeclined, s.repo.DeclineSession)
}

// SubmitFeedback rates a completed session once per side.
func (s *Service) SubmitFeedback(ctx context.Context, id string, in types.FeedbackInput) (*ActionResult, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	return s.act(ctx, id, types.ActionProvideFeedback, "", func(ctx context.Context, id string) (*types.Session, error) {
		if err := s.repo.SubmitFeedback(ctx, id, in); err != nil {
			return nil, err
		}
		updated, err := s.repo.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errRefetch, err)
		}
		return updated, nil
	})
}

// act re-checks the precondition against a fresh copy of the session before
// mutating; the local copy a caller rendered from may be stale. A non-empty
// target is the status the mutation must move the session to.
func (s *Service) act(ctx context.Context, id string, action types.Action, target types.Status, mutate func(context.Context, string) (*types.Session, error)) (*ActionResult, error) {
	var (
		account *types.Account
		current *types.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = s.repo.Me(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = s.repo.GetSession(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	role := lifecycle.RoleFor(current, account.Key(), account.Role)
	actions, err := lifecycle.PermittedActions(current, role)
	if err != nil {
		return nil, err
	}
	if !actions.Has(action) {
		if target != "" && lifecycle.IsTerminal(current.Status) {
			return nil, fmt.Errorf("%w: session is %s and can no longer change", ErrActionUnavailable, current.Status)
		}
		return nil, fmt.Errorf("%w: cannot %s a %s session as %s", ErrActionUnavailable, action, current.Status, role)
	}
	if target != "" && !lifecycle.CanTransition(current.Status, target) {
		return nil, fmt.Errorf("%w: %s cannot move to %s", ErrActionUnavailable, current.Status, target)
	}

	result := &ActionResult{}
	updated, err := mutate(ctx, id)
	switch {
	case errors.Is(err, errRefetch):
		s.log.Warn("session written but re-fetch failed", zap.String("session_id", id), zap.Error(err))
		updated = current
		result.NeedsRefetch = true
	case errors.Is(err, client.ErrStaleWrite):
		return nil, fmt.Errorf("%w: %w", ErrActionUnavailable, err)
	case err != nil:
		return nil, err
	}
	if target != "" && (updated.Status != target || !lifecycle.CanTransition(current.Status, updated.Status)) {
		return nil, fmt.Errorf("%w: backend left session %s as %s", ErrActionUnavailable, id, updated.Status)
	}

	s.log.Info("session updated",
		zap.String("session_id", id),
		zap.String("action", string(action)),
		zap.String("status", string(updated.Status)))
	s.notify(current)

	result.Session = *updated
	result.MeetingURLMissing = action == types.ActionApprove && updated.MeetingURL == ""
	return result, nil
}

func (s *Service) notify(session *types.Session) {
	if s.notifier == nil {
		return
	}
	ids := make([]string, 0, 2)
	for _, id := range []string{session.Mentor.ID, session.Mentee.ID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	s.notifier.SessionsChanged(session.ID, ids...)
}

// RequestSession asks a mentor for a session; only mentees may request.
func (s *Service) RequestSession(ctx context.Context, req types.SessionRequest) (*types.Session, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	account, err := s.repo.Me(ctx)
	if err != nil {
		return nil, err
	}
	if account.Role != types.RoleMentee {
		return nil, fmt.Errorf("%w: only mentees request sessions", ErrRoleNotPermitted)
	}

	created, err := s.repo.RequestSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		sessionID := ""
		if created != nil {
			sessionID = created.ID
		}
		s.notifier.SessionsChanged(sessionID, req.MentorID, account.Key())
	}
	return created, nil
}

// Mentors returns the mentor directory sorted by rating, best first.
func (s *Service) Mentors(ctx context.Context) ([]types.MentorSummary, error) {
	mentors, err := s.repo.ListMentors(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(mentors, func(i, j int) bool {
		if mentors[i].AverageRating != mentors[j].AverageRating {
			return mentors[i].AverageRating > mentors[j].AverageRating
		}
		return mentors[i].Name < mentors[j].Name
	})
	return mentors, nil
}

// AnalyticsReport pairs the backend's analytics with, for mentors, the
// backend's mentor dashboard summary.
type AnalyticsReport struct {
	Account   types.Account          `json:"account"`
	Analytics *types.Analytics       `json:"analytics"`
	Mentor    *types.MentorDashboard `json:"mentor,omitempty"`
}

// Analytics fetches the backend's own aggregates. They are reported as served
// and never feed the derived dashboard.
func (s *Service) Analytics(ctx context.Context) (*AnalyticsReport, error) {
	report := &AnalyticsReport{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		account, err := s.repo.Me(gctx)
		if err != nil {
			return err
		}
		report.Account = *account
		if account.Role != types.RoleMentor {
			return nil
		}
		report.Mentor, err = s.repo.MentorDashboard(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		report.Analytics, err = s.repo.Analytics(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// Profile returns the account's profile.
func (s *Service) Profile(ctx context.Context) (*types.Profile, error) {
	return s.repo.GetProfile(ctx)
}

// EditProfile fetches the profile, applies edit and writes it back wholesale.
func (s *Service) EditProfile(ctx context.Context, edit func(*types.Profile) error) (*types.Profile, error) {
	profile, err := s.repo.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	if err := edit(profile); err != nil {
		return nil, err
	}
	return s.repo.PutProfile(ctx, *profile)
}
