package view

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"mentorhub/internal/dashboard"
	"mentorhub/internal/store"
	"mentorhub/pkg/types"
)

// Renderer writes view-models as aligned text.
type Renderer struct {
	w   io.Writer
	loc *time.Location
}

// NewRenderer renders to w with times shown in loc; nil means local time.
func NewRenderer(w io.Writer, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{w: w, loc: loc}
}

func (r *Renderer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(r.w, 0, 4, 2, ' ', 0)
}

// RenderDashboard writes the metrics summary, the trend and every bucket.
func (r *Renderer) RenderDashboard(v *dashboard.View) error {
	m := v.Metrics
	headingColor.Fprintf(r.w, "%s (%s)\n", v.Account.Name, v.Account.Role)
	fmt.Fprintln(r.w)

	tw := r.table()
	fmt.Fprintf(tw, "Total sessions\t%d\n", m.TotalSessions)
	fmt.Fprintf(tw, "Completed\t%d\n", m.Completed)
	fmt.Fprintf(tw, "Upcoming\t%d\n", m.Upcoming)
	fmt.Fprintf(tw, "Pending\t%d\n", m.Pending)
	fmt.Fprintf(tw, "Declined\t%d\n", m.Declined)
	fmt.Fprintf(tw, "Completion rate\t%s\n", FormatPercent(m.CompletionRate))
	fmt.Fprintf(tw, "Average rating\t%s (%d rated)\n", FormatRating(m.AverageRating), m.RatedSessions)
	fmt.Fprintf(tw, "Hours mentored\t%d\n", m.TotalHoursMentored)
	fmt.Fprintf(tw, "Feedback completion\t%s\n", FormatPercent(m.Feedback.Rate()))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(r.w)
	headingColor.Fprintln(r.w, "Monthly trend")
	tw = r.table()
	fmt.Fprintln(tw, "MONTH\tCOMPLETED\tUPCOMING")
	for _, p := range m.MonthlyTrend {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", p.Label, p.Completed, p.Upcoming)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, bucket := range types.Buckets {
		sessions := v.InBucket(bucket)
		fmt.Fprintln(r.w)
		headingColor.Fprintf(r.w, "%s (%d)\n", bucketTitle(bucket), v.Counts[bucket])
		if err := r.RenderSessions(sessions); err != nil {
			return err
		}
	}

	if len(v.Warnings) > 0 {
		fmt.Fprintln(r.w)
		warningColor.Fprintf(r.w, "%d session(s) excluded as malformed; run `mentorhub warnings` for details\n", len(v.Warnings))
	}
	return nil
}

func bucketTitle(b types.Bucket) string {
	switch b {
	case types.BucketPending:
		return "Pending requests"
	case types.BucketUpcoming:
		return "Upcoming sessions"
	case types.BucketCompleted:
		return "Completed sessions"
	case types.BucketDeclined:
		return "Declined sessions"
	}
	return string(b)
}

// RenderSessions writes one row per session.
func (r *Renderer) RenderSessions(sessions []dashboard.SessionView) error {
	if len(sessions) == 0 {
		mutedColor.Fprintln(r.w, "  no sessions")
		return nil
	}

	g := newGrid(r.w, "ID", "STATUS", "WITH", "WHEN", "ACTIONS", "FEEDBACK MISSING")
	for _, sv := range sessions {
		s := sv.Session
		with := s.Participant(sv.Role.Counterpart())
		g.add(
			plain(s.ID),
			statusChip(s.Status),
			plain(orDash(with.Name)),
			plain(FormatWindow(s.StartTime, s.EndTime, r.loc)),
			actionList(sv.Actions),
			plain(orDash(roleList(sv.MissingFeedback))))
	}
	return g.flush()
}

// RenderCalendar writes calendar entries in the order given.
func (r *Renderer) RenderCalendar(entries []dashboard.CalendarEntry) error {
	if len(entries) == 0 {
		mutedColor.Fprintln(r.w, "no approved or completed sessions")
		return nil
	}

	g := newGrid(r.w, "WHEN", "SESSION", "STATUS", "MEETING")
	for _, e := range entries {
		g.add(
			plain(FormatWindow(e.Session.StartTime, e.Session.EndTime, r.loc)),
			plain("Session with "+orDash(e.With.Name)),
			statusChip(e.Session.Status),
			plain(orDash(e.Session.MeetingURL)))
	}
	return g.flush()
}

// RenderAnalytics writes the backend's aggregates as served, plus the mentor
// summary when present.
func (r *Renderer) RenderAnalytics(report *dashboard.AnalyticsReport) error {
	a := report.Analytics
	headingColor.Fprintf(r.w, "Backend analytics for %s (%s)\n", report.Account.Name, report.Account.Role)
	fmt.Fprintln(r.w)

	tw := r.table()
	fmt.Fprintf(tw, "Total sessions\t%d\n", a.TotalSessions)
	fmt.Fprintf(tw, "Completion rate\t%s\n", FormatPercent(a.CompletionRate))
	fmt.Fprintf(tw, "Average rating\t%s\n", FormatRating(a.AverageRating))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(r.w)
	g := newGrid(r.w, "STATUS", "SESSIONS")
	for _, sc := range a.SessionsByStatus {
		g.add(statusChip(types.Status(sc.Name)), plain(strconv.Itoa(sc.Value)))
	}
	if err := g.flush(); err != nil {
		return err
	}

	if len(a.SessionsPerWeek) > 0 {
		fmt.Fprintln(r.w)
		tw = r.table()
		fmt.Fprintln(tw, "WEEK\tSESSIONS")
		for _, wc := range a.SessionsPerWeek {
			fmt.Fprintf(tw, "%s\t%d\n", wc.Week, wc.Sessions)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(a.Ratings) > 0 {
		fmt.Fprintln(r.w)
		tw = r.table()
		fmt.Fprintln(tw, "RATING\tCOUNT")
		for _, rc := range a.Ratings {
			fmt.Fprintf(tw, "%d\t%d\n", rc.Rating, rc.Count)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if report.Mentor == nil {
		return nil
	}
	st := report.Mentor.Stats
	fmt.Fprintln(r.w)
	headingColor.Fprintln(r.w, "Mentor summary")
	tw = r.table()
	fmt.Fprintf(tw, "Total sessions\t%d\n", st.TotalSessions)
	fmt.Fprintf(tw, "Upcoming\t%d\n", st.UpcomingSessions)
	fmt.Fprintf(tw, "Completed\t%d\n", st.CompletedSessions)
	fmt.Fprintf(tw, "Average rating\t%s\n", FormatRating(st.AverageRating))
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(report.Mentor.RecentSessions) == 0 {
		return nil
	}

	fmt.Fprintln(r.w)
	g = newGrid(r.w, "ID", "STATUS", "MENTEE", "WHEN")
	for _, s := range report.Mentor.RecentSessions {
		when := "-"
		if !s.StartTime.IsZero() && !s.EndTime.IsZero() {
			when = FormatWindow(s.StartTime, s.EndTime, r.loc)
		}
		g.add(plain(s.ID), statusChip(s.Status), plain(orDash(s.Mentee.Name)), plain(when))
	}
	return g.flush()
}

// RenderMentors writes the mentor directory.
func (r *Renderer) RenderMentors(mentors []types.MentorSummary) error {
	if len(mentors) == 0 {
		mutedColor.Fprintln(r.w, "no mentors found")
		return nil
	}

	tw := r.table()
	fmt.Fprintln(tw, "ID\tNAME\tRATING\tSESSIONS\tEXPERTISE")
	for _, m := range mentors {
		expertise := "-"
		if len(m.Expertise) > 0 {
			expertise = strings.Join(m.Expertise, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Name, FormatRating(m.AverageRating), m.TotalSessions, expertise)
	}
	return tw.Flush()
}

// RenderProfile writes the editable profile fields and the read-only rating.
func (r *Renderer) RenderProfile(p *types.Profile) error {
	tw := r.table()
	fmt.Fprintf(tw, "Name\t%s\n", orDash(p.Name))
	fmt.Fprintf(tw, "Email\t%s\n", orDash(p.Email))
	fmt.Fprintf(tw, "Role\t%s\n", orDash(string(p.Role)))
	timezone, local := p.EffectiveTimezone()
	if local {
		timezone += " (local, not saved)"
	}
	fmt.Fprintf(tw, "Timezone\t%s\n", timezone)
	fmt.Fprintf(tw, "Rating\t%s\n", FormatRating(p.AverageRating))
	days := p.Availability.Days()
	available := "-"
	if len(days) > 0 {
		available = strings.Join(days, ", ")
	}
	fmt.Fprintf(tw, "Available\t%s\n", available)
	fmt.Fprintf(tw, "Bio\t%s\n", orDash(p.Bio))
	return tw.Flush()
}

// RenderWarnings writes the integrity log.
func (r *Renderer) RenderWarnings(records []store.WarningRecord) error {
	if len(records) == 0 {
		mutedColor.Fprintln(r.w, "no integrity warnings")
		return nil
	}

	g := newGrid(r.w, "SESSION", "REASON", "SEEN", "LAST SEEN")
	for _, rec := range records {
		g.add(
			plain(rec.SessionID),
			colored(warningColor, rec.Reason),
			plain(strconv.Itoa(rec.Occurrences)),
			plain(rec.LastSeen.In(r.loc).Format(time.RFC3339)))
	}
	return g.flush()
}
