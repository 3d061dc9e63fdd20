package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mentorhub/internal/dashboard"
	"mentorhub/internal/store"
	"mentorhub/pkg/types"
)

func newSessionsCmd(c *cli) *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, optionally one bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter types.Bucket
			if bucket != "" {
				parsed, err := types.ParseBucket(bucket)
				if err != nil {
					return err
				}
				filter = parsed
			}

			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				v, err := svc.Load(cmd.Context())
				if err != nil {
					return err
				}
				sessions := v.Sessions
				if filter != "" {
					sessions = v.InBucket(filter)
				}
				if err := c.renderer().RenderSessions(sessions); err != nil {
					return err
				}
				if len(v.Warnings) > 0 {
					c.warn("%d malformed session(s) hidden; see `mentorhub warnings`", len(v.Warnings))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "pending, upcoming, completed or declined")
	return cmd
}

func newDashboardCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show session metrics and every bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				v, err := svc.Load(cmd.Context())
				if err != nil {
					return err
				}
				return c.renderer().RenderDashboard(v)
			})
		},
	}
}

func newAnalyticsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show the backend's analytics report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				report, err := svc.Analytics(cmd.Context())
				if err != nil {
					return err
				}
				return c.renderer().RenderAnalytics(report)
			})
		},
	}
}

func newCalendarCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "List approved and completed sessions in time order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				entries, err := svc.Calendar(cmd.Context())
				if err != nil {
					return err
				}
				return c.renderer().RenderCalendar(entries)
			})
		},
	}
}

func newApproveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "approve SESSION_ID",
		Short: "Approve a pending session request (mentors)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				result, err := svc.Approve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				c.success("Session %s approved", result.Session.ID)
				if result.MeetingURLMissing {
					c.warn("no meeting link was issued for this session")
				} else {
					fmt.Fprintf(c.stdout, "  meeting: %s\n", result.Session.MeetingURL)
				}
				return nil
			})
		},
	}
}

func newDeclineCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "decline SESSION_ID",
		Short: "Decline a pending session request (mentors)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				result, err := svc.Decline(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				c.success("Session %s declined", result.Session.ID)
				return nil
			})
		},
	}
}

func newFeedbackCmd(c *cli) *cobra.Command {
	var rating int
	var comment string
	cmd := &cobra.Command{
		Use:   "feedback SESSION_ID",
		Short: "Rate a completed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				result, err := svc.SubmitFeedback(cmd.Context(), args[0], types.FeedbackInput{Rating: rating, Comment: comment})
				if err != nil {
					return err
				}
				c.success("Feedback recorded for session %s", result.Session.ID)
				if result.NeedsRefetch {
					c.warn("could not reload the session; run `mentorhub sessions` to see it")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5")
	cmd.Flags().StringVar(&comment, "comment", "", "feedback comment")
	_ = cmd.MarkFlagRequired("rating")
	_ = cmd.MarkFlagRequired("comment")
	return cmd
}

// timeLayouts accepts RFC 3339 or a local wall-clock time.
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse time %q (use 2006-01-02T15:04 or RFC 3339)", types.ErrInvalidSessionRequest, value)
}

func newRequestCmd(c *cli) *cobra.Command {
	var mentorID, start, end, notes string
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a session with a mentor (mentees)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startTime, err := parseTime(start)
			if err != nil {
				return err
			}
			endTime, err := parseTime(end)
			if err != nil {
				return err
			}

			return c.withService(cmd.Context(), func(svc *dashboard.Service, _ *store.Store) error {
				created, err := svc.RequestSession(cmd.Context(), types.SessionRequest{
					MentorID:  mentorID,
					StartTime: startTime,
					EndTime:   endTime,
					Notes:     notes,
				})
				if err != nil {
					return err
				}
				if created != nil && created.ID != "" {
					c.success("Session %s requested; waiting for the mentor", created.ID)
					return nil
				}
				c.success("Session requested; waiting for the mentor")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mentorID, "mentor", "", "mentor id (see `mentorhub mentors`)")
	cmd.Flags().StringVar(&start, "start", "", "start time")
	cmd.Flags().StringVar(&end, "end", "", "end time")
	cmd.Flags().StringVar(&notes, "notes", "", "what you would like to discuss")
	for _, flag := range []string{"mentor", "start", "end"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}
