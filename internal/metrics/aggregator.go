// Package metrics reduces a session collection into dashboard statistics.
package metrics

import (
	"math"
	"time"

	"mentorhub/internal/feedback"
	"mentorhub/internal/lifecycle"
	"mentorhub/pkg/types"
)

// TrendMonths is the length of the monthly trend window.
const TrendMonths = 6

// TrendPoint holds the sessions that start in one calendar month.
type TrendPoint struct {
	Year      int        `json:"year"`
	Month     time.Month `json:"month"`
	Label     string     `json:"label"`
	Completed int        `json:"completed"`
	Upcoming  int        `json:"upcoming"`
}

// Metrics is the summary of a session collection. Rates and averages are unrounded.
type Metrics struct {
	TotalSessions        int                     `json:"totalSessions"`
	Completed            int                     `json:"completed"`
	Upcoming             int                     `json:"upcoming"`
	Pending              int                     `json:"pending"`
	Declined             int                     `json:"declined"`
	CompletionRate       float64                 `json:"completionRate"`
	AverageRating        float64                 `json:"averageRating"`
	RatedSessions        int                     `json:"ratedSessions"`
	TotalMinutesMentored int64                   `json:"totalMinutesMentored"`
	TotalHoursMentored   int64                   `json:"totalHoursMentored"`
	MonthlyTrend         [TrendMonths]TrendPoint `json:"monthlyTrend"`
	Feedback             feedback.Completion     `json:"feedback"`
}

// Result pairs the metrics with the records that had to be skipped.
type Result struct {
	Metrics  Metrics                  `json:"metrics"`
	Warnings []types.IntegrityWarning `json:"warnings"`
}

// Compute derives Metrics from sessions at now in a single pass. Malformed
// sessions are excluded from every figure and listed in Result.Warnings. The
// result does not depend on input order.
func Compute(sessions []types.Session, now time.Time) Result {
	var (
		m           Metrics
		warnings    = []types.IntegrityWarning{}
		ratingSum   int
		ratingCount int
	)
	m.MonthlyTrend = trendWindow(now)

	for i := range sessions {
		s := &sessions[i]
		bucket, err := lifecycle.Classify(s, now)
		if err != nil {
			warnings = append(warnings, lifecycle.Warning(s, err))
			continue
		}

		m.TotalSessions++
		switch s.Status {
		case types.StatusPending:
			m.Pending++
		case types.StatusDeclined:
			m.Declined++
		case types.StatusCompleted:
			m.Completed++
			m.TotalMinutesMentored += int64(s.Duration() / time.Minute)
			if f, ok := feedback.Entry(s, types.RoleMentee); ok && validRating(f.Rating) {
				ratingSum += f.Rating
				ratingCount++
			}
		}
		if bucket == types.BucketUpcoming {
			m.Upcoming++
		}
		m.Feedback.Observe(s)

		if slot := trendSlot(m.MonthlyTrend, s.StartTime.In(now.Location())); slot >= 0 {
			switch bucket {
			case types.BucketCompleted:
				m.MonthlyTrend[slot].Completed++
			case types.BucketUpcoming:
				m.MonthlyTrend[slot].Upcoming++
			}
		}
	}

	if m.TotalSessions > 0 {
		m.CompletionRate = float64(m.Completed) / float64(m.TotalSessions)
	}
	if ratingCount > 0 {
		m.AverageRating = float64(ratingSum) / float64(ratingCount)
	}
	m.RatedSessions = ratingCount
	m.TotalHoursMentored = int64(math.Round(float64(m.TotalMinutesMentored) / 60))

	lifecycle.SortWarnings(warnings)
	return Result{Metrics: m, Warnings: warnings}
}

func validRating(r int) bool {
	return r >= 1 && r <= 5
}

// trendWindow returns the six calendar months ending at now's month, oldest first.
func trendWindow(now time.Time) [TrendMonths]TrendPoint {
	var window [TrendMonths]TrendPoint
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := range window {
		month := first.AddDate(0, i-(TrendMonths-1), 0)
		window[i] = TrendPoint{
			Year:  month.Year(),
			Month: month.Month(),
			Label: month.Format("Jan 2006"),
		}
	}
	return window
}

func trendSlot(window [TrendMonths]TrendPoint, t time.Time) int {
	for i, point := range window {
		if point.Year == t.Year() && point.Month == t.Month() {
			return i
		}
	}
	return -1
}
