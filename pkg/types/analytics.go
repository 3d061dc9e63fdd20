package types

// WeeklyCount is one point of the backend's sessions-per-week series.
type WeeklyCount struct {
	Week     string `json:"week"`
	Sessions int    `json:"sessions"`
}

// StatusCount is one slice of the backend's sessions-by-status breakdown.
type StatusCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// RatingCount is how many feedback entries carry one rating value.
type RatingCount struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

// Analytics is the backend's aggregate report for the account.
// ARCHITECTURAL DISCOVERY: these figures are computed server side and are shown
// as reported; the locally derived metrics stay the source for dashboards
type Analytics struct {
	SessionsPerWeek  []WeeklyCount `json:"sessionsPerWeek"`
	SessionsByStatus []StatusCount `json:"sessionsByStatus"`
	Ratings          []RatingCount `json:"ratings"`
	TotalSessions    int           `json:"totalSessions"`
	AverageRating    float64       `json:"averageRating"`
	CompletionRate   float64       `json:"completionRate"`
}

// CountFor returns the by-status count reported for status, 0 when absent.
func (a *Analytics) CountFor(status Status) int {
	for _, sc := range a.SessionsByStatus {
		if Status(sc.Name) == status {
			return sc.Value
		}
	}
	return 0
}

// MentorStats are the headline figures of the backend's mentor dashboard.
type MentorStats struct {
	TotalSessions     int     `json:"totalSessions"`
	UpcomingSessions  int     `json:"upcomingSessions"`
	CompletedSessions int     `json:"completedSessions"`
	AverageRating     float64 `json:"averageRating"`
}

// MentorDashboard is the backend's mentor summary with the latest sessions.
type MentorDashboard struct {
	Stats          MentorStats `json:"stats"`
	RecentSessions []Session   `json:"recentSessions"`
}
