package client

import (
	"context"
	"net/http"

	"mentorhub/pkg/types"
)

// Analytics fetches the backend's aggregate report for the account.
func (c *Client) Analytics(ctx context.Context) (*types.Analytics, error) {
	var analytics types.Analytics
	if err := c.do(ctx, "analytics", http.MethodGet, []string{"api", "analytics"}, nil, &analytics); err != nil {
		return nil, err
	}
	if analytics.SessionsPerWeek == nil {
		analytics.SessionsPerWeek = []types.WeeklyCount{}
	}
	if analytics.SessionsByStatus == nil {
		analytics.SessionsByStatus = []types.StatusCount{}
	}
	if analytics.Ratings == nil {
		analytics.Ratings = []types.RatingCount{}
	}
	return &analytics, nil
}

// MentorDashboard fetches the mentor summary. Mentee tokens are refused by the backend.
func (c *Client) MentorDashboard(ctx context.Context) (*types.MentorDashboard, error) {
	var dash types.MentorDashboard
	if err := c.do(ctx, "mentor dashboard", http.MethodGet, []string{"api", "sessions", "mentor", "dashboard"}, nil, &dash); err != nil {
		return nil, err
	}
	if dash.RecentSessions == nil {
		dash.RecentSessions = []types.Session{}
	}
	return &dash, nil
}
