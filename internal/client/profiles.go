package client

import (
	"context"
	"net/http"

	"mentorhub/pkg/types"
)

// GetProfile returns the account's profile.
func (c *Client) GetProfile(ctx context.Context) (*types.Profile, error) {
	var profile types.Profile
	if err := c.do(ctx, "get profile", http.MethodGet, []string{"api", "profiles", "me"}, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// PutProfile replaces the account's profile wholesale and returns the stored copy.
func (c *Client) PutProfile(ctx context.Context, profile types.Profile) (*types.Profile, error) {
	profile.Bio = types.StripMarkup(profile.Bio)
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	var stored types.Profile
	if err := c.do(ctx, "put profile", http.MethodPut, []string{"api", "profiles", "me"}, profile, &stored); err != nil {
		return nil, err
	}
	if stored.Name == "" {
		return &profile, nil
	}
	return &stored, nil
}

// ListMentors returns the mentor directory.
func (c *Client) ListMentors(ctx context.Context) ([]types.MentorSummary, error) {
	var mentors []types.MentorSummary
	if err := c.do(ctx, "list mentors", http.MethodGet, []string{"api", "profiles", "mentors"}, nil, &mentors); err != nil {
		return nil, err
	}
	if mentors == nil {
		mentors = []types.MentorSummary{}
	}
	return mentors, nil
}
