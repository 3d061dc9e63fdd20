package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"mentorhub/pkg/types"
)

// ListSessions returns every session visible to the account, unfiltered.
// A record that cannot be decoded is returned with only its id so the
// lifecycle evaluator reports it as malformed instead of failing the list.
func (c *Client) ListSessions(ctx context.Context) ([]types.Session, error) {
	var records []json.RawMessage
	if err := c.do(ctx, "list sessions", http.MethodGet, []string{"api", "sessions"}, nil, &records); err != nil {
		return nil, err
	}

	sessions := make([]types.Session, 0, len(records))
	for _, raw := range records {
		var session types.Session
		if err := json.Unmarshal(raw, &session); err != nil {
			var ref struct {
				ID string `json:"_id"`
			}
			_ = json.Unmarshal(raw, &ref)
			c.log.Warn("undecodable session record", zap.String("session_id", ref.ID), zap.Error(err))
			session = types.Session{ID: ref.ID}
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// GetSession fetches one session.
func (c *Client) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "get session", http.MethodGet, []string{"api", "sessions", id}, nil, &raw); err != nil {
		return nil, err
	}
	return decodeSession("get session", raw)
}

// RequestSession asks a mentor for a new session.
func (c *Client) RequestSession(ctx context.Context, req types.SessionRequest) (*types.Session, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.do(ctx, "request session", http.MethodPost, []string{"api", "sessions", "request"}, req, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return decodeSession("request session", raw)
}

// ApproveSession moves a pending session to approved. The returned session
// normally carries a meetingUrl, but its absence is not an error.
func (c *Client) ApproveSession(ctx context.Context, id string) (*types.Session, error) {
	return c.transition(ctx, "approve session", id, "approve", types.StatusApproved)
}

// DeclineSession moves a pending session to declined.
func (c *Client) DeclineSession(ctx context.Context, id string) (*types.Session, error) {
	return c.transition(ctx, "decline session", id, "decline", types.StatusDeclined)
}

func (c *Client) transition(ctx context.Context, op, id, verb string, target types.Status) (*types.Session, error) {
	var raw json.RawMessage
	if err := c.do(ctx, op, http.MethodPost, []string{"api", "sessions", id, verb}, struct{}{}, &raw); err != nil {
		return nil, err
	}
	session, err := decodeSession(op, raw)
	if err != nil {
		return nil, err
	}
	// FUNCTIONAL DISCOVERY: a 2xx carrying another status means somebody else moved
	// the session first; callers must re-fetch instead of trusting their copy
	if session.Status != "" && session.Status != target {
		return session, fmt.Errorf("%s: %w: status is %s", op, ErrStaleWrite, session.Status)
	}
	return session, nil
}

// SubmitFeedback records the account's rating of a completed session.
func (c *Client) SubmitFeedback(ctx context.Context, id string, in types.FeedbackInput) error {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}
	return c.do(ctx, "submit feedback", http.MethodPost, []string{"api", "sessions", id, "feedback"}, in, nil)
}

// TECHNICAL DISCOVERY: mutation endpoints answer with either the bare session or
// a {"session": ...} envelope depending on the backend version
func decodeSession(op string, raw json.RawMessage) (*types.Session, error) {
	var envelope struct {
		Session *types.Session `json:"session"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Session != nil {
		return envelope.Session, nil
	}

	var session types.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidResponse, err)
	}
	return &session, nil
}
