// Package client is the Session Repository Client: request/response mapping for
// the MentorHub REST API with no business logic of its own.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds a single request when Options.Timeout is zero.
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 4 << 20
	requestIDHeader  = "X-Request-ID"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *zap.Logger
	// HTTPClient overrides the base transport; the bearer token is layered on top.
	HTTPClient *http.Client
}

// Client talks to the backend on behalf of one credential. It is safe for
// concurrent use; WithToken derives a client for another credential.
type Client struct {
	baseURL *url.URL
	token   string
	base    *http.Client
	httpc   *http.Client
	log     *zap.Logger
}

// New validates the options and builds a Client.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, opts.BaseURL)
	}

	base := opts.HTTPClient
	if base == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		base = &http.Client{Timeout: timeout}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{baseURL: u, base: base, log: log.Named("client")}
	c.setToken(opts.Token)
	return c, nil
}

// WithToken returns a client that shares this client's configuration but
// authenticates with token.
func (c *Client) WithToken(token string) *Client {
	clone := &Client{baseURL: c.baseURL, base: c.base, log: c.log}
	clone.setToken(token)
	return clone
}

// Token returns the credential the client authenticates with.
func (c *Client) Token() string {
	return c.token
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// TECHNICAL DISCOVERY: oauth2.Transport sets the Authorization header on every
// request, so the token never has to be threaded through individual calls
func (c *Client) setToken(token string) {
	c.token = strings.TrimSpace(token)
	if c.token == "" {
		c.httpc = c.base
		return
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"})
	c.httpc = oauth2.NewClient(ctx, src)
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.JoinPath(escaped...).String()
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do sends one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method string, path []string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path...), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %w", op, ErrTransport, err)
	}

	c.log.Debug("request completed",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("request_id", requestID))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(op, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidResponse, err)
	}
	return nil
}

func newAPIError(op string, status int, data []byte) *APIError {
	apiErr := &APIError{Op: op, StatusCode: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
