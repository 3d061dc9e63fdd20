package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mentorhub/pkg/types"
)

// AuthResult is the backend's answer to login and registration.
type AuthResult struct {
	Token string        `json:"token"`
	User  types.Account `json:"user"`
}

// Login exchanges credentials for a token. The returned client is not modified;
// use WithToken to act as the logged-in account.
func (c *Client) Login(ctx context.Context, creds types.Credentials) (*AuthResult, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var result AuthResult
	if err := c.do(ctx, "login", http.MethodPost, []string{"api", "auth", "login"}, creds, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("login: %w: missing token", ErrInvalidResponse)
	}
	return &result, nil
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, reg types.Registration) (*AuthResult, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	var result AuthResult
	if err := c.do(ctx, "register", http.MethodPost, []string{"api", "auth", "register"}, reg, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("register: %w: missing token", ErrInvalidResponse)
	}
	return &result, nil
}

// Me returns the account that owns the client's token.
func (c *Client) Me(ctx context.Context) (*types.Account, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}

	var account types.Account
	if err := c.do(ctx, "me", http.MethodGet, []string{"api", "auth", "me"}, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Identity is what the client can read from a token without asking the backend.
type Identity struct {
	UserID    string
	Role      types.Role
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry that has passed at now.
func (id Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt)
}

// ParseIdentity reads the claims of a JWT credential.
// TECHNICAL DISCOVERY: the signing key lives on the backend, so the signature is
// not verified here; the claims are only used to pre-fill local state and to spot
// expired credentials before a round trip
func ParseIdentity(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var id Identity
	for _, key := range []string{"userId", "id", "sub"} {
		if value, ok := claims[key].(string); ok && value != "" {
			id.UserID = value
			break
		}
	}
	if user, ok := claims["user"].(map[string]any); ok && id.UserID == "" {
		if value, ok := user["id"].(string); ok {
			id.UserID = value
		}
	}
	if role, ok := claims["role"].(string); ok {
		if parsed, err := types.ParseRole(role); err == nil {
			id.Role = parsed
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}
