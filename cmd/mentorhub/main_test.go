package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	fcolor "github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorhub/internal/client"
	"mentorhub/internal/dashboard"
	"mentorhub/pkg/types"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	fcolor.NoColor = true
	os.Exit(m.Run())
}

// backend is a fake MentorHub API serving one account whose role tests may switch.
type backend struct {
	mu       sync.Mutex
	role     string
	token    string
	sessions map[string]map[string]any
	profile  map[string]any
	requests int
}

func newBackend(role string) *backend {
	mentor := map[string]any{"_id": "m1", "name": "Maya"}
	mentee := map[string]any{"_id": "e1", "name": "Eli"}
	return &backend{
		role:  role,
		token: "tok-1",
		sessions: map[string]map[string]any{
			"p1": {"_id": "p1", "mentor": mentor, "mentee": mentee, "status": "pending",
				"startTime": "2024-06-20T10:00:00Z", "endTime": "2024-06-20T11:00:00Z"},
			"c1": {"_id": "c1", "mentor": mentor, "mentee": mentee, "status": "completed",
				"startTime": "2024-06-01T10:00:00Z", "endTime": "2024-06-01T11:30:00Z"},
			"bad": {"_id": "bad", "mentor": mentor, "mentee": mentee, "status": "approved"},
		},
		profile: map[string]any{"name": "Maya", "email": "maya@example.com", "role": role},
	}
}

func (b *backend) account() map[string]any {
	if b.role == "mentee" {
		return map[string]any{"_id": "e1", "name": "Eli", "email": "eli@example.com", "role": "mentee"}
	}
	return map[string]any{"_id": "m1", "name": "Maya", "email": "maya@example.com", "role": "mentor"}
}

func (b *backend) handler() http.Handler {
	writeJSON := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}

	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds types.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": b.token, "user": b.account()})
	})
	r.Post("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var reg types.Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)
		writeJSON(w, http.StatusCreated, map[string]any{"token": b.token, "user": map[string]any{
			"_id": "n1", "name": reg.Name, "email": reg.Email, "role": reg.Role,
		}})
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer "+b.token {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is not valid"})
					return
				}
				next.ServeHTTP(w, r)
			})
		})
		r.Get("/api/auth/me", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, b.account())
		})
		r.Get("/api/sessions", func(w http.ResponseWriter, _ *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := []map[string]any{b.sessions["p1"], b.sessions["c1"], b.sessions["bad"]}
			writeJSON(w, http.StatusOK, list)
		})
		r.Get("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			s, ok := b.sessions[chi.URLParam(r, "id")]
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"message": "Session not found"})
				return
			}
			writeJSON(w, http.StatusOK, s)
		})
		r.Post("/api/sessions/{id}/{verb}", func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			s := b.sessions[chi.URLParam(r, "id")]
			switch chi.URLParam(r, "verb") {
			case "approve":
				s["status"] = "approved"
				s["meetingUrl"] = "https://meet.example/" + chi.URLParam(r, "id")
			case "decline":
				s["status"] = "declined"
			case "feedback":
				var in types.FeedbackInput
				_ = json.NewDecoder(r.Body).Decode(&in)
				s["feedback"] = []map[string]any{{"from": b.role, "rating": in.Rating, "comment": in.Comment}}
			}
			writeJSON(w, http.StatusOK, s)
		})
		r.Post("/api/sessions/request", func(w http.ResponseWriter, _ *http.Request) {
			b.mu.Lock()
			b.requests++
			b.mu.Unlock()
			writeJSON(w, http.StatusCreated, map[string]any{"_id": "r1", "status": "pending"})
		})
		r.Get("/api/profiles/me", func(w http.ResponseWriter, _ *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			writeJSON(w, http.StatusOK, b.profile)
		})
		r.Put("/api/profiles/me", func(w http.ResponseWriter, r *http.Request) {
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			b.mu.Lock()
			defer b.mu.Unlock()
			b.profile = in
			writeJSON(w, http.StatusOK, in)
		})
		r.Get("/api/analytics", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"sessionsByStatus": []map[string]any{{"name": "pending", "value": 1}, {"name": "completed", "value": 1}},
				"totalSessions":    2,
				"averageRating":    4,
				"completionRate":   0.5,
			})
		})
		r.Get("/api/sessions/mentor/dashboard", func(w http.ResponseWriter, _ *http.Request) {
			if b.role != "mentor" {
				writeJSON(w, http.StatusForbidden, map[string]string{"message": "Mentors only"})
				return
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{
				"stats":          map[string]any{"totalSessions": 2, "upcomingSessions": 0, "completedSessions": 1, "averageRating": 4},
				"recentSessions": []map[string]any{b.sessions["c1"]},
			})
		})
		r.Get("/api/profiles/mentors", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{{"_id": "m1", "name": "Maya", "averageRating": 4.5, "totalSessions": 3}})
		})
	})
	return r
}

type harness struct {
	t       *testing.T
	backend *backend
	server  *httptest.Server
}

func newHarness(t *testing.T, role string) *harness {
	t.Helper()
	t.Setenv("MENTORHUB_STORE_PATH", filepath.Join(t.TempDir(), "mentorhub.db"))
	t.Setenv("MENTORHUB_LOG_LEVEL", "error")

	b := newBackend(role)
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)
	return &harness{t: t, backend: b, server: server}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	c := newCLI(strings.NewReader(stdin), &stdout, &stderr)
	c.now = func() time.Time { return testNow }

	cmd := newRootCmd(c)
	cmd.SetArgs(append(args, "--api-url", h.server.URL))
	err := cmd.Execute()
	return stdout.String() + stderr.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	out, err := h.run("secret\n", "login", "--email", "maya@example.com")
	require.NoError(h.t, err)
	require.Contains(h.t, out, "Logged in as")
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t, "mentor")

	_, err := h.run("wrong\n", "login", "--email", "maya@example.com")
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	_, err = h.run("secret\n", "login")
	assert.ErrorContains(t, err, "required flag")

	out, err := h.run("secret\n", "login", "--email", "maya@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Maya (mentor)")

	out, err = h.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "maya@example.com")
	assert.Contains(t, out, h.server.URL)

	out, err = h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = h.run("", "sessions")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestRegister(t *testing.T) {
	h := newHarness(t, "mentee")

	_, err := h.run("secret\n", "register", "--name", "Eli", "--email", "eli@example.com", "--role", "admin")
	assert.ErrorIs(t, err, types.ErrUnknownRole)

	_, err = h.run("123\n", "register", "--name", "Eli", "--email", "eli@example.com", "--role", "mentee")
	assert.ErrorIs(t, err, types.ErrInvalidRegistration, "password too short")

	out, err := h.run("secret\n", "register", "--name", "Eli", "--email", "eli@example.com", "--role", "Mentee")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Eli (mentee)")
}

func TestExpiredTokenIsRejectedLocally(t *testing.T) {
	h := newHarness(t, "mentor")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "m1",
		"role":   "mentor",
		"exp":    testNow.Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	h.backend.token = token

	h.login()
	_, err = h.run("", "dashboard")
	assert.ErrorIs(t, err, errNotLoggedIn)
	assert.ErrorContains(t, err, "expired")
}

func TestDashboardAndSessions(t *testing.T) {
	h := newHarness(t, "mentor")
	h.login()

	out, err := h.run("", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Maya (mentor)")
	assert.Contains(t, out, "Pending requests (1)")
	assert.Contains(t, out, "Completed sessions (1)")
	assert.Regexp(t, `Hours mentored\s+2\n`, out)
	assert.Contains(t, out, "1 session(s) excluded as malformed")

	out, err = h.run("", "sessions", "--bucket", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "p1")
	assert.NotContains(t, out, "c1")
	assert.Contains(t, out, "approve,decline")

	_, err = h.run("", "sessions", "--bucket", "archived")
	assert.ErrorIs(t, err, types.ErrUnknownBucket)

	out, err = h.run("", "warnings")
	require.NoError(t, err)
	assert.Contains(t, out, "bad")
	assert.Contains(t, out, "missing or invalid startTime")

	out, err = h.run("", "warnings", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 integrity warning(s)")
}

func TestApproveDeclineAndFeedback(t *testing.T) {
	h := newHarness(t, "mentor")
	h.login()

	out, err := h.run("", "approve", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Session p1 approved")
	assert.Contains(t, out, "https://meet.example/p1")

	_, err = h.run("", "decline", "p1")
	assert.ErrorIs(t, err, dashboard.ErrActionUnavailable)

	_, err = h.run("", "approve")
	assert.Error(t, err)

	_, err = h.run("", "feedback", "c1", "--rating", "9", "--comment", "great")
	assert.ErrorIs(t, err, types.ErrInvalidFeedback)

	out, err = h.run("", "feedback", "c1", "--rating", "5", "--comment", "great mentee")
	require.NoError(t, err)
	assert.Contains(t, out, "Feedback recorded for session c1")

	_, err = h.run("", "feedback", "c1", "--rating", "4", "--comment", "again")
	assert.ErrorIs(t, err, dashboard.ErrActionUnavailable)

	out, err = h.run("", "calendar")
	require.NoError(t, err)
	assert.Contains(t, out, "Session with Eli")
}

func TestRequestSession(t *testing.T) {
	h := newHarness(t, "mentor")
	h.login()

	args := []string{"request", "--mentor", "m2", "--start", "2024-07-01T10:00:00Z", "--end", "2024-07-01T11:00:00Z"}
	_, err := h.run("", args...)
	assert.ErrorIs(t, err, dashboard.ErrRoleNotPermitted)

	h.backend.role = "mentee"
	out, err := h.run("", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Session r1 requested")
	assert.Equal(t, 1, h.backend.requests)

	_, err = h.run("", "request", "--mentor", "m2", "--start", "tomorrow", "--end", "2024-07-01T11:00:00Z")
	assert.ErrorIs(t, err, types.ErrInvalidSessionRequest)
}

func TestMentorsAndProfile(t *testing.T) {
	h := newHarness(t, "mentor")
	h.login()

	out, err := h.run("", "mentors")
	require.NoError(t, err)
	assert.Contains(t, out, "Maya")
	assert.Contains(t, out, "4.5")

	out, err = h.run("", "profile", "set", "--timezone", "Europe/Oslo", "--available", "mon,fri")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile updated")
	assert.Contains(t, out, "Monday, Friday")
	assert.Equal(t, "Maya", h.backend.profile["name"], "unchanged fields are written back")
	assert.Equal(t, "Europe/Oslo", h.backend.profile["timezone"])
	assert.Len(t, h.backend.profile["availability"], 7)

	_, err = h.run("", "profile", "set", "--available", "someday")
	assert.ErrorIs(t, err, types.ErrInvalidProfile)

	out, err = h.run("", "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Europe/Oslo")
}

func TestAnalyticsCommand(t *testing.T) {
	h := newHarness(t, "mentor")
	h.login()

	out, err := h.run("", "analytics")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend analytics for Maya (mentor)")
	assert.Regexp(t, `Completion rate\s+50%`, out)
	assert.Contains(t, out, "Mentor summary")
	assert.Contains(t, out, "c1")

	h.backend.role = "mentee"
	out, err = h.run("", "analytics")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend analytics for Eli (mentee)")
	assert.NotContains(t, out, "Mentor summary")
}

func TestProfileSet_DefaultsTimezoneToLocal(t *testing.T) {
	t.Setenv("TZ", "America/Chicago")
	h := newHarness(t, "mentor")
	h.login()

	out, err := h.run("", "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "America/Chicago (local, not saved)")

	out, err = h.run("", "profile", "set", "--bio", "Go mentor")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile updated")
	assert.Equal(t, "America/Chicago", h.backend.profile["timezone"])
	assert.NotContains(t, out, "not saved")
}

func TestParseTime(t *testing.T) {
	got, err := parseTime("2024-07-01T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, time.July, 1, 10, 0, 0, 0, time.UTC)))

	got, err = parseTime("2024-07-01 10:00")
	require.NoError(t, err)
	assert.Equal(t, time.Local, got.Location())

	_, err = parseTime("next week")
	assert.ErrorIs(t, err, types.ErrInvalidSessionRequest)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errNotLoggedIn)
	assert.Contains(t, buf.String(), "mentorhub login")

	buf.Reset()
	printError(&buf, &client.APIError{Op: "approve session", StatusCode: 409, Message: "Already approved"})
	assert.Contains(t, buf.String(), "Already approved")

	buf.Reset()
	printError(&buf, errors.Join(dashboard.ErrActionUnavailable))
	assert.Contains(t, buf.String(), "mentorhub sessions")
}
