package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"mentorhub/internal/client"
	"mentorhub/internal/dashboard"
	"mentorhub/internal/store"
	"mentorhub/pkg/types"
)

// ServiceFactory builds a dashboard service acting with the caller's bearer token.
type ServiceFactory func(token string) *dashboard.Service

// WarningStore is the integrity log the gateway exposes.
type WarningStore interface {
	ListWarnings(ctx context.Context) ([]store.WarningRecord, error)
	HealthCheck(ctx context.Context) error
}

// Registry reports live websocket subscribers.
type Registry interface {
	GetStats() map[string]int
}

// Options configures the gateway.
type Options struct {
	Services       ServiceFactory
	Store          WarningStore
	Registry       Registry
	WebSocket      http.Handler
	AllowedOrigins []string
	// MutationsPerMinute caps POST and PUT calls per bearer token; zero disables the cap.
	// Each remote address may make addressCapFactor times as many.
	MutationsPerMinute int
	Logger             *zap.Logger
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between browser views and the dashboard service
// No derivation happens here, only HTTP handling and JSON serialization
type Server struct {
	services ServiceFactory
	store    WarningStore
	registry Registry
	limiter  *rateLimiter
	addrs    *rateLimiter
	router   chi.Router
	handler  http.Handler
	log      *zap.Logger
}

// addressCapFactor bounds how many tokens' worth of mutations one remote address
// may send, so unverified tokens cannot be rotated past the cap.
const addressCapFactor = 5

// NewServer wires routes and middleware.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		services: opts.Services,
		store:    opts.Store,
		registry: opts.Registry,
		router:   chi.NewRouter(),
		log:      log.Named("api"),
	}
	if opts.MutationsPerMinute > 0 {
		s.limiter = newRateLimiter(opts.MutationsPerMinute, time.Minute)
		s.addrs = newRateLimiter(addressCapFactor*opts.MutationsPerMinute, time.Minute)
	}
	s.setupRoutes(opts.WebSocket)

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(s.router)
	return s
}

func (s *Server) setupRoutes(ws http.Handler) {
	s.router.Use(s.logRequests)
	s.router.Get("/health", s.healthCheck)
	if ws != nil {
		s.router.Handle("/ws", ws)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(jsonMiddleware)
		r.Get("/dashboard", s.withService(s.getDashboard))
		r.Get("/calendar", s.withService(s.getCalendar))
		r.Get("/sessions", s.withService(s.listSessions))
		r.Get("/profile", s.withService(s.getProfile))
		r.Get("/mentors", s.withService(s.listMentors))
		r.Get("/analytics", s.withService(s.getAnalytics))
		r.Get("/integrity/warnings", s.withService(s.listWarnings))

		r.Group(func(r chi.Router) {
			r.Use(s.limitMutations)
			r.Post("/sessions/request", s.withService(s.requestSession))
			r.Post("/sessions/{id}/approve", s.withService(s.approveSession))
			r.Post("/sessions/{id}/decline", s.withService(s.declineSession))
			r.Post("/sessions/{id}/feedback", s.withService(s.submitFeedback))
			r.Put("/profile", s.withService(s.putProfile))
		})
	})
}

// FUNCTIONAL DISCOVERY: Implement http.Handler interface for integration with standard HTTP server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// limitMutations rejects callers that exceed the mutation cap with 429. Both the
// remote address and the token are charged. Requests without a token fall
// through so withService can answer 401.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if s.limiter != nil && token != "" {
			addr := remoteHost(r)
			if !s.addrs.Allow(addr) || !s.limiter.Allow(token) {
				s.log.Warn("mutation rate limit exceeded",
					zap.String("path", r.URL.Path),
					zap.String("remote", addr))
				s.sendError(w, "Too many changes; try again in a minute", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

type serviceHandler func(w http.ResponseWriter, r *http.Request, svc *dashboard.Service)

// withService forwards the caller's bearer token to the backend; the gateway
// holds no credentials of its own.
func (s *Server) withService(next serviceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.sendError(w, "Bearer token required", http.StatusUnauthorized)
			return
		}
		next(w, r, s.services(token))
	}
}

// Response types for JSON serialization
type SessionsResponse struct {
	Sessions []dashboard.SessionView  `json:"sessions"`
	Counts   map[types.Bucket]int     `json:"counts"`
	Warnings []types.IntegrityWarning `json:"warnings"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Store       string         `json:"store"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	view, err := svc.Load(r.Context())
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, view)
}

func (s *Server) getCalendar(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	entries, err := svc.Calendar(r.Context())
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// FUNCTIONAL DISCOVERY: GET /api/sessions?bucket= filters to one display bucket
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	var bucket types.Bucket
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		parsed, err := types.ParseBucket(raw)
		if err != nil {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		bucket = parsed
	}

	view, err := svc.Load(r.Context())
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	sessions := view.Sessions
	if bucket != "" {
		sessions = view.InBucket(bucket)
	}
	s.sendJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions, Counts: view.Counts, Warnings: view.Warnings})
}

func (s *Server) requestSession(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	var req types.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	created, err := svc.RequestSession(r.Context(), req)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, map[string]any{"session": created})
}

func (s *Server) approveSession(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	result, err := svc.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

func (s *Server) declineSession(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	result, err := svc.Decline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

func (s *Server) submitFeedback(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	var in types.FeedbackInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	result, err := svc.SubmitFeedback(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	profile, err := svc.Profile(r.Context())
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, profile)
}

// FUNCTIONAL DISCOVERY: only editable fields are taken from the body; email, role
// and rating are echoed from the backend copy
func (s *Server) putProfile(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	var in types.Profile
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	updated, err := svc.EditProfile(r.Context(), func(p *types.Profile) error {
		p.Name = in.Name
		p.Timezone = in.Timezone
		p.Bio = in.Bio
		p.Availability = in.Availability
		return nil
	})
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, updated)
}

func (s *Server) getAnalytics(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	report, err := svc.Analytics(r.Context())
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, report)
}

func (s *Server) listMentors(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	mentors, err := svc.Mentors(r.Context())
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"mentors": mentors})
}

// listWarnings returns the integrity history of the sessions the caller can see.
// Loading the view first also records any warning raised by this fetch.
func (s *Server) listWarnings(w http.ResponseWriter, r *http.Request, svc *dashboard.Service) {
	view, err := svc.Load(r.Context())
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	visible := make(map[string]bool, len(view.Warnings))
	for _, warning := range view.Warnings {
		visible[warning.SessionID] = true
	}

	all, err := s.store.ListWarnings(r.Context())
	if err != nil {
		s.log.Error("failed to list integrity warnings", zap.Error(err))
		s.sendError(w, "Failed to list integrity warnings", http.StatusInternalServerError)
		return
	}
	records := []store.WarningRecord{}
	for _, rec := range all {
		if visible[rec.SessionID] {
			records = append(records, rec)
		}
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"warnings": records})
}

// FUNCTIONAL DISCOVERY: GET /health - local store connectivity and subscriber counts
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Store:       "healthy",
		Connections: map[string]int{},
	}
	if err := s.store.HealthCheck(ctx); err != nil {
		response.Status = "unhealthy"
		response.Store = "error: " + err.Error()
	}
	if s.registry != nil {
		response.Connections = s.registry.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")
	code := http.StatusOK
	if response.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, response)
}

// statusFor maps domain and backend errors onto gateway status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidFeedback),
		errors.Is(err, types.ErrInvalidSessionRequest),
		errors.Is(err, types.ErrInvalidProfile),
		errors.Is(err, types.ErrUnknownBucket):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrMalformedSession):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dashboard.ErrActionUnavailable):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrRoleNotPermitted), errors.Is(err, client.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, client.ErrNoToken):
		return http.StatusUnauthorized
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, client.ErrTransport):
		return http.StatusBadGateway
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	return http.StatusInternalServerError
}

func (s *Server) sendServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	message := client.Message(err)
	if code == http.StatusInternalServerError {
		message = "Internal error"
	}
	s.sendError(w, message, code)
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// FUNCTIONAL DISCOVERY: JSON middleware ensures proper content-type headers
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
