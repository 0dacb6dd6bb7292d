// Package web serves the calendar HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"keycal/internal/auth"
	"keycal/internal/config"
	"keycal/internal/drag"
	appLog "keycal/internal/log"
	"keycal/internal/observability"
	"keycal/internal/store"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

// Server provides the HTTP API over a store.
type Server struct {
	cfg     *config.Config
	store   store.Store
	loc     *time.Location
	drag    drag.Config
	auth    auth.Middleware
	limiter *userLimiter
	now     func() time.Time
	mux     *http.ServeMux
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now, for "today" defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st store.Store, opts ...Option) *Server {
	s := &Server{
		cfg:   cfg,
		store: st,
		loc:   resolveLocationOrLocal(cfg.Timezone),
		drag:  cfg.DragSettings(),
		now:   time.Now,
		mux:   http.NewServeMux(),
	}
	s.auth = auth.NewMiddleware(auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer}, openPath)
	if cfg.DemoMode {
		s.auth.DemoUser = cfg.Auth.DemoUser
	}
	s.limiter = newUserLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed API behind auth and rate limiting.
func (s *Server) Handler() http.Handler {
	return s.auth.Wrap(s.limiter.Wrap(s.mux))
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "demo_mode", s.cfg.DemoMode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openPath(r *http.Request) bool {
	return r.URL.Path == "/health" || r.URL.Path == "/metrics"
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", observability.Handler())

	s.handle("GET /api/events", s.listEvents)
	s.handle("POST /api/events", s.createEvent)
	s.handle("PATCH /api/events/{id}", s.updateEvent)
	s.handle("DELETE /api/events/{id}", s.deleteEvent)
	s.handle("POST /api/events/{id}/move", s.moveEvent)
	s.handle("POST /api/events/{id}/duplicate", s.duplicateEvent)

	s.handle("GET /api/indicators", s.listIndicators)
	s.handle("POST /api/indicators", s.createIndicator)
	s.handle("PATCH /api/indicators/{id}", s.updateIndicator)
	s.handle("DELETE /api/indicators/{id}", s.deleteIndicator)

	s.handle("GET /api/calendar/week", s.calendarWeek)
	s.handle("GET /api/calendar/month", s.calendarMonth)
	s.handle("GET /api/calendar/hours", s.calendarHours)
	s.handle("GET /api/calendar/day", s.calendarDay)
	s.handle("GET /api/calendar.ics", s.calendarFeed)
	s.handle("POST /api/import", s.importICS)
}

// handle registers h with request metrics keyed by the route pattern and
// a request id.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		elapsed := time.Since(start)
		observability.ObserveRequest(r.Method, pattern, rec.status, elapsed)
		appLog.Debug("http request",
			"pattern", pattern,
			"status", rec.status,
			"user", auth.UserID(r.Context()),
			"request_id", reqID,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// decode reads a JSON body into v and validates its struct tags.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request", "empty body")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// storeError maps store sentinels onto HTTP statuses.
func storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		appLog.Error("store call failed", err, "op", op)
		writeError(w, http.StatusInternalServerError, "server_error", fmt.Sprintf("%s failed", op))
	}
}

func (s *Server) today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// dayParam parses the named YYYY-MM-DD query parameter, defaulting to
// today when absent.
func (s *Server) dayParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return s.today(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return t, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"type": code, "detail": detail})
}
