package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sawpanic/mesohops/internal/application"
	"github.com/sawpanic/mesohops/internal/hops"
	"github.com/sawpanic/mesohops/internal/store"
)

const defaultRunLimit = 20

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string
	Port         int
	RPS          float64
	Burst        int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server exposes health, metrics and stored runs over HTTP
type Server struct {
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	runner  *application.Runner
	limiter *rate.Limiter
	logger  zerolog.Logger
	config  ServerConfig
	started time.Time
}

// NewServer creates a server; it does not listen until Start
func NewServer(config ServerConfig, runner *application.Runner, logger zerolog.Logger) *Server {
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		router:  mux.NewRouter(),
		runner:  runner,
		limiter: rate.NewLimiter(rate.Limit(config.RPS), config.Burst),
		logger:  logger,
		config:  config,
		started: time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// setupRoutes registers routes and wraps the whole router, so unmatched
// and method-mismatched requests pass through the same middleware
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", s.runner.Metrics().Handler()).Methods("GET")
	s.router.HandleFunc("/runs", s.handleRuns).Methods("GET")
	s.router.HandleFunc("/runs/{id}", s.handleRun).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	s.handler = s.requestIDMiddleware(s.rateLimitMiddleware(s.requestLoggingMiddleware(s.router)))
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler { return s.handler }

// Addr is the listen address
func (s *Server) Addr() string { return s.server.Addr }

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting monitor server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down monitor server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        hops.Version,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.runner.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list runs")
		writeError(w, http.StatusServiceUnavailable, "run store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.runner.Get(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
		writeError(w, http.StatusServiceUnavailable, "run store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// requestIDMiddleware adds a short request ID to each response
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.New().String()[:8])
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware rejects requests once the token bucket is empty
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLoggingMiddleware logs requests and counts them by route
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		route := s.routeLabel(r)
		s.runner.Metrics().MonitorRequests.WithLabelValues(route, strconv.Itoa(wrapper.statusCode)).Inc()

		s.logger.Debug().
			Str("request_id", w.Header().Get("X-Request-ID")).
			Str("method", r.Method).
			Str("route", route).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

// routeLabel is the matched path template, or "unmatched" for 404/405
func (s *Server) routeLabel(r *http.Request) string {
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.MatchErr == nil && match.Route != nil {
		if tmpl, err := match.Route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
