package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lessonforge/internal/ratelimit"
	"lessonforge/internal/util"
	"lessonforge/pkg/domain"
	"lessonforge/services/lesson/internal/app"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	maxBodyBytes = 1 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App             *app.App
	RateLimiter     *ratelimit.FixedWindowLimiter
	MetricsGatherer prometheus.Gatherer
	TrustedProxies  *util.TrustedProxies
	CORSAllowOrigin string
}

// Server exposes HTTP endpoints for the lesson service.
type Server struct {
	app             *app.App
	limiter         *ratelimit.FixedWindowLimiter
	trustedProxies  *util.TrustedProxies
	corsAllowOrigin string
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires the app core")
	}
	s := &Server{
		app:             cfg.App,
		limiter:         cfg.RateLimiter,
		trustedProxies:  cfg.TrustedProxies,
		corsAllowOrigin: cfg.CORSAllowOrigin,
		mux:             http.NewServeMux(),
	}
	s.routes(cfg.MetricsGatherer)
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("lesson", util.WithSecurityHeaders(util.WithCORS(s.corsAllowOrigin, s.mux))))
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("/v1/lessons", s.handleLessons)
	s.mux.HandleFunc("/v1/lessons/", s.handleLessonByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLessons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleGenerateLesson(w, r)
	case http.MethodGet:
		s.handleListLessons(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "SYSTEM_METHOD_NOT_ALLOWED")
	}
}

type generateRequest struct {
	Subject  string `json:"subject"`
	Audience string `json:"audience"`
	Duration string `json:"duration"`
}

type lessonResponse struct {
	domain.Lesson
	FromCache bool `json:"fromCache"`
}

func (s *Server) handleGenerateLesson(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r) {
		if s.limiter != nil {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.limiter.Window().Seconds())))
		}
		writeError(w, http.StatusTooManyRequests, "too many requests", "LESSON_RATE_LIMITED")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "LESSON_INVALID_REQUEST")
		return
	}

	lesson, fromCache, err := s.app.GenerateOrFetch(r.Context(), req.Subject, req.Audience, req.Duration)
	if err != nil {
		s.writeGenerateError(w, err)
		return
	}
	status := http.StatusCreated
	if fromCache {
		status = http.StatusOK
	}
	writeJSON(w, status, lessonResponse{Lesson: lesson, FromCache: fromCache})
}

func (s *Server) writeGenerateError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error(), "LESSON_INVALID_REQUEST")
	case errors.Is(err, domain.ErrBudgetExceeded):
		writeError(w, http.StatusUnprocessableEntity, "token budget exceeded", "LESSON_BUDGET_EXCEEDED")
	case errors.Is(err, domain.ErrGenerationTimeout):
		writeError(w, http.StatusGatewayTimeout, "generation timed out", "GENERATION_TIMEOUT")
	case errors.Is(err, domain.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, "generation failed", "GENERATION_UPSTREAM_ERROR")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "SYSTEM_INTERNAL_ERROR")
	}
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := parseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	lessons, total, err := s.app.ListLessons(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", "SYSTEM_INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": lessons,
		"count": total,
	})
}

// /v1/lessons/{id} or /v1/lessons/{id}/download
func (s *Server) handleLessonByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "SYSTEM_METHOD_NOT_ALLOWED")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/lessons/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "lesson not found", "LESSON_NOT_FOUND")
		return
	}
	if len(parts) == 2 {
		if parts[1] != "download" {
			writeError(w, http.StatusNotFound, "lesson not found", "LESSON_NOT_FOUND")
			return
		}
		s.handleDownloadLesson(w, r, id)
		return
	}

	lesson, err := s.app.Fetch(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lesson not found", "LESSON_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", "SYSTEM_INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (s *Server) handleDownloadLesson(w http.ResponseWriter, r *http.Request, id string) {
	url, filename, err := s.app.DownloadURL(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrArtifactsDisabled):
			writeError(w, http.StatusServiceUnavailable, "artifact export disabled", "LESSON_ARTIFACTS_DISABLED")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "lesson not found", "LESSON_NOT_FOUND")
		default:
			writeError(w, http.StatusInternalServerError, "failed to generate download URL", "SYSTEM_INTERNAL_ERROR")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":      url,
		"filename": filename,
	})
}

// allow checks the per-client-IP quota. No limiter means no limiting; a
// configured limiter that cannot reach Redis fails closed.
func (s *Server) allow(r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow(r.Context(), util.ClientIP(r, s.trustedProxies))
}

func parseQueryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}
