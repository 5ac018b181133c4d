package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/mailseed/internal/catalog"
	"github.com/foxzi/mailseed/internal/metrics"
	"github.com/foxzi/mailseed/internal/seeder"
)

// CreateSessionRequest is the optional body for POST /sessions
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status   string                `json:"status"`
	Version  string                `json:"version"`
	Uptime   string                `json:"uptime"`
	Sessions *metrics.SessionStats `json:"sessions,omitempty"`
}

// PreviewResponse is the response for GET /catalog/preview
type PreviewResponse struct {
	Valid   bool                      `json:"valid"`
	Summary *catalog.Summary          `json:"summary,omitempty"`
	Errors  []catalog.ValidationError `json:"errors,omitempty"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error   string                    `json:"error"`
	Details []catalog.ValidationError `json:"details,omitempty"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).String(),
	}

	stats, err := s.seeder.SessionStats(r.Context())
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		resp.Status = "degraded"
		s.sendJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Sessions = stats

	s.sendJSON(w, http.StatusOK, resp)
}

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := s.seeder.Generate(r.Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		s.sendSeedError(w, err)
		return
	}

	s.sendJSON(w, http.StatusCreated, out)
}

// handleEnsure handles POST /api/v1/sessions/{id}/ensure
func (s *Server) handleEnsure(w http.ResponseWriter, r *http.Request) {
	out, err := s.seeder.EnsureSeeded(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendSeedError(w, err)
		return
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	s.sendJSON(w, status, out)
}

// handleReseed handles POST /api/v1/sessions/{id}/reseed
func (s *Server) handleReseed(w http.ResponseWriter, r *http.Request) {
	out, err := s.seeder.Reseed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendSeedError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, out)
}

// handleWipe handles POST /api/v1/sessions/{id}/wipe
func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	res, err := s.seeder.Wipe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendSeedError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, res)
}

// handleStats handles GET /api/v1/sessions/{id}/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.seeder.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendSeedError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, stats)
}

// handlePreview handles GET /api/v1/catalog/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	summary, err := s.seeder.Preview()

	var ve *seeder.ValidationFailedError
	switch {
	case errors.As(err, &ve):
		s.sendJSON(w, http.StatusOK, PreviewResponse{Valid: false, Errors: ve.Errors})
	case err != nil:
		s.sendSeedError(w, err)
	default:
		s.sendJSON(w, http.StatusOK, PreviewResponse{Valid: true, Summary: summary})
	}
}

// sendSeedError maps a seeder error to a status code
func (s *Server) sendSeedError(w http.ResponseWriter, err error) {
	var ve *seeder.ValidationFailedError
	switch {
	case errors.As(err, &ve):
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "seed data failed validation", Details: ve.Errors})
	case errors.Is(err, seeder.ErrSessionNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, seeder.ErrAlreadySeeded):
		s.sendError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("seed operation failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "internal error")
	}
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
