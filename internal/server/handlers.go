package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/headline-goat/abengine/internal/allocator"
	"github.com/headline-goat/abengine/internal/experiment"
)

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	experiments, err := s.manager.ListExperiments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		ExperimentsCount: len(experiments),
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg experiment.CreateConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	exp, err := s.manager.CreateExperiment(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

// handleList returns experiments with the given tag, or all of them when no tag is set.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		experiments []*experiment.Experiment
		err         error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		experiments, err = s.manager.GetExperimentsByTag(r.Context(), tag)
	} else {
		experiments, err = s.manager.ListExperiments(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	// Return empty array instead of null
	if experiments == nil {
		experiments = []*experiment.Experiment{}
	}
	writeJSON(w, http.StatusOK, experiments)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	exp, err := s.manager.GetExperiment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.GetExperimentStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type AssignResponse struct {
	VariantID string `json:"variantId"`
	Value     string `json:"value"`
}

// handleAssign picks an arm for a visitor. Recording the visit is a separate call.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	exp, err := s.manager.GetExperiment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	id := allocator.Assign(exp)
	arm, _ := exp.Arm(id)
	writeJSON(w, http.StatusOK, AssignResponse{VariantID: id, Value: arm.Value})
}

// EventRequest is the body of visit and conversion calls.
type EventRequest struct {
	VariantID string  `json:"variantId"`
	Weight    float64 `json:"weight,omitempty"`
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (EventRequest, bool) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return req, false
	}
	if req.VariantID == "" {
		writeJSONError(w, http.StatusBadRequest, "variantId is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	if err := s.manager.RecordVisit(r.Context(), r.PathValue("id"), req.VariantID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	result, err := s.manager.RecordConversion(r.Context(), r.PathValue("id"), req.VariantID, req.Weight)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.PauseExperiment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ResumeExperiment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type WinnerRequest struct {
	WinnerID string `json:"winnerId"`
}

func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	var req WinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := s.manager.SelectWinner(r.Context(), r.PathValue("id"), req.WinnerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteExperiment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.reports.GetConversionHistory(r.Context(), r.URL.Query().Get("experimentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the engine's error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, experiment.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, experiment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, experiment.ErrTerminalState), errors.Is(err, experiment.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, experiment.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, experiment.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
		writeJSONError(w, status, "internal server error")
		return
	}
	writeJSONError(w, status, err.Error())
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("failed to encode response: %v", err)
	}
}
