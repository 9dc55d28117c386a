package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cmsig/domain/core"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
)

// ValidateRequest is the self-contained validation call: observations plus
// options in one payload, no storage involved.
type ValidateRequest struct {
	Observations []signal.SiteObservation `json:"observations"`
	Options      *signal.AnalysisOptions  `json:"options,omitempty"`
	Pipeline     *validation.Config       `json:"pipeline,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleValidate runs the full pipeline on the request payload.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	opts := signal.DefaultAnalysisOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	cfg := validation.DefaultConfig()
	if req.Pipeline != nil {
		cfg = *req.Pipeline
	}

	store := signal.NewStore(req.Observations)
	result, err := s.service.Run(r.Context(), store, opts, cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSaveObservations persists a collector batch.
func (s *Server) handleSaveObservations(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	var observations []signal.SiteObservation
	if err := json.NewDecoder(r.Body).Decode(&observations); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.repo.SaveObservations(r.Context(), observations); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"saved": len(observations)})
}

// handleRunStored runs the pipeline over the stored observations and
// persists the resulting report.
func (s *Server) handleRunStored(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	var req struct {
		Options  *signal.AnalysisOptions `json:"options,omitempty"`
		Pipeline *validation.Config      `json:"pipeline,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	opts := signal.DefaultAnalysisOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	cfg := validation.DefaultConfig()
	if req.Pipeline != nil {
		cfg = *req.Pipeline
	}

	store, err := s.repo.LoadStore(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := s.service.Run(r.Context(), store, opts, cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.repo.SaveReport(r.Context(), result.Report); err != nil {
		log.Printf("[api] failed to persist report %s: %v", result.Report.RunID, err)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	runID, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.repo.GetReport(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[api] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
