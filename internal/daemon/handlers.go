package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mediabatch/internal/api"
	"mediabatch/internal/jobs"
	"mediabatch/internal/logging"
	"mediabatch/internal/preflight"
	"mediabatch/internal/services"
)

const serviceName = "mediabatch"

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	d := s.daemon
	results := preflight.RunAll(r.Context(), d.cfg, preflight.Options{})
	health := "healthy"
	if !preflight.AllPassed(results) {
		health = "degraded"
	}
	status := d.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:     health,
		Service:    serviceName,
		Version:    d.version,
		Running:    status.Running,
		ActiveJobs: status.ActiveJobs,
		Model:      d.components.Model,
		Checks:     results,
	})
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req api.TranscribeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		s.writeError(w, http.StatusBadRequest, "source is required (folder path or Google Drive link)")
		return
	}
	if err := s.daemon.cfg.RequireInferenceKey(); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	id, err := s.daemon.components.Runner.Submit(r.Context(), req.Spec(s.daemon.cfg.Source.Recursive))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("transcription job accepted",
		logging.String(logging.FieldJobID, id),
		logging.String("source", req.Source),
	)
	s.writeJSON(w, http.StatusAccepted, api.TranscribeResponse{
		JobID:   id,
		Status:  string(jobs.StatusQueued),
		Message: "Transcription job started",
	})
}

func (s *apiServer) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleJobResults(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if job.Status != jobs.StatusCompleted {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Job not completed. Current status: %s", job.Status))
		return
	}
	results, err := s.daemon.components.Runner.Results(job.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *apiServer) lookupJob(w http.ResponseWriter, r *http.Request) (jobs.Job, bool) {
	job, err := s.daemon.components.Runner.Status(chi.URLParam(r, "id"))
	if errors.Is(err, services.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return jobs.Job{}, false
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return jobs.Job{}, false
	}
	return job, true
}

func (s *apiServer) handleJobs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FromSummaries(s.daemon.components.Runner.List()))
}

func (s *apiServer) handleUsage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.components.Meter.Stats(r.Context()))
}

func (s *apiServer) handleBurnRate(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.components.Meter.BurnRate(r.Context()))
}

func (s *apiServer) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var req api.TierRequest
	if !s.decode(w, r, &req) {
		return
	}
	meter := s.daemon.components.Meter
	if err := meter.SetTier(r.Context(), req.Tier); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TierResponse{
		Message: "Tier set to " + strings.ToLower(strings.TrimSpace(req.Tier)),
		Stats:   meter.Stats(r.Context()),
	})
}

func (s *apiServer) handleResetUsage(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.components.Meter.Reset(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Usage statistics reset successfully"})
}
