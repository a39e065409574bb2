package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/services/tracker"
	badgerstore "github.com/ternarybob/gradus/internal/storage/badger"
)

// JobHandler handles tracking job API requests
type JobHandler struct {
	trackerService *tracker.Service
	jobStorage     interfaces.JobStorage
	logger         arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(trackerService *tracker.Service, jobStorage interfaces.JobStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		trackerService: trackerService,
		jobStorage:     jobStorage,
		logger:         logger,
	}
}

// CreateJobHandler submits a new tracking job
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tracker.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, err := h.trackerService.SubmitJob(ctx, &req)
	if err != nil {
		var vErr *tracker.ValidationError
		switch {
		case errors.As(err, &vErr):
			WriteError(w, http.StatusBadRequest, vErr.Message)
		case errors.Is(err, tracker.ErrMissingCredentials):
			WriteError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error().Err(err).Msg("Failed to submit job")
			WriteError(w, http.StatusInternalServerError, "Failed to submit job")
		}
		return
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("target_site", job.TargetSite).
		Int("keywords", len(job.Keywords)).
		Msg("Tracking job submitted")

	WriteJSON(w, http.StatusAccepted, job)
}

// ListJobsHandler returns recent tracking jobs, newest first
// GET /api/jobs?limit=50
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := h.trackerService.ListJobs(ctx, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
		"limit": limit,
	})
}

// GetJobHandler returns a single job with its tickets and results
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.trackerService.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, badgerstore.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	tickets, err := h.jobStorage.ListTickets(ctx, jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to list tickets")
	}

	results, err := h.jobStorage.ListResults(ctx, jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to list results")
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job":     job,
		"tickets": tickets,
		"results": results,
	})
}

// GetJobResultsHandler returns only the keyword results for a job
// GET /api/jobs/{id}/results
func (h *JobHandler) GetJobResultsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := jobIDFromPath(strings.TrimSuffix(r.URL.Path, "/results"))
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if _, err := h.trackerService.GetJob(ctx, jobID); err != nil {
		if errors.Is(err, badgerstore.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	results, err := h.jobStorage.ListResults(ctx, jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to list results")
		WriteError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  jobID,
		"results": results,
		"count":   len(results),
	})
}

// DeleteJobHandler removes a job and its tickets and results
// DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.trackerService.DeleteJob(ctx, jobID); err != nil {
		if errors.Is(err, badgerstore.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to delete job")
		WriteError(w, http.StatusInternalServerError, "Failed to delete job")
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Tracking job deleted")

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"job_id": jobID,
	})
}

// jobIDFromPath extracts the job ID from /api/jobs/{id}
func jobIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
