package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// JobRequirementHandler manages job requirement CRUD. Deactivation is
// preferred over deletion so match history stays intact.
type JobRequirementHandler struct {
	jobs   interfaces.JobRequirementStorage
	logger arbor.ILogger
}

// NewJobRequirementHandler creates the job requirement handler
func NewJobRequirementHandler(jobs interfaces.JobRequirementStorage, logger arbor.ILogger) *JobRequirementHandler {
	return &JobRequirementHandler{jobs: jobs, logger: logger}
}

// CollectionHandler handles /api/jobs: GET (list), POST (create).
func (h *JobRequirementHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		activeOnly := r.URL.Query().Get("active") == "true"
		jobs, err := h.jobs.List(r.Context(), activeOnly)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
	case http.MethodPost:
		var job models.JobRequirement
		if !DecodeJSON(w, r, &job) {
			return
		}
		if err := job.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.jobs.Create(r.Context(), &job); err != nil {
			WriteServiceError(w, err)
			return
		}
		h.logger.Info().Str("job_id", job.ID).Str("title", job.Title).Msg("Job requirement created")
		WriteJSON(w, http.StatusCreated, job)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// DetailHandler handles /api/jobs/{id} and the activation routes:
//
//	GET  /api/jobs/{id}
//	PUT  /api/jobs/{id}
//	POST /api/jobs/{id}/activate
//	POST /api/jobs/{id}/deactivate
func (h *JobRequirementHandler) DetailHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		WriteError(w, http.StatusBadRequest, "Missing job requirement id")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/activate"); ok {
		h.setActive(w, r, id, true)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/deactivate"); ok {
		h.setActive(w, r, id, false)
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, err := h.jobs.Get(r.Context(), rest)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, job)
	case http.MethodPut:
		var job models.JobRequirement
		if !DecodeJSON(w, r, &job) {
			return
		}
		job.ID = rest
		if err := job.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.jobs.Update(r.Context(), &job); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, job)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *JobRequirementHandler) setActive(w http.ResponseWriter, r *http.Request, id string, active bool) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.jobs.SetActive(r.Context(), id, active); err != nil {
		WriteServiceError(w, err)
		return
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	h.logger.Info().Str("job_id", id).Bool("active", active).Msg("Job requirement state changed")
	WriteSuccess(w, fmt.Sprintf("Job requirement %s", state))
}
