package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/services/matching"
	"github.com/ternarybob/arbor"
)

// MatchHandler runs the match pipeline and serves stored results.
type MatchHandler struct {
	engine  *matching.Engine
	auditor matching.AuditRecorder
	matches interfaces.MatchStorage
	logger  arbor.ILogger
}

// NewMatchHandler creates the match handler
func NewMatchHandler(engine *matching.Engine, auditor matching.AuditRecorder, matches interfaces.MatchStorage, logger arbor.ILogger) *MatchHandler {
	return &MatchHandler{engine: engine, auditor: auditor, matches: matches, logger: logger}
}

// RunHandler handles POST /api/matches/run for a single pair.
func (h *MatchHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		CandidateID      string `json:"candidate_id"`
		JobRequirementID string `json:"job_requirement_id"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.CandidateID == "" || req.JobRequirementID == "" {
		WriteError(w, http.StatusBadRequest, "candidate_id and job_requirement_id are required")
		return
	}

	match, err := h.engine.MatchByID(r.Context(), req.CandidateID, req.JobRequirementID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, match)
}

// RunAllHandler handles POST /api/matches/run-all/{jobID}, scoring every
// candidate against the job. An optional parallelism query parameter
// overrides the configured width for this run. The response carries the
// matches; the audit row lands asynchronously.
func (h *MatchHandler) RunAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/api/matches/run-all/")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Missing job requirement id")
		return
	}

	parallelism := 0
	if raw := r.URL.Query().Get("parallelism"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "parallelism must be a positive integer")
			return
		}
		parallelism = n
	}

	matches, err := h.engine.MatchAll(r.Context(), jobID, h.auditor, parallelism)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_requirement_id": jobID,
		"matches":            matches,
	})
}

// ByJobHandler handles GET /api/matches/job/{jobID}
func (h *MatchHandler) ByJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/api/matches/job/")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Missing job requirement id")
		return
	}
	matches, err := h.matches.ListByJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// ByCandidateHandler handles GET /api/matches/candidate/{candidateID}
func (h *MatchHandler) ByCandidateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	candidateID := strings.TrimPrefix(r.URL.Path, "/api/matches/candidate/")
	if candidateID == "" {
		WriteError(w, http.StatusBadRequest, "Missing candidate id")
		return
	}
	matches, err := h.matches.ListByCandidate(r.Context(), candidateID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// SelectHandler handles POST /api/matches/{id}/select, recording the
// recruiter decision without touching scores.
func (h *MatchHandler) SelectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/matches/")
	id, ok := strings.CutSuffix(rest, "/select")
	if !ok || id == "" {
		WriteError(w, http.StatusBadRequest, "Expected /api/matches/{id}/select")
		return
	}

	var req struct {
		Selected bool   `json:"selected"`
		Notes    string `json:"notes"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.matches.SetSelected(r.Context(), id, req.Selected, req.Notes); err != nil {
		WriteServiceError(w, err)
		return
	}
	h.logger.Info().Str("match_id", id).Bool("selected", req.Selected).Msg("Recruiter selection recorded")
	WriteSuccess(w, "Selection updated")
}
