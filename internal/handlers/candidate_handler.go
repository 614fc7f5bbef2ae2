package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// CandidateHandler serves candidate rows and the admin delete.
type CandidateHandler struct {
	candidates interfaces.CandidateStorage
	profiles   interfaces.ProfileStorage
	logger     arbor.ILogger
}

// NewCandidateHandler creates the candidate handler
func NewCandidateHandler(candidates interfaces.CandidateStorage, profiles interfaces.ProfileStorage, logger arbor.ILogger) *CandidateHandler {
	return &CandidateHandler{candidates: candidates, profiles: profiles, logger: logger}
}

// ListHandler handles GET /api/candidates
func (h *CandidateHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit, offset := GetPaginationParams(r)
	candidates, err := h.candidates.List(r.Context(), limit, offset)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	total, err := h.candidates.Count(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": candidates,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// DetailHandler handles /api/candidates/{id} and the nested profiles route:
//
//	GET    /api/candidates/{id}
//	DELETE /api/candidates/{id}
//	GET    /api/candidates/{id}/profiles
func (h *CandidateHandler) DetailHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/candidates/")
	if rest == "" {
		WriteError(w, http.StatusBadRequest, "Missing candidate id")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/profiles"); ok {
		h.profilesHandler(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		candidate, err := h.candidates.Get(r.Context(), rest)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, candidate)
	case http.MethodDelete:
		if err := h.candidates.Delete(r.Context(), rest); err != nil {
			WriteServiceError(w, err)
			return
		}
		h.logger.Info().Str("candidate_id", rest).Msg("Candidate deleted")
		WriteSuccess(w, "Candidate deleted")
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *CandidateHandler) profilesHandler(w http.ResponseWriter, r *http.Request, candidateID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	profiles, err := h.profiles.ListByCandidate(r.Context(), candidateID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}
