package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// AuditHandler serves match run audit records.
type AuditHandler struct {
	audits interfaces.AuditStorage
	logger arbor.ILogger
}

// NewAuditHandler creates the audit handler
func NewAuditHandler(audits interfaces.AuditStorage, logger arbor.ILogger) *AuditHandler {
	return &AuditHandler{audits: audits, logger: logger}
}

// DetailHandler handles /api/audits/{id} and the per-job listing:
//
//	GET /api/audits/{id}
//	GET /api/audits/job/{jobID}
func (h *AuditHandler) DetailHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/audits/")
	if rest == "" {
		WriteError(w, http.StatusBadRequest, "Missing audit id")
		return
	}

	if jobID := strings.TrimPrefix(rest, "job/"); jobID != rest {
		limit, _ := GetPaginationParams(r)
		audits, err := h.audits.ListByJob(r.Context(), jobID, limit)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"audits": audits})
		return
	}

	audit, err := h.audits.Get(r.Context(), rest)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, audit)
}
