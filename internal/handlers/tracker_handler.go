package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// TrackerHandler serves upload progress. The tracker endpoint is the only
// status surface the UI polls during processing.
type TrackerHandler struct {
	trackers interfaces.TrackerStorage
	logger   arbor.ILogger
}

// NewTrackerHandler creates the tracker handler
func NewTrackerHandler(trackers interfaces.TrackerStorage, logger arbor.ILogger) *TrackerHandler {
	return &TrackerHandler{trackers: trackers, logger: logger}
}

// ListHandler handles GET /api/trackers
func (h *TrackerHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit, _ := GetPaginationParams(r)
	trackers, err := h.trackers.List(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"trackers": trackers})
}

// GetHandler handles GET /api/trackers/{id}
func (h *TrackerHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/trackers/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Missing tracker id")
		return
	}
	tracker, err := h.trackers.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tracker)
}
