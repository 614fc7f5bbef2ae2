package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// QueueHandler exposes queue observability and control: stats, cancel, and
// the dead-letter list.
type QueueHandler struct {
	queue  interfaces.QueueStorage
	logger arbor.ILogger
}

// NewQueueHandler creates the queue handler
func NewQueueHandler(queue interfaces.QueueStorage, logger arbor.ILogger) *QueueHandler {
	return &QueueHandler{queue: queue, logger: logger}
}

// StatsHandler handles GET /api/queue/stats
func (h *QueueHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// JobHandler handles /api/queue/jobs/{id} and its cancel route:
//
//	GET  /api/queue/jobs/{id}
//	POST /api/queue/jobs/{id}/cancel
func (h *QueueHandler) JobHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/jobs/")
	if rest == "" {
		WriteError(w, http.StatusBadRequest, "Missing job id")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/cancel"); ok {
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}
		if err := h.queue.Cancel(r.Context(), id, time.Now().UTC()); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteSuccess(w, "Cancellation requested")
		return
	}

	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	job, err := h.queue.Get(r.Context(), rest)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// DeadLettersHandler handles GET /api/queue/dead-letters
func (h *QueueHandler) DeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit, _ := GetPaginationParams(r)
	letters, err := h.queue.ListDeadLetters(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"dead_letters": letters})
}

// ResolveDeadLetterHandler handles POST /api/queue/dead-letters/{id}/resolve
func (h *QueueHandler) ResolveDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/dead-letters/")
	id, ok := strings.CutSuffix(rest, "/resolve")
	if !ok || id == "" {
		WriteError(w, http.StatusBadRequest, "Expected /api/queue/dead-letters/{id}/resolve")
		return
	}
	if err := h.queue.ResolveDeadLetter(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	h.logger.Info().Str("dead_letter_id", id).Msg("Dead letter resolved")
	WriteSuccess(w, "Dead letter resolved")
}
