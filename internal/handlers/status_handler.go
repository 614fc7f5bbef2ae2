package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// StatusHandler serves liveness, version, and the application status
// aggregate the dashboard polls.
type StatusHandler struct {
	config     *common.Config
	queue      interfaces.QueueStorage
	candidates interfaces.CandidateStorage
	startedAt  time.Time
	logger     arbor.ILogger
}

// NewStatusHandler creates the status handler
func NewStatusHandler(config *common.Config, queue interfaces.QueueStorage, candidates interfaces.CandidateStorage, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		config:     config,
		queue:      queue,
		candidates: candidates,
		startedAt:  time.Now().UTC(),
		logger:     logger,
	}
}

// HealthHandler handles GET /health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// StatusHandler handles GET /api/status
func (h *StatusHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := map[string]interface{}{
		"version":           common.GetVersion(),
		"environment":       h.config.Environment,
		"scheduler_enabled": h.config.Scheduler.Enabled,
		"uptime_seconds":    int64(time.Since(h.startedAt).Seconds()),
	}

	if count, err := h.candidates.Count(r.Context()); err == nil {
		status["candidates"] = count
	} else {
		h.logger.Warn().Err(err).Msg("Candidate count failed for status")
	}

	if stats, err := h.queue.Stats(r.Context()); err == nil {
		status["queue"] = stats
	} else {
		h.logger.Warn().Err(err).Msg("Queue stats failed for status")
	}

	WriteJSON(w, http.StatusOK, status)
}
