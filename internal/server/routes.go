package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Uploads
	mux.HandleFunc("/api/resumes/upload", s.app.UploadHandler.UploadHandler) // POST

	// Process trackers
	mux.HandleFunc("/api/trackers", s.app.TrackerHandler.ListHandler) // GET
	mux.HandleFunc("/api/trackers/", s.app.TrackerHandler.GetHandler) // GET /{id}

	// Candidates
	mux.HandleFunc("/api/candidates", s.app.CandidateHandler.ListHandler)    // GET
	mux.HandleFunc("/api/candidates/", s.app.CandidateHandler.DetailHandler) // GET/DELETE /{id}, GET /{id}/profiles

	// Job requirements
	mux.HandleFunc("/api/jobs", s.app.JobRequirementHandler.CollectionHandler) // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.app.JobRequirementHandler.DetailHandler)    // GET/PUT /{id}, POST /{id}/activate|deactivate

	// Matching
	mux.HandleFunc("/api/matches/run", s.app.MatchHandler.RunHandler)               // POST - single pair
	mux.HandleFunc("/api/matches/run-all/", s.app.MatchHandler.RunAllHandler)       // POST /{jobID}
	mux.HandleFunc("/api/matches/job/", s.app.MatchHandler.ByJobHandler)            // GET /{jobID}
	mux.HandleFunc("/api/matches/candidate/", s.app.MatchHandler.ByCandidateHandler) // GET /{candidateID}
	mux.HandleFunc("/api/matches/", s.app.MatchHandler.SelectHandler)               // POST /{id}/select

	// Queue observability
	mux.HandleFunc("/api/queue/stats", s.app.QueueHandler.StatsHandler)                    // GET
	mux.HandleFunc("/api/queue/jobs/", s.app.QueueHandler.JobHandler)                      // GET /{id}, POST /{id}/cancel
	mux.HandleFunc("/api/queue/dead-letters", s.app.QueueHandler.DeadLettersHandler)       // GET
	mux.HandleFunc("/api/queue/dead-letters/", s.app.QueueHandler.ResolveDeadLetterHandler) // POST /{id}/resolve

	// Match audits
	mux.HandleFunc("/api/audits/", s.app.AuditHandler.DetailHandler) // GET /{id}, GET /job/{jobID}

	// API keys
	mux.HandleFunc("/api/keys", s.app.KVHandler.CollectionHandler) // GET (masked), POST
	mux.HandleFunc("/api/keys/", s.app.KVHandler.DetailHandler)    // DELETE /{key}

	// Semantic search
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler) // POST

	// System
	mux.HandleFunc("/api/status", s.app.StatusHandler.StatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	http.NotFound(w, r)
}
