package models

import (
	"time"
)

// MatchScores is the structured payload parsed from the match response.
type MatchScores struct {
	MatchScore       float64 `json:"matchScore"`
	SkillsScore      float64 `json:"skillsScore"`
	ExperienceScore  float64 `json:"experienceScore"`
	EducationScore   float64 `json:"educationScore"`
	DomainScore      float64 `json:"domainScore"`
	MatchExplanation string  `json:"matchExplanation"`
}

// CandidateMatch is the stored result of scoring one candidate against one
// job requirement. At most one row exists per (candidate, job); re-matching
// overwrites scores while preserving recruiter decisions.
type CandidateMatch struct {
	ID               string    `json:"id"`
	CandidateID      string    `json:"candidate_id"`
	JobRequirementID string    `json:"job_requirement_id"`
	MatchScore       float64   `json:"match_score"`
	SkillsScore      float64   `json:"skills_score"`
	ExperienceScore  float64   `json:"experience_score"`
	EducationScore   float64   `json:"education_score"`
	DomainScore      float64   `json:"domain_score"`
	MatchExplanation string    `json:"match_explanation,omitempty"`
	IsShortlisted    bool      `json:"is_shortlisted"` // Auto-set from the score threshold on every write
	IsSelected       bool      `json:"is_selected"`    // User-driven only
	RecruiterNotes   string    `json:"recruiter_notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MatchAuditStatus tracks one batch match run.
type MatchAuditStatus string

const (
	AuditStatusRunning   MatchAuditStatus = "RUNNING"
	AuditStatusCompleted MatchAuditStatus = "COMPLETED"
	AuditStatusFailed    MatchAuditStatus = "FAILED"
)

// MatchSummary is a short per-candidate snapshot embedded in an audit row.
type MatchSummary struct {
	CandidateID   string  `json:"candidate_id"`
	CandidateName string  `json:"candidate_name"`
	MatchScore    float64 `json:"match_score"`
	Shortlisted   bool    `json:"shortlisted"`
	Error         string  `json:"error,omitempty"`
}

// MatchAudit is the append-only record of one match run. Persistence is
// best-effort and asynchronous; a lost audit row never fails a match.
type MatchAudit struct {
	ID                  string           `json:"id"`
	JobRequirementID    string           `json:"job_requirement_id"`
	JobTitle            string           `json:"job_title"`
	Status              MatchAuditStatus `json:"status"`
	TotalCandidates     int              `json:"total_candidates"`
	SuccessfulMatches   int              `json:"successful_matches"`
	ShortlistedCount    int              `json:"shortlisted_count"`
	AverageMatchScore   float64          `json:"average_match_score"`
	HighestMatchScore   float64          `json:"highest_match_score"`
	EstimatedTokensUsed int              `json:"estimated_tokens_used"`
	DurationMs          int64            `json:"duration_ms"`
	InitiatedBy         string           `json:"initiated_by"`
	InitiatedAt         time.Time        `json:"initiated_at"`
	CompletedAt         *time.Time       `json:"completed_at,omitempty"`
	MatchSummaries      []MatchSummary   `json:"match_summaries,omitempty"`
	ErrorMessage        string           `json:"error_message,omitempty"`
}
