package sqlite

import (
	"fmt"
)

// migrate creates all tables and indexes. Statements are idempotent so the
// schema converges on every startup.
func (s *SQLiteDB) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS candidates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			mobile TEXT,
			resume_filename TEXT,
			resume_content TEXT,
			resume_file BLOB,
			experience_summary TEXT,
			skills TEXT,
			domain_knowledge TEXT,
			academic_background TEXT,
			years_of_experience INTEGER,
			created_at INTEGER NOT NULL
		)`,
		// Unique when non-null; empty emails are stored as NULL
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_candidates_email ON candidates(email) WHERE email IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_name ON candidates(name)`,

		`CREATE TABLE IF NOT EXISTS resume_embeddings (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			chunk_text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_candidate ON resume_embeddings(candidate_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_embeddings_candidate_chunk ON resume_embeddings(candidate_id, chunk_index)`,

		`CREATE TABLE IF NOT EXISTS job_requirements (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			required_skills TEXT,
			min_experience INTEGER,
			max_experience INTEGER,
			required_education TEXT,
			domain TEXT,
			location TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_requirements_active ON job_requirements(is_active)`,

		`CREATE TABLE IF NOT EXISTS candidate_matches (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			job_requirement_id TEXT NOT NULL,
			match_score REAL NOT NULL,
			skills_score REAL NOT NULL DEFAULT 0,
			experience_score REAL NOT NULL DEFAULT 0,
			education_score REAL NOT NULL DEFAULT 0,
			domain_score REAL NOT NULL DEFAULT 0,
			match_explanation TEXT,
			is_shortlisted INTEGER NOT NULL DEFAULT 0,
			is_selected INTEGER NOT NULL DEFAULT 0,
			recruiter_notes TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(candidate_id, job_requirement_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_job ON candidate_matches(job_requirement_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_candidate ON candidate_matches(candidate_id)`,

		`CREATE TABLE IF NOT EXISTS candidate_external_profiles (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			source TEXT NOT NULL,
			profile_url TEXT,
			display_name TEXT,
			bio TEXT,
			enriched_summary TEXT,
			status TEXT NOT NULL,
			last_fetched_at INTEGER,
			error_message TEXT,
			followers_count INTEGER,
			public_repos INTEGER,
			location TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(candidate_id, source)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_candidate ON candidate_external_profiles(candidate_id)`,

		`CREATE TABLE IF NOT EXISTS job_queue (
			id TEXT PRIMARY KEY,
			job_type TEXT NOT NULL,
			correlation_id TEXT,
			status TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			file_data BLOB,
			filename TEXT,
			metadata TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 3,
			error_message TEXT,
			error_stack_trace TEXT,
			created_at INTEGER NOT NULL,
			scheduled_for INTEGER NOT NULL,
			started_at INTEGER,
			completed_at INTEGER,
			updated_at INTEGER NOT NULL,
			assigned_to TEXT,
			heartbeat_at INTEGER,
			cancel_requested INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_pending ON job_queue(status, priority DESC, created_at ASC) WHERE status = 'PENDING'`,
		`CREATE INDEX IF NOT EXISTS idx_queue_heartbeat ON job_queue(heartbeat_at) WHERE status = 'PROCESSING'`,
		`CREATE INDEX IF NOT EXISTS idx_queue_correlation ON job_queue(correlation_id)`,

		`CREATE TABLE IF NOT EXISTS job_dead_letter_queue (
			id TEXT PRIMARY KEY,
			original_job_id TEXT NOT NULL,
			job_type TEXT NOT NULL,
			failed_at INTEGER NOT NULL,
			failure_reason TEXT,
			job_data BLOB,
			filename TEXT,
			retry_attempts INTEGER NOT NULL DEFAULT 0,
			resolved INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dead_letter_unresolved ON job_dead_letter_queue(resolved, failed_at)`,

		`CREATE TABLE IF NOT EXISTS process_tracker (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			total_files INTEGER NOT NULL,
			processed_files INTEGER NOT NULL DEFAULT 0,
			failed_files INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			uploaded_filename TEXT,
			correlation_id TEXT,
			job_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracker_correlation ON process_tracker(correlation_id)`,

		`CREATE TABLE IF NOT EXISTS match_audits (
			id TEXT PRIMARY KEY,
			job_requirement_id TEXT NOT NULL,
			job_title TEXT,
			status TEXT NOT NULL,
			total_candidates INTEGER NOT NULL DEFAULT 0,
			successful_matches INTEGER NOT NULL DEFAULT 0,
			shortlisted_count INTEGER NOT NULL DEFAULT 0,
			average_match_score REAL NOT NULL DEFAULT 0,
			highest_match_score REAL NOT NULL DEFAULT 0,
			estimated_tokens_used INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			initiated_by TEXT,
			initiated_at INTEGER NOT NULL,
			completed_at INTEGER,
			match_summaries TEXT,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audits_job ON match_audits(job_requirement_id, initiated_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
