package models

import (
	"strings"
	"time"
)

// Candidate is the structured profile extracted from one resume. Created by
// the resume processor; never mutated by matching; destroyed only by an
// explicit admin delete that cascades to embeddings, external profiles, and
// matches.
type Candidate struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email,omitempty"` // Lowercased; unique when non-empty
	Mobile             string    `json:"mobile,omitempty"`
	ResumeFilename     string    `json:"resume_filename,omitempty"`
	ResumeContent      string    `json:"resume_content,omitempty"`
	ResumeFile         []byte    `json:"-"`
	ExperienceSummary  string    `json:"experience_summary,omitempty"`
	Skills             string    `json:"skills,omitempty"` // Comma-joined
	DomainKnowledge    string    `json:"domain_knowledge,omitempty"`
	AcademicBackground string    `json:"academic_background,omitempty"`
	YearsOfExperience  *int      `json:"years_of_experience,omitempty"` // nil when unknown
	CreatedAt          time.Time `json:"created_at"`
}

// TopSkill returns the first entry of the comma-joined skills string, used
// to build web-search queries.
func (c *Candidate) TopSkill() string {
	if c.Skills == "" {
		return ""
	}
	first := strings.SplitN(c.Skills, ",", 2)[0]
	return strings.TrimSpace(first)
}

// NormalizeEmail lowercases and trims an email address for the unique index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResumeEmbedding is one chunk of resume text with its vector. Chunks for a
// candidate are dense, 0-based, and deterministic for a given text.
type ResumeEmbedding struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	ChunkText   string    `json:"chunk_text"`
	Embedding   []float32 `json:"-"`
	ChunkIndex  int       `json:"chunk_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmbeddingMatch is one similarity search hit.
type EmbeddingMatch struct {
	Embedding  *ResumeEmbedding `json:"embedding"`
	Similarity float64          `json:"similarity"`
}
