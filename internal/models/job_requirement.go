package models

import (
	"fmt"
	"strings"
	"time"
)

// JobRequirement describes one open position. Mutated only by
// recruiter/admin calls; deactivation is preferred over deletion.
type JobRequirement struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	RequiredSkills    string    `json:"required_skills,omitempty"`
	MinExperience     *int      `json:"min_experience,omitempty"`
	MaxExperience     *int      `json:"max_experience,omitempty"`
	RequiredEducation string    `json:"required_education,omitempty"`
	Domain            string    `json:"domain,omitempty"`
	Location          string    `json:"location,omitempty"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Validate checks the invariants a stored requirement must hold.
func (j *JobRequirement) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return fmt.Errorf("job requirement title is required")
	}
	if j.MinExperience != nil && j.MaxExperience != nil && *j.MinExperience > *j.MaxExperience {
		return fmt.Errorf("min_experience (%d) exceeds max_experience (%d)", *j.MinExperience, *j.MaxExperience)
	}
	return nil
}

// JobLeaning classifies a requirement for context ranking.
type JobLeaning string

const (
	JobLeaningDeveloper JobLeaning = "developer"
	JobLeaningSocial    JobLeaning = "social"
	JobLeaningGeneral   JobLeaning = "general"
)

var developerKeywords = []string{"developer", "engineer", "software", "programmer", "devops", "backend", "frontend", "full stack", "fullstack", "sre", "architect"}

var socialKeywords = []string{"social", "marketing", "community", "content", "brand", "influencer", "communications", "public relations"}

// Leaning inspects the title and required skills to pick ranking weights.
func (j *JobRequirement) Leaning() JobLeaning {
	haystack := strings.ToLower(j.Title + " " + j.RequiredSkills)
	for _, kw := range developerKeywords {
		if strings.Contains(haystack, kw) {
			return JobLeaningDeveloper
		}
	}
	for _, kw := range socialKeywords {
		if strings.Contains(haystack, kw) {
			return JobLeaningSocial
		}
	}
	return JobLeaningGeneral
}
