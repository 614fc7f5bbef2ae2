package models

import (
	"time"
)

// ProfileSource identifies where an external profile came from.
type ProfileSource string

const (
	SourceGitHub         ProfileSource = "GITHUB"
	SourceLinkedIn       ProfileSource = "LINKEDIN"
	SourceTwitter        ProfileSource = "TWITTER"
	SourceInternetSearch ProfileSource = "INTERNET_SEARCH"
)

// AllProfileSources lists the valid sources in a stable order.
var AllProfileSources = []ProfileSource{SourceGitHub, SourceLinkedIn, SourceTwitter, SourceInternetSearch}

// IsValidProfileSource reports whether s names a known source.
func IsValidProfileSource(s string) bool {
	switch ProfileSource(s) {
	case SourceGitHub, SourceLinkedIn, SourceTwitter, SourceInternetSearch:
		return true
	}
	return false
}

// SourceSelection is the model's answer to "which sources should we
// consult for this candidate and job".
type SourceSelection struct {
	Sources   []ProfileSource `json:"sources"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// ProfileStatus is the fetch state of an external profile.
type ProfileStatus string

const (
	ProfileStatusPending  ProfileStatus = "PENDING"
	ProfileStatusSuccess  ProfileStatus = "SUCCESS"
	ProfileStatusFailed   ProfileStatus = "FAILED"
	ProfileStatusNotFound ProfileStatus = "NOT_FOUND"
)

// CandidateExternalProfile is one enrichment result. At most one row exists
// per (candidate, source).
type CandidateExternalProfile struct {
	ID              string        `json:"id"`
	CandidateID     string        `json:"candidate_id"`
	Source          ProfileSource `json:"source"`
	ProfileURL      string        `json:"profile_url,omitempty"`
	DisplayName     string        `json:"display_name,omitempty"`
	Bio             string        `json:"bio,omitempty"`
	EnrichedSummary string        `json:"enriched_summary,omitempty"`
	Status          ProfileStatus `json:"status"`
	LastFetchedAt   *time.Time    `json:"last_fetched_at,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	FollowersCount  *int          `json:"followers_count,omitempty"`
	PublicRepos     *int          `json:"public_repos,omitempty"`
	Location        string        `json:"location,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsStale reports whether a SUCCESS profile is older than the TTL. Profiles
// in any other status are not stale; they are retried through other paths.
func (p *CandidateExternalProfile) IsStale(ttl time.Duration, now time.Time) bool {
	if p.Status != ProfileStatusSuccess {
		return false
	}
	if p.LastFetchedAt == nil {
		return true
	}
	return now.Sub(*p.LastFetchedAt) > ttl
}

// MarkSuccess records a successful fetch.
func (p *CandidateExternalProfile) MarkSuccess(now time.Time) {
	p.Status = ProfileStatusSuccess
	p.LastFetchedAt = &now
	p.ErrorMessage = ""
}

// MarkFailed records a failed fetch with its reason.
func (p *CandidateExternalProfile) MarkFailed(now time.Time, reason string) {
	p.Status = ProfileStatusFailed
	p.LastFetchedAt = &now
	p.ErrorMessage = reason
}
