package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexStringList accepts either a JSON array of strings or a single scalar
// for fields the LLM emits inconsistently. Arrays are joined with ", ";
// scalars are kept as-is. Any other shape is a decode error.
type FlexStringList string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("expected array of strings: %w", err)
		}
		cleaned := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(item); s != "" {
				cleaned = append(cleaned, s)
			}
		}
		*f = FlexStringList(strings.Join(cleaned, ", "))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Tolerate bare numbers the way a string field would
		var n json.Number
		if numErr := json.Unmarshal(data, &n); numErr == nil {
			*f = FlexStringList(n.String())
			return nil
		}
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*f = FlexStringList(strings.TrimSpace(s))
	return nil
}

func (f FlexStringList) String() string {
	return string(f)
}

// FlexInt accepts a JSON number or a numeric string, rejecting negatives.
// The LLM occasionally quotes years of experience.
type FlexInt struct {
	Value *int
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		f.Value = nil
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if strErr := json.Unmarshal(data, &s); strErr != nil {
			return fmt.Errorf("expected number: %w", err)
		}
		if _, scanErr := fmt.Sscanf(strings.TrimSpace(s), "%f", &n); scanErr != nil {
			f.Value = nil
			return nil
		}
	}
	if n < 0 {
		return fmt.Errorf("expected non-negative number, got %v", n)
	}
	v := int(n)
	f.Value = &v
	return nil
}

// CandidateExtract is the structured payload parsed from the resume
// analysis response.
type CandidateExtract struct {
	Name               string         `json:"name"`
	Email              string         `json:"email"`
	Mobile             string         `json:"mobile"`
	ExperienceSummary  string         `json:"experienceSummary"`
	Skills             FlexStringList `json:"skills"`
	DomainKnowledge    FlexStringList `json:"domainKnowledge"`
	AcademicBackground FlexStringList `json:"academicBackground"`
	YearsOfExperience  FlexInt        `json:"yearsOfExperience"`
}

// Validate checks the fields a usable extraction must carry.
func (e *CandidateExtract) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("extraction missing candidate name")
	}
	return nil
}
