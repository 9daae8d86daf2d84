// internal/models/score_record.go
package models

import "time"

// ScoreRecord is the persisted match between one opportunity and one seeker.
// There is at most one record per (OpportunityID, SeekerID).
type ScoreRecord struct {
	ID                string     `json:"id"`
	OpportunityID     string     `json:"opportunityId"`
	SeekerID          string     `json:"seekerId"`
	SemanticScore     float64    `json:"semanticScore"`
	SkillOverlapScore float64    `json:"skillOverlapScore"`
	ActivityScore     float64    `json:"activityScore"`
	ReadinessScore    float64    `json:"readinessScore"`
	FinalScore        float64    `json:"finalScore"`
	IsActive          bool       `json:"isActive"`
	TimesShown        int        `json:"timesShown"`
	LastShownAt       *time.Time `json:"lastShownAt,omitempty"`
}

// FeedEntry pairs a score record with its opportunity for ranking. It is
// never persisted.
type FeedEntry struct {
	Record          ScoreRecord `json:"record"`
	Opportunity     Opportunity `json:"opportunity"`
	VisibilityScore float64     `json:"visibilityScore"`
	Underexposed    bool        `json:"underexposed"`
}

// SkillMatch is one entry of a seeker's pending skill review.
type SkillMatch struct {
	Skill    string `json:"skill"`
	RepoName string `json:"repoName"`
	RepoURL  string `json:"repoUrl"`
}
