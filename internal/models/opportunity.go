// internal/models/opportunity.go
package models

import (
	"strings"
	"time"
)

const (
	OpportunityStatusActive = "active"
	OpportunityStatusClosed = "closed"
	OpportunityStatusDraft  = "draft"
)

// Opportunity is a project or job posting seekers are matched against.
type Opportunity struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Requirements string    `json:"requirements"`
	Skills       []string  `json:"skills"`
	Vector       []float64 `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EmbeddingText is the text the opportunity's vector is derived from.
func (o *Opportunity) EmbeddingText() string {
	return joinText(o.Title, o.Description, o.Requirements, strings.Join(o.Skills, " "))
}

func (o *Opportunity) HasVector() bool {
	return len(o.Vector) > 0
}

func (o *Opportunity) IsActive() bool {
	return o.Status == OpportunityStatusActive
}
