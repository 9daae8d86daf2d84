// internal/models/seeker.go
package models

import (
	"strings"
	"time"
)

type Seeker struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Bio                  string         `json:"bio"`
	Skills               []string       `json:"skills"`
	Vector               []float64      `json:"-"`
	ActivityScore        float64        `json:"activityScore"`
	PortfolioScore       float64        `json:"portfolioScore"`
	PortfolioRank        string         `json:"portfolioRank,omitempty"`
	IsActive             bool           `json:"isActive"`
	CreatedAt            time.Time      `json:"createdAt"`
	PendingAnalysis      []RepoAnalysis `json:"pendingAnalysis,omitempty"`
	AnalysisNotification bool           `json:"analysisNotification"`
}

// EmbeddingText is the text the seeker's vector is derived from.
func (s *Seeker) EmbeddingText() string {
	return joinText(s.Name, s.Bio, strings.Join(s.Skills, " "))
}

func (s *Seeker) HasVector() bool {
	return len(s.Vector) > 0
}

func joinText(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
