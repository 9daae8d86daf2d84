// internal/workers/analysis/accept-skills/models.go
package acceptskills

import "devmatch-workers/internal/models"

// Input with neither skills nor dismiss only lists the pending skills.
type Input struct {
	UserID  string   `json:"userId"`
	Skills  []string `json:"skills,omitempty"`
	Dismiss bool     `json:"dismiss,omitempty"`
}

type Output struct {
	Action        string              `json:"skillReviewAction"`
	SkillsAdded   int                 `json:"skillsAdded"`
	Skills        []string            `json:"profileSkills,omitempty"`
	PendingSkills []models.SkillMatch `json:"pendingSkills,omitempty"`
}

const (
	ActionListed    = "listed"
	ActionAccepted  = "accepted"
	ActionDismissed = "dismissed"
)
