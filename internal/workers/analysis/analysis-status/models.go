// internal/workers/analysis/analysis-status/models.go
package analysisstatus

import (
	"time"

	"devmatch-workers/internal/models"
)

// Input names a job directly or asks for the user's current one.
type Input struct {
	JobID  string `json:"jobId,omitempty"`
	UserID string `json:"userId,omitempty"`
}

type Output struct {
	JobID              string                `json:"analysisJobId,omitempty"`
	JobStatus          string                `json:"analysisJobStatus,omitempty"`
	HasPendingAnalysis bool                  `json:"hasPendingAnalysis"`
	AnalysisComplete   bool                  `json:"analysisComplete"`
	Finished           bool                  `json:"analysisFinished"`
	Results            []models.RepoAnalysis `json:"analysisResults"`
	Errors             []string              `json:"analysisErrors"`
	CreatedAt          *time.Time            `json:"analysisCreatedAt,omitempty"`
	CompletedAt        *time.Time            `json:"analysisCompletedAt,omitempty"`
}
