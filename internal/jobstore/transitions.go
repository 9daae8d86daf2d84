// internal/jobstore/transitions.go
package jobstore

import (
	"fmt"

	"devmatch-workers/internal/models"
)

// validTransitions is the job status graph:
//
//	pending ──► processing ──► completed
//	                 │
//	                 └───────► failed
//
// completed and failed are terminal.
var validTransitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusPending:    {models.JobStatusProcessing},
	models.JobStatusProcessing: {models.JobStatusCompleted, models.JobStatusFailed},
}

// ParseStatus converts a raw string to a JobStatus.
func ParseStatus(s string) (models.JobStatus, error) {
	st := models.JobStatus(s)
	switch st {
	case models.JobStatusPending, models.JobStatusProcessing, models.JobStatusCompleted, models.JobStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed reports whether from → to is an edge of the graph.
func IsTransitionAllowed(from, to models.JobStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
