// internal/workers/matching/rescore-seeker/models.go
package rescoreseeker

type Input struct {
	SeekerID string `json:"seekerId"`
	// Reembed recomputes the seeker vector first, for profile edits.
	Reembed bool `json:"reembed,omitempty"`
}

type Output struct {
	SeekerID    string `json:"seekerId"`
	ScoredPairs int    `json:"scoredPairs"`
	FailedPairs int    `json:"failedPairs"`
}
