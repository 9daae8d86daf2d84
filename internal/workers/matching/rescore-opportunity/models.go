// internal/workers/matching/rescore-opportunity/models.go
package rescoreopportunity

type Input struct {
	OpportunityID string `json:"opportunityId"`
}

type Output struct {
	OpportunityID string `json:"opportunityId"`
	ScoredPairs   int    `json:"scoredPairs"`
	FailedPairs   int    `json:"failedPairs"`
}
