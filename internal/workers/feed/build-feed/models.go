// internal/workers/feed/build-feed/models.go
package buildfeed

type Input struct {
	SeekerID string `json:"seekerId"`
	Limit    int    `json:"limit,omitempty"`
}

type Output struct {
	SeekerID    string     `json:"seekerId"`
	Items       []FeedItem `json:"feedItems"`
	Size        int        `json:"feedSize"`
	GeneratedAt string     `json:"feedGeneratedAt"`
}

// FeedItem is the workflow-facing view of one ranked match.
type FeedItem struct {
	RecordID        string   `json:"scoreRecordId"`
	OpportunityID   string   `json:"opportunityId"`
	Title           string   `json:"title"`
	Skills          []string `json:"skills"`
	FinalScore      float64  `json:"finalScore"`
	VisibilityScore float64  `json:"visibilityScore"`
	Underexposed    bool     `json:"underexposed"`
	TimesShown      int      `json:"timesShown"`
}
