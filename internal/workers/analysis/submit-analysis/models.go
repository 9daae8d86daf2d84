// internal/workers/analysis/submit-analysis/models.go
package submitanalysis

type Input struct {
	UserID   string   `json:"userId"`
	RepoURLs []string `json:"repoUrls"`
}

type Output struct {
	JobID       string `json:"analysisJobId"`
	JobStatus   string `json:"analysisJobStatus"`
	UnitCount   int    `json:"analysisUnitCount"`
	SubmittedAt string `json:"analysisSubmittedAt"`
}
