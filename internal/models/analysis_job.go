// internal/models/analysis_job.go
package models

import "time"

// JobStatus is the lifecycle state of an AnalysisJob.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AnalysisJob is one asynchronous batch of repository analyses for a user.
type AnalysisJob struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	WorkUnits   []string       `json:"workUnits"`
	Status      JobStatus      `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Results     []RepoAnalysis `json:"results"`
	Errors      []string       `json:"errors"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (j *AnalysisJob) Clone() *AnalysisJob {
	if j == nil {
		return nil
	}
	out := *j
	out.WorkUnits = append([]string(nil), j.WorkUnits...)
	out.Errors = append([]string(nil), j.Errors...)
	if j.Results != nil {
		out.Results = make([]RepoAnalysis, len(j.Results))
		for i, r := range j.Results {
			out.Results[i] = r.Clone()
		}
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// RepoAnalysis is the structured result of analyzing one repository.
type RepoAnalysis struct {
	URL            string    `json:"url"`
	Name           string    `json:"name"`
	CommitsCount   int       `json:"commits_count"`
	Contributions  string    `json:"contributions"`
	SkillsDetected []string  `json:"skills_detected"`
	Languages      []string  `json:"languages"`
	Frameworks     []string  `json:"frameworks"`
	Summary        string    `json:"analysis_summary"`
	LastAnalyzed   time.Time `json:"last_analyzed"`
}

func (r RepoAnalysis) Clone() RepoAnalysis {
	r.SkillsDetected = append([]string(nil), r.SkillsDetected...)
	r.Languages = append([]string(nil), r.Languages...)
	r.Frameworks = append([]string(nil), r.Frameworks...)
	return r
}
