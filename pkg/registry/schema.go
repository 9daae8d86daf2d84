// pkg/registry/schema.go
package registry

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one workflow task type the worker manager serves.
type Activity struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version"`
	TaskType     string                 `json:"taskType"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Retries      int                    `json:"retries"`
	Tags         []string               `json:"tags"`
}

// Task types served by the worker manager.
const (
	TaskSubmitAnalysis     = "submit-analysis"
	TaskAnalysisStatus     = "analysis-status"
	TaskAcceptSkills       = "accept-skills"
	TaskRescoreOpportunity = "rescore-opportunity"
	TaskRescoreSeeker      = "rescore-seeker"
	TaskBuildFeed          = "build-feed"
)

// DefaultMaxRepositories bounds a single analysis submission.
const DefaultMaxRepositories = 5

const repoURLPattern = `^https?://[^\s/$.?#][^\s]*$`

// RepositoryListSchema validates a list of 1..maxItems repository URLs.
func RepositoryListSchema(maxItems int) map[string]interface{} {
	return map[string]interface{}{
		"type":     "array",
		"minItems": 1,
		"maxItems": maxItems,
		"items": map[string]interface{}{
			"type":    "string",
			"pattern": repoURLPattern,
		},
	}
}

func idProperty() map[string]interface{} {
	return map[string]interface{}{"type": "string", "minLength": 1}
}

func objectSchema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"required":   required,
		"properties": props,
	}
}
