// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadRegistry reads an activity catalog exported to JSON.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	return &reg, nil
}

// Default returns the built-in catalog. maxRepositories bounds the
// submit-analysis input.
func Default(maxRepositories int) *ActivityRegistry {
	if maxRepositories <= 0 {
		maxRepositories = DefaultMaxRepositories
	}

	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2025-03-01",
		Activities: []Activity{
			{
				ID:          "submit-analysis",
				DisplayName: "Submit Repository Analysis",
				Description: "Registers an analysis job for a user's repositories and returns its id immediately",
				Category:    "analysis",
				Version:     "1.0.0",
				TaskType:    TaskSubmitAnalysis,
				InputSchema: objectSchema([]string{"userId", "repoUrls"}, map[string]interface{}{
					"userId":   idProperty(),
					"repoUrls": RepositoryListSchema(maxRepositories),
				}),
				ErrorCodes: []string{"INVALID_REPOSITORIES", "QUEUE_FULL"},
				Timeout:    "10s",
				Retries:    2,
				Tags:       []string{"analysis", "async"},
			},
			{
				ID:          "analysis-status",
				DisplayName: "Analysis Status",
				Description: "Polls an analysis job by id or by user",
				Category:    "analysis",
				Version:     "1.0.0",
				TaskType:    TaskAnalysisStatus,
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"jobId":  idProperty(),
						"userId": idProperty(),
					},
					"anyOf": []interface{}{
						map[string]interface{}{"required": []string{"jobId"}},
						map[string]interface{}{"required": []string{"userId"}},
					},
				},
				ErrorCodes: []string{"JOB_NOT_FOUND"},
				Timeout:    "5s",
				Tags:       []string{"analysis", "polling"},
			},
			{
				ID:          "accept-skills",
				DisplayName: "Accept Detected Skills",
				Description: "Merges skills from a finished analysis into the seeker profile, or dismisses the analysis",
				Category:    "analysis",
				Version:     "1.0.0",
				TaskType:    TaskAcceptSkills,
				InputSchema: objectSchema([]string{"userId"}, map[string]interface{}{
					"userId":  idProperty(),
					"dismiss": map[string]interface{}{"type": "boolean"},
					"skills": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string", "minLength": 1},
					},
				}),
				ErrorCodes: []string{"NO_PENDING_ANALYSIS", "SEEKER_NOT_FOUND", "PERSISTENCE_FAILED"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"analysis", "profile"},
			},
			{
				ID:          "rescore-opportunity",
				DisplayName: "Rescore Opportunity",
				Description: "Scores one opportunity against every active seeker",
				Category:    "matching",
				Version:     "1.0.0",
				TaskType:    TaskRescoreOpportunity,
				InputSchema: objectSchema([]string{"opportunityId"}, map[string]interface{}{
					"opportunityId": idProperty(),
				}),
				ErrorCodes: []string{"OPPORTUNITY_NOT_FOUND", "RESCORE_FAILED"},
				Timeout:    "120s",
				Retries:    3,
				Tags:       []string{"matching"},
			},
			{
				ID:          "rescore-seeker",
				DisplayName: "Rescore Seeker",
				Description: "Scores one seeker against every active opportunity",
				Category:    "matching",
				Version:     "1.0.0",
				TaskType:    TaskRescoreSeeker,
				InputSchema: objectSchema([]string{"seekerId"}, map[string]interface{}{
					"seekerId": idProperty(),
					"reembed":  map[string]interface{}{"type": "boolean"},
				}),
				ErrorCodes: []string{"SEEKER_NOT_FOUND", "RESCORE_FAILED"},
				Timeout:    "120s",
				Retries:    3,
				Tags:       []string{"matching"},
			},
			{
				ID:          "build-feed",
				DisplayName: "Build Feed",
				Description: "Ranks a seeker's active matches by visibility and records the exposure",
				Category:    "feed",
				Version:     "1.0.0",
				TaskType:    TaskBuildFeed,
				InputSchema: objectSchema([]string{"seekerId"}, map[string]interface{}{
					"seekerId": idProperty(),
					"limit":    map[string]interface{}{"type": "integer", "minimum": 0},
				}),
				ErrorCodes: []string{"SEEKER_NOT_FOUND", "FEED_BUILD_FAILED"},
				Timeout:    "10s",
				Retries:    2,
				Tags:       []string{"feed"},
			},
		},
	}
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// TaskTypes lists every registered task type in catalog order.
func (r *ActivityRegistry) TaskTypes() []string {
	out := make([]string, 0, len(r.Activities))
	for _, a := range r.Activities {
		out = append(out, a.TaskType)
	}
	return out
}

// Validate checks the catalog for duplicate ids and missing required fields.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool, len(r.Activities))
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: id")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity id: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: displayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: taskType", activity.ID)
		}
		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: category", activity.ID)
		}
	}
	return nil
}

// Save writes the catalog as indented JSON, creating parent directories.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
