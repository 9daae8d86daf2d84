// internal/workers/analysis/submit-analysis/handler_test.go
package submitanalysis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"devmatch-workers/internal/common/config"
	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Service
// ==========================

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitAnalysis(ctx context.Context, userID string, repoURLs []string) (string, error) {
	args := m.Called(ctx, userID, repoURLs)
	return args.String(0), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, service Submitter) *Handler {
	return NewHandler(&Config{Enabled: true, Timeout: 5 * time.Second}, registry.Default(3), service, logger.NewTestLogger(t))
}

func createMockJob(variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                1,
		Type:               TaskType,
		ProcessInstanceKey: 10,
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	service := new(MockSubmitter)
	urls := []string{"https://github.com/octo/a", "https://github.com/octo/b"}
	service.On("SubmitAnalysis", mock.Anything, "user-1", urls).Return("job-1", nil)

	h := createTestHandler(t, service)
	output, err := h.Execute(context.Background(), &Input{UserID: "user-1", RepoURLs: urls})

	require.NoError(t, err)
	assert.Equal(t, "job-1", output.JobID)
	assert.Equal(t, "pending", output.JobStatus)
	assert.Equal(t, 2, output.UnitCount)
	assert.NotEmpty(t, output.SubmittedAt)
	service.AssertExpectations(t)
}

func TestHandler_Execute_PropagatesServiceError(t *testing.T) {
	service := new(MockSubmitter)
	service.On("SubmitAnalysis", mock.Anything, "user-1", mock.Anything).
		Return("job-1", errors.NewQueueFullError("analysis"))

	h := createTestHandler(t, service)
	_, err := h.Execute(context.Background(), &Input{UserID: "user-1", RepoURLs: []string{"https://github.com/octo/a"}})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueueFull, errors.AsStandard(err).Code)
}

// ==========================
// Input Validation Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
		wantCode  errors.ErrorCode
	}{
		{
			name:      "valid input",
			variables: map[string]interface{}{"userId": "user-1", "repoUrls": []string{"https://github.com/octo/a"}},
		},
		{
			name:      "missing user",
			variables: map[string]interface{}{"repoUrls": []string{"https://github.com/octo/a"}},
			wantCode:  errors.ErrCodeInputValidationFailed,
		},
		{
			name:      "empty repository list",
			variables: map[string]interface{}{"userId": "user-1", "repoUrls": []string{}},
			wantCode:  errors.ErrCodeInvalidWorkUnits,
		},
		{
			name: "too many repositories",
			variables: map[string]interface{}{"userId": "user-1", "repoUrls": []string{
				"https://a.io/1", "https://a.io/2", "https://a.io/3", "https://a.io/4",
			}},
			wantCode: errors.ErrCodeInvalidWorkUnits,
		},
		{
			name:      "repository is not a url",
			variables: map[string]interface{}{"userId": "user-1", "repoUrls": []string{"octo/a"}},
			wantCode:  errors.ErrCodeInvalidWorkUnits,
		},
	}

	h := createTestHandler(t, new(MockSubmitter))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(tt.variables))
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "user-1", input.UserID)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.AsStandard(err).Code)
		})
	}
}

func TestHandler_ParseInput_BadJSON(t *testing.T) {
	h := createTestHandler(t, new(MockSubmitter))
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Variables: "{not json"}}

	_, err := h.parseInput(job)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.AsStandard(err).Code)
}

func TestLoadConfig_UsesWorkerDefaults(t *testing.T) {
	cfg := LoadConfig(&config.Config{})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	cfg = LoadConfig(&config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false},
	}})
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}
