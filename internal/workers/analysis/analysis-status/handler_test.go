// internal/workers/analysis/analysis-status/handler_test.go
package analysisstatus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/models"
	"devmatch-workers/internal/pipeline"
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

type MockStatusReader struct {
	mock.Mock
}

func (m *MockStatusReader) JobStatus(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	args := m.Called(ctx, jobID)
	job, _ := args.Get(0).(*models.AnalysisJob)
	return job, args.Error(1)
}

func (m *MockStatusReader) AnalysisStatus(ctx context.Context, userID string) (*pipeline.AnalysisStatus, error) {
	args := m.Called(ctx, userID)
	status, _ := args.Get(0).(*pipeline.AnalysisStatus)
	return status, args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, service StatusReader) *Handler {
	return NewHandler(&Config{Enabled: true, Timeout: time.Second}, registry.Default(0), service, logger.NewTestLogger(t))
}

func createMockJob(variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       2,
		Type:      TaskType,
		Retries:   3,
		Variables: string(variablesJSON),
	}}
}

func completedJob() *models.AnalysisJob {
	done := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.AnalysisJob{
		ID:          "job-1",
		UserID:      "user-1",
		Status:      models.JobStatusCompleted,
		WorkUnits:   []string{"https://github.com/octo/a", "https://github.com/octo/b"},
		Results:     []models.RepoAnalysis{{URL: "https://github.com/octo/a", Name: "a"}},
		Errors:      []string{"Failed to analyze https://github.com/octo/b: analysis timed out"},
		CreatedAt:   done.Add(-time.Minute),
		CompletedAt: &done,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		setup    func(m *MockStatusReader)
		validate func(t *testing.T, out *Output)
	}{
		{
			name:  "by job id",
			input: &Input{JobID: "job-1"},
			setup: func(m *MockStatusReader) {
				m.On("JobStatus", mock.Anything, "job-1").Return(completedJob(), nil)
			},
			validate: func(t *testing.T, out *Output) {
				assert.Equal(t, "job-1", out.JobID)
				assert.Equal(t, "completed", out.JobStatus)
				assert.True(t, out.AnalysisComplete)
				assert.True(t, out.Finished)
				assert.Len(t, out.Results, 1)
				assert.Len(t, out.Errors, 1)
				require.NotNil(t, out.CompletedAt)
			},
		},
		{
			name:  "by user with a registered job",
			input: &Input{UserID: "user-1"},
			setup: func(m *MockStatusReader) {
				m.On("AnalysisStatus", mock.Anything, "user-1").
					Return(&pipeline.AnalysisStatus{HasPendingAnalysis: true, JobID: "job-1", JobStatus: "completed"}, nil)
				m.On("JobStatus", mock.Anything, "job-1").Return(completedJob(), nil)
			},
			validate: func(t *testing.T, out *Output) {
				assert.Equal(t, "job-1", out.JobID)
				assert.True(t, out.HasPendingAnalysis)
			},
		},
		{
			name:  "processing job is not finished",
			input: &Input{JobID: "job-2"},
			setup: func(m *MockStatusReader) {
				m.On("JobStatus", mock.Anything, "job-2").
					Return(&models.AnalysisJob{ID: "job-2", Status: models.JobStatusProcessing}, nil)
			},
			validate: func(t *testing.T, out *Output) {
				assert.False(t, out.Finished)
				assert.False(t, out.AnalysisComplete)
				assert.NotNil(t, out.Results)
				assert.NotNil(t, out.Errors)
			},
		},
		{
			name:  "by user after eviction",
			input: &Input{UserID: "user-1"},
			setup: func(m *MockStatusReader) {
				m.On("AnalysisStatus", mock.Anything, "user-1").
					Return(&pipeline.AnalysisStatus{HasPendingAnalysis: true, AnalysisComplete: true}, nil)
			},
			validate: func(t *testing.T, out *Output) {
				assert.Empty(t, out.JobID)
				assert.True(t, out.HasPendingAnalysis)
				assert.True(t, out.AnalysisComplete)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockStatusReader)
			tt.setup(service)

			out, err := createTestHandler(t, service).Execute(context.Background(), tt.input)
			require.NoError(t, err)
			tt.validate(t, out)
			service.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_UnknownJob(t *testing.T) {
	service := new(MockStatusReader)
	service.On("JobStatus", mock.Anything, "missing").Return(nil, errors.NewJobNotFoundError("missing"))

	_, err := createTestHandler(t, service).Execute(context.Background(), &Input{JobID: "missing"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeJobNotFound, errors.AsStandard(err).Code)
}

// ==========================
// Input Validation Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, new(MockStatusReader))

	input, err := h.parseInput(createMockJob(map[string]interface{}{"jobId": "job-1"}))
	require.NoError(t, err)
	assert.Equal(t, "job-1", input.JobID)

	input, err = h.parseInput(createMockJob(map[string]interface{}{"userId": "user-1"}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", input.UserID)

	_, err = h.parseInput(createMockJob(map[string]interface{}{"other": "x"}))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.AsStandard(err).Code)
}
