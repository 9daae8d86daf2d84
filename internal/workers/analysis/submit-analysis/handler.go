// internal/workers/analysis/submit-analysis/handler.go
package submitanalysis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/metrics"
	"devmatch-workers/internal/common/validation"
	"devmatch-workers/internal/models"
	"devmatch-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = registry.TaskSubmitAnalysis

// Submitter registers analysis jobs and hands them to the background runner.
type Submitter interface {
	SubmitAnalysis(ctx context.Context, userID string, repoURLs []string) (string, error)
}

type Handler struct {
	config       *Config
	service      Submitter
	schema       *validation.Schema
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, reg *registry.ActivityRegistry, service Submitter, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	h := &Handler{
		config:       config,
		service:      service,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
	if activity, ok := reg.Find(TaskType); ok {
		h.schema = validation.NewSchema(activity.InputSchema)
	}
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

// Execute returns as soon as the job is registered; analysis continues in
// the background and is polled through analysis-status.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	jobID, err := h.service.SubmitAnalysis(ctx, input.UserID, input.RepoURLs)
	if err != nil {
		return nil, err
	}

	h.logger.Info("analysis job submitted", map[string]interface{}{
		"userId":        input.UserID,
		"analysisJobId": jobID,
		"units":         len(input.RepoURLs),
	})

	return &Output{
		JobID:       jobID,
		JobStatus:   string(models.JobStatusPending),
		UnitCount:   len(input.RepoURLs),
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationError("parse job variables: " + err.Error())
	}

	if h.schema != nil {
		result, err := h.schema.Validate(variables)
		if err != nil {
			return nil, errors.NewInputValidationError(err.Error())
		}
		if !result.Valid {
			if touchesRepoURLs(result) {
				return nil, errors.NewInvalidWorkUnitsError(result.Error())
			}
			return nil, errors.NewInputValidationError(result.Error())
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInputValidationError("decode input: " + err.Error())
	}
	return &input, nil
}

// touchesRepoURLs reports whether any violation concerns the repository list,
// including its items ("repoUrls.0").
func touchesRepoURLs(result *validation.ValidationResult) bool {
	for _, e := range result.Errors {
		if e.Field == "repoUrls" || strings.HasPrefix(e.Field, "repoUrls.") {
			return true
		}
	}
	return false
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
