// internal/workers/analysis/accept-skills/handler.go
package acceptskills

import (
	"context"
	"encoding/json"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/metrics"
	"devmatch-workers/internal/common/validation"
	"devmatch-workers/internal/models"
	"devmatch-workers/internal/pipeline"
	"devmatch-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = registry.TaskAcceptSkills

type SkillReviewer interface {
	PendingSkills(ctx context.Context, userID string) ([]models.SkillMatch, error)
	AcceptSkills(ctx context.Context, userID string, skills []string) (*pipeline.AcceptResult, error)
	DismissAnalysis(ctx context.Context, userID string) error
}

type Handler struct {
	config       *Config
	service      SkillReviewer
	schema       *validation.Schema
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, reg *registry.ActivityRegistry, service SkillReviewer, log logger.Logger) *Handler {
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	switch {
	case input.Dismiss:
		if err := h.service.DismissAnalysis(ctx, input.UserID); err != nil {
			return nil, err
		}
		return &Output{Action: ActionDismissed}, nil

	case len(input.Skills) > 0:
		res, err := h.service.AcceptSkills(ctx, input.UserID, input.Skills)
		if err != nil {
			return nil, err
		}
		return &Output{Action: ActionAccepted, SkillsAdded: res.Added, Skills: res.Skills}, nil

	default:
		pending, err := h.service.PendingSkills(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		return &Output{Action: ActionListed, PendingSkills: pending}, nil
	}
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
			return nil, errors.NewInputValidationError(result.Error())
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInputValidationError("decode input: " + err.Error())
	}
	return &input, nil
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
