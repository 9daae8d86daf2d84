// Package jobstore tracks asynchronous analysis jobs: one registered job per
// user, append-only results and errors, and age-based eviction of finished
// jobs.
package jobstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/validation"
	"devmatch-workers/internal/models"
	"devmatch-workers/pkg/registry"

	"github.com/google/uuid"
)

// Store is the job registry shared by the submit path, the runner and pollers.
//
// Submit re-points the user's registration at the new job. The superseded job
// stays readable by id until it is evicted but is no longer returned by
// GetByUser, and IsCurrent reports false for it.
type Store interface {
	Submit(ctx context.Context, userID string, workUnits []string) (string, error)
	Get(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	GetByUser(ctx context.Context, userID string) (*models.AnalysisJob, error)
	Transition(ctx context.Context, jobID string, status models.JobStatus) error
	AppendResult(ctx context.Context, jobID string, result models.RepoAnalysis) error
	AppendError(ctx context.Context, jobID string, message string) error
	IsCurrent(ctx context.Context, jobID string) (bool, error)
	Evict(ctx context.Context, maxAge time.Duration) (int, error)
}

type Options struct {
	MaxWorkUnits int
	Now          func() time.Time
	NewID        func() string
}

func (o Options) withDefaults() Options {
	if o.MaxWorkUnits <= 0 {
		o.MaxWorkUnits = registry.DefaultMaxRepositories
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// ValidateWorkUnits checks a submission against the repository list schema.
// It returns a StandardError wrapping errors.ErrInvalidWorkUnits.
func ValidateWorkUnits(userID string, workUnits []string, maxUnits int) error {
	if strings.TrimSpace(userID) == "" {
		return errors.NewInvalidWorkUnitsError("user id is required")
	}
	if workUnits == nil {
		workUnits = []string{}
	}

	res, err := validation.Validate(registry.RepositoryListSchema(maxUnits), workUnits)
	if err != nil {
		return errors.Wrap(err, "validate work units")
	}
	if !res.Valid {
		return errors.NewInvalidWorkUnitsError(res.Error())
	}
	for _, u := range workUnits {
		if !validation.ValidateRepoURL(u) {
			return errors.NewInvalidWorkUnitsError(fmt.Sprintf("not an http(s) url: %q", u))
		}
	}
	return nil
}

func newJob(id, userID string, workUnits []string, now time.Time) *models.AnalysisJob {
	return &models.AnalysisJob{
		ID:        id,
		UserID:    userID,
		WorkUnits: append([]string(nil), workUnits...),
		Status:    models.JobStatusPending,
		CreatedAt: now,
		Results:   []models.RepoAnalysis{},
		Errors:    []string{},
	}
}

// applyTransition mutates job in place. Terminal targets stamp CompletedAt.
func applyTransition(job *models.AnalysisJob, to models.JobStatus, now time.Time) error {
	if !IsTransitionAllowed(job.Status, to) {
		return errors.NewInvalidTransitionError(string(job.Status), string(to))
	}
	job.Status = to
	if to.IsTerminal() {
		t := now
		job.CompletedAt = &t
	}
	return nil
}

func expired(job *models.AnalysisJob, cutoff time.Time) bool {
	return job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff)
}
