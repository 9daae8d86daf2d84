// internal/jobstore/memory.go
package jobstore

import (
	"context"
	"sync"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/models"
)

// MemoryStore keeps jobs in process memory behind a single mutex.
type MemoryStore struct {
	opts Options

	mu     sync.Mutex
	jobs   map[string]*models.AnalysisJob
	byUser map[string]string
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:   opts.withDefaults(),
		jobs:   make(map[string]*models.AnalysisJob),
		byUser: make(map[string]string),
	}
}

func (s *MemoryStore) Submit(_ context.Context, userID string, workUnits []string) (string, error) {
	if err := ValidateWorkUnits(userID, workUnits, s.opts.MaxWorkUnits); err != nil {
		return "", err
	}

	id := s.opts.NewID()
	job := newJob(id, userID, workUnits, s.opts.Now())

	s.mu.Lock()
	s.jobs[id] = job
	s.byUser[userID] = id
	s.mu.Unlock()

	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.NewJobNotFoundError(jobID)
	}
	return job.Clone(), nil
}

func (s *MemoryStore) GetByUser(_ context.Context, userID string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUser[userID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "no job for user %s", userID)
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewJobNotFoundError(id)
	}
	return job.Clone(), nil
}

func (s *MemoryStore) Transition(_ context.Context, jobID string, status models.JobStatus) error {
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return errors.NewJobNotFoundError(jobID)
	}
	return applyTransition(job, status, now)
}

func (s *MemoryStore) AppendResult(_ context.Context, jobID string, result models.RepoAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return errors.NewJobNotFoundError(jobID)
	}
	job.Results = append(job.Results, result.Clone())
	return nil
}

func (s *MemoryStore) AppendError(_ context.Context, jobID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return errors.NewJobNotFoundError(jobID)
	}
	job.Errors = append(job.Errors, message)
	return nil
}

func (s *MemoryStore) IsCurrent(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, errors.NewJobNotFoundError(jobID)
	}
	return s.byUser[job.UserID] == jobID, nil
}

func (s *MemoryStore) Evict(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.opts.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, job := range s.jobs {
		if !expired(job, cutoff) {
			continue
		}
		delete(s.jobs, id)
		if s.byUser[job.UserID] == id {
			delete(s.byUser, job.UserID)
		}
		evicted++
	}
	return evicted, nil
}

// Len returns the number of tracked jobs, superseded ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
