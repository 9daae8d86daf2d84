// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"strings"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/metrics"
	"devmatch-workers/internal/feed"
	"devmatch-workers/internal/jobstore"
	"devmatch-workers/internal/models"
	"devmatch-workers/internal/notify"
	"devmatch-workers/internal/repository"
	"devmatch-workers/internal/scoring"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

type Rescorer interface {
	TriggerOpportunity(opportunityID string) bool
	TriggerSeeker(seekerID string) bool
	TriggerProfileEdit(seekerID string) bool
}

type FeedBuilder interface {
	BuildFeed(ctx context.Context, seekerID string, limit int, isFresh bool) (*feed.Feed, error)
	ScheduleExposure(recordIDs []string) bool
}

type Deps struct {
	Store    jobstore.Store
	Runner   Enqueuer
	Seekers  repository.SeekerRepository
	Rescorer Rescorer
	Feed     FeedBuilder
	Notifier notify.Notifier
}

type Config struct {
	EnqueueTimeout time.Duration
	FreshWindow    time.Duration
}

// Pipeline is the surface the workflow workers call. Seeker ids and user ids
// are the same identifier.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger logger.Logger
	now    func() time.Time
}

func New(deps Deps, cfg Config, log logger.Logger) *Pipeline {
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 2 * time.Second
	}
	if cfg.FreshWindow <= 0 {
		cfg.FreshWindow = scoring.DefaultFreshWindow
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Pipeline{
		deps:   deps,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "pipeline"}),
		now:    time.Now,
	}
}

// ==========================
// Analysis jobs
// ==========================

// SubmitAnalysis registers a job and hands it to the runner. If the runner
// cannot take it the job is failed right away so pollers never see it hang.
func (p *Pipeline) SubmitAnalysis(ctx context.Context, userID string, repoURLs []string) (string, error) {
	jobID, err := p.deps.Store.Submit(ctx, userID, repoURLs)
	if err != nil {
		return "", err
	}
	metrics.AnalysisJobsSubmitted.Inc()

	enqueueCtx, cancel := context.WithTimeout(ctx, p.cfg.EnqueueTimeout)
	defer cancel()

	if err := p.deps.Runner.Enqueue(enqueueCtx, jobID); err != nil {
		p.abandon(context.WithoutCancel(ctx), jobID, err)
		return jobID, err
	}

	p.logger.Info("analysis submitted", map[string]interface{}{
		"jobId":  jobID,
		"userId": userID,
		"units":  len(repoURLs),
	})
	return jobID, nil
}

func (p *Pipeline) abandon(ctx context.Context, jobID string, cause error) {
	log := p.logger.WithFields(map[string]interface{}{"jobId": jobID})
	log.Warn("could not queue analysis job", map[string]interface{}{"error": cause})

	if err := p.deps.Store.Transition(ctx, jobID, models.JobStatusProcessing); err != nil {
		log.Error("failed to abandon job", map[string]interface{}{"error": err})
		return
	}
	if err := p.deps.Store.AppendError(ctx, jobID, "Analysis could not be scheduled: "+cause.Error()); err != nil {
		log.Error("failed to record abandon reason", map[string]interface{}{"error": err})
	}
	if err := p.deps.Store.Transition(ctx, jobID, models.JobStatusFailed); err != nil {
		log.Error("failed to abandon job", map[string]interface{}{"error": err})
	}
}

func (p *Pipeline) JobStatus(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return p.deps.Store.Get(ctx, jobID)
}

func (p *Pipeline) UserJob(ctx context.Context, userID string) (*models.AnalysisJob, error) {
	return p.deps.Store.GetByUser(ctx, userID)
}

type AnalysisStatus struct {
	HasPendingAnalysis bool   `json:"hasPendingAnalysis"`
	AnalysisComplete   bool   `json:"analysisComplete"`
	JobID              string `json:"jobId,omitempty"`
	JobStatus          string `json:"jobStatus,omitempty"`
}

// AnalysisStatus reports the user's current job, or the seeker's
// notification flag when no job is registered any more.
func (p *Pipeline) AnalysisStatus(ctx context.Context, userID string) (*AnalysisStatus, error) {
	job, err := p.deps.Store.GetByUser(ctx, userID)
	if err == nil {
		return &AnalysisStatus{
			HasPendingAnalysis: true,
			AnalysisComplete:   job.Status == models.JobStatusCompleted,
			JobID:              job.ID,
			JobStatus:          string(job.Status),
		}, nil
	}
	if !errors.Is(err, errors.ErrJobNotFound) {
		return nil, err
	}

	seeker, err := p.deps.Seekers.GetSeeker(ctx, userID)
	if errors.Is(err, errors.ErrSeekerNotFound) {
		return &AnalysisStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &AnalysisStatus{
		HasPendingAnalysis: seeker.AnalysisNotification,
		AnalysisComplete:   seeker.AnalysisNotification,
	}, nil
}

// HandleJobFinished is registered as the runner's finish hook.
func (p *Pipeline) HandleJobFinished(ctx context.Context, job *models.AnalysisJob) {
	log := p.logger.WithFields(map[string]interface{}{"jobId": job.ID, "userId": job.UserID})

	current, err := p.deps.Store.IsCurrent(ctx, job.ID)
	if err != nil {
		log.Warn("cannot tell whether job is current", map[string]interface{}{"error": err})
	}
	if err == nil && !current {
		log.Info("job was superseded, discarding its results", nil)
		return
	}

	if job.Status == models.JobStatusCompleted {
		p.storeResults(ctx, log, job)
	}

	if err := p.deps.Notifier.AnalysisFinished(ctx, notify.NewAnalysisFinished(job)); err != nil {
		log.Warn("analysis notification failed", map[string]interface{}{"error": err})
	}
}

func (p *Pipeline) storeResults(ctx context.Context, log logger.Logger, job *models.AnalysisJob) {
	if err := p.deps.Seekers.SavePendingAnalysis(ctx, job.UserID, job.Results); err != nil {
		log.Error("failed to save pending analysis", map[string]interface{}{"error": err})
		return
	}

	portfolio := scoring.PortfolioScore(job.Results)
	if err := p.deps.Seekers.UpdatePortfolio(ctx, job.UserID, float64(portfolio.Score), string(portfolio.Rank)); err != nil {
		log.Warn("failed to update portfolio score", map[string]interface{}{"error": err})
	}

	p.deps.Rescorer.TriggerSeeker(job.UserID)
}

// ==========================
// Skill review
// ==========================

// PendingSkills flattens the seeker's pending analysis into one entry per
// detected skill. A completed job not yet copied onto the seeker is copied
// first.
func (p *Pipeline) PendingSkills(ctx context.Context, userID string) ([]models.SkillMatch, error) {
	seeker, err := p.deps.Seekers.GetSeeker(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending := seeker.PendingAnalysis
	if len(pending) == 0 {
		job, err := p.deps.Store.GetByUser(ctx, userID)
		if err == nil && job.Status == models.JobStatusCompleted && len(job.Results) > 0 {
			if err := p.deps.Seekers.SavePendingAnalysis(ctx, userID, job.Results); err != nil {
				return nil, err
			}
			pending = job.Results
		}
	}

	matches := make([]models.SkillMatch, 0)
	for _, repo := range pending {
		name := repo.Name
		if name == "" {
			name = "Unknown"
		}
		for _, skill := range repo.SkillsDetected {
			matches = append(matches, models.SkillMatch{Skill: skill, RepoName: name, RepoURL: repo.URL})
		}
	}
	return matches, nil
}

type AcceptResult struct {
	Added  int      `json:"added"`
	Skills []string `json:"skills"`
}

// AcceptSkills merges the accepted skills into the profile, clears the
// pending analysis and queues re-embedding and rescoring.
func (p *Pipeline) AcceptSkills(ctx context.Context, userID string, accepted []string) (*AcceptResult, error) {
	seeker, err := p.deps.Seekers.GetSeeker(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(seeker.PendingAnalysis) == 0 {
		return nil, errors.NewNoPendingAnalysisError(userID)
	}

	merged, added := MergeSkills(seeker.Skills, accepted)
	if err := p.deps.Seekers.AcceptPendingSkills(ctx, userID, merged); err != nil {
		return nil, err
	}
	p.deps.Rescorer.TriggerProfileEdit(userID)

	p.logger.Info("skills accepted", map[string]interface{}{"userId": userID, "added": added})
	return &AcceptResult{Added: added, Skills: merged}, nil
}

func (p *Pipeline) DismissAnalysis(ctx context.Context, userID string) error {
	return p.deps.Seekers.ClearPendingAnalysis(ctx, userID)
}

// MergeSkills appends the accepted skills that are not already held,
// comparing case-insensitively, and returns how many were added.
func MergeSkills(held, accepted []string) ([]string, int) {
	seen := make(map[string]struct{}, len(held)+len(accepted))
	out := make([]string, 0, len(held)+len(accepted))
	for _, s := range held {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, ok := seen[key]; ok || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	added := 0
	for _, s := range accepted {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		added++
	}
	return out, added
}

// ==========================
// Matching and feed
// ==========================

func (p *Pipeline) OpportunityCreated(opportunityID string) bool {
	return p.deps.Rescorer.TriggerOpportunity(opportunityID)
}

func (p *Pipeline) ProfileEdited(seekerID string) bool {
	return p.deps.Rescorer.TriggerProfileEdit(seekerID)
}

// Feed builds the seeker's ranked feed and schedules the exposure update.
func (p *Pipeline) Feed(ctx context.Context, seekerID string, limit int) (*feed.Feed, error) {
	seeker, err := p.deps.Seekers.GetSeeker(ctx, seekerID)
	if err != nil {
		return nil, err
	}

	isFresh := scoring.IsFresh(seeker.CreatedAt, p.now(), p.cfg.FreshWindow)
	f, err := p.deps.Feed.BuildFeed(ctx, seekerID, limit, isFresh)
	if err != nil {
		return nil, err
	}

	p.deps.Feed.ScheduleExposure(f.RecordIDs)
	return f, nil
}
