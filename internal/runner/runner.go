// internal/runner/runner.go
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/metrics"
	"devmatch-workers/internal/common/observability"
	"devmatch-workers/internal/jobstore"
	"devmatch-workers/internal/models"

	"golang.org/x/time/rate"
)

// SupersededMessage is recorded on a job abandoned because its user
// submitted a newer one.
const SupersededMessage = "analysis superseded by a newer submission"

// Analyzer analyzes one work unit.
type Analyzer interface {
	Analyze(ctx context.Context, repoURL string) (*models.RepoAnalysis, error)
}

// FinishHook runs after a job reaches a terminal status.
type FinishHook func(ctx context.Context, job *models.AnalysisJob)

type Config struct {
	Workers            int
	QueueSize          int
	UnitTimeout        time.Duration
	RateLimitPerMinute float64
	CancelSuperseded   bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.UnitTimeout <= 0 {
		c.UnitTimeout = 60 * time.Second
	}
	return c
}

// Runner drains analysis jobs on a fixed pool of goroutines. Callers hand
// off job ids with Enqueue and never wait on analysis.
type Runner struct {
	store    jobstore.Store
	analyzer Analyzer
	cfg      Config
	limiter  *rate.Limiter
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time

	queue chan string

	mu      sync.Mutex
	hooks   []FinishHook
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(store jobstore.Store, analyzer Analyzer, cfg Config, obs *observability.Observability, log logger.Logger) *Runner {
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.RateLimitPerMinute > 0 {
		limit = rate.Limit(cfg.RateLimitPerMinute / 60)
	}

	return &Runner{
		store:    store,
		analyzer: analyzer,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "job-runner"}),
		now:      time.Now,
		queue:    make(chan string, cfg.QueueSize),
	}
}

// OnFinish registers a hook. Hooks run in registration order on the worker
// goroutine that finished the job.
func (r *Runner) OnFinish(hook FinishHook) {
	r.mu.Lock()
	r.hooks = append(r.hooks, hook)
	r.mu.Unlock()
}

// Start launches the worker pool. ctx bounds the lifetime of the pool, not
// of any single request.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}

	r.logger.Info("job runner started", map[string]interface{}{
		"workers":   r.cfg.Workers,
		"queueSize": r.cfg.QueueSize,
	})
}

// Stop cancels in-flight analysis and waits for the workers to exit. Jobs
// interrupted by Stop are still finalized.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.logger.Info("job runner stopped", nil)
}

// Enqueue hands jobID to the pool. If the queue is full it waits until ctx
// ends and then reports ErrQueueFull.
func (r *Runner) Enqueue(ctx context.Context, jobID string) error {
	select {
	case r.queue <- jobID:
		metrics.AnalysisQueueDepth.Inc()
		return nil
	default:
	}

	select {
	case r.queue <- jobID:
		metrics.AnalysisQueueDepth.Inc()
		return nil
	case <-ctx.Done():
		r.logger.Warn("analysis queue full", map[string]interface{}{"jobId": jobID})
		return errors.NewQueueFullError("analysis")
	}
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-r.queue:
			metrics.AnalysisQueueDepth.Dec()
			r.Process(ctx, jobID)
		}
	}
}

// Process runs one job to a terminal status. Store failures are logged and
// end processing; they are never returned.
func (r *Runner) Process(ctx context.Context, jobID string) {
	log := r.logger.WithFields(map[string]interface{}{"jobId": jobID})
	// Store writes must land even after the pool is told to stop.
	storeCtx := context.WithoutCancel(ctx)
	started := r.now()

	job, err := r.store.Get(storeCtx, jobID)
	if err != nil {
		log.Warn("job not found, skipping", map[string]interface{}{"error": err})
		return
	}
	if err := r.store.Transition(storeCtx, jobID, models.JobStatusProcessing); err != nil {
		log.Warn("cannot start job", map[string]interface{}{"error": err, "status": string(job.Status)})
		return
	}

	log.Info("processing analysis job", map[string]interface{}{
		"userId": job.UserID,
		"units":  len(job.WorkUnits),
	})

	succeeded := 0
	for _, unit := range job.WorkUnits {
		if r.cfg.CancelSuperseded && r.superseded(storeCtx, jobID) {
			log.Info("job superseded, stopping", nil)
			r.appendError(storeCtx, log, jobID, SupersededMessage)
			break
		}

		if ctx.Err() != nil {
			r.appendError(storeCtx, log, jobID, fmt.Sprintf("Failed to analyze %s: %s", unit, "runner shutting down"))
			continue
		}

		result, err := r.analyzeUnit(ctx, unit)
		if err != nil {
			log.Warn("work unit failed", map[string]interface{}{"unit": unit, "error": err})
			r.appendError(storeCtx, log, jobID, fmt.Sprintf("Failed to analyze %s: %s", unit, reason(err)))
			continue
		}

		if err := r.store.AppendResult(storeCtx, jobID, *result); err != nil {
			log.Error("failed to store result", map[string]interface{}{"unit": unit, "error": err})
			continue
		}
		succeeded++
	}

	final := models.JobStatusFailed
	if succeeded > 0 {
		final = models.JobStatusCompleted
	}
	if err := r.store.Transition(storeCtx, jobID, final); err != nil {
		log.Error("failed to finalize job", map[string]interface{}{"error": err, "status": string(final)})
		return
	}

	elapsed := r.now().Sub(started)
	metrics.AnalysisJobsFinished.WithLabelValues(string(final)).Inc()
	r.obs.RecordJobProcessed(storeCtx, string(final))
	r.obs.RecordJobDuration(storeCtx, elapsed, string(final))

	log.Info("analysis job finished", map[string]interface{}{
		"status":    string(final),
		"succeeded": succeeded,
		"duration":  elapsed.String(),
	})

	done, err := r.store.Get(storeCtx, jobID)
	if err != nil {
		log.Error("failed to reload finished job", map[string]interface{}{"error": err})
		return
	}
	r.runHooks(storeCtx, done)
}

func (r *Runner) analyzeUnit(ctx context.Context, unit string) (*models.RepoAnalysis, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		r.recordUnit(ctx, "failed", 0)
		return nil, errors.Wrap(err, "rate limiter")
	}

	unitCtx, cancel := context.WithTimeout(ctx, r.cfg.UnitTimeout)
	defer cancel()

	start := r.now()
	result, err := r.analyzer.Analyze(unitCtx, unit)
	elapsed := r.now().Sub(start)

	switch {
	case err == nil && result == nil:
		err = errors.NewMalformedAnalysisError("empty result")
	case err != nil && errors.Is(unitCtx.Err(), context.DeadlineExceeded):
		r.recordUnit(ctx, "timeout", elapsed)
		return nil, errors.NewAnalysisTimeoutError(unit)
	}
	if err != nil {
		r.recordUnit(ctx, "failed", elapsed)
		return nil, err
	}

	r.recordUnit(ctx, "success", elapsed)
	return result, nil
}

func (r *Runner) recordUnit(ctx context.Context, outcome string, elapsed time.Duration) {
	metrics.AnalysisUnits.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		metrics.AnalysisUnitDuration.Observe(elapsed.Seconds())
	}
	r.obs.RecordUnit(context.WithoutCancel(ctx), outcome)
}

func (r *Runner) superseded(ctx context.Context, jobID string) bool {
	current, err := r.store.IsCurrent(ctx, jobID)
	if err != nil {
		// Unknown state: keep going rather than drop work.
		r.logger.Warn("supersession check failed", map[string]interface{}{"jobId": jobID, "error": err})
		return false
	}
	return !current
}

func (r *Runner) appendError(ctx context.Context, log logger.Logger, jobID, msg string) {
	if err := r.store.AppendError(ctx, jobID, msg); err != nil {
		log.Error("failed to record unit error", map[string]interface{}{"error": err})
	}
}

func (r *Runner) runHooks(ctx context.Context, job *models.AnalysisJob) {
	r.mu.Lock()
	hooks := append([]FinishHook(nil), r.hooks...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx, job.Clone())
	}
}

// reason renders an analysis error for the job's error list.
func reason(err error) string {
	var stdErr *errors.StandardError
	if errors.As(err, &stdErr) {
		switch stdErr.Code {
		case errors.ErrCodeAnalysisTimeout:
			return "analysis timed out"
		case errors.ErrCodeMalformedAnalysis:
			return "unreadable analysis result"
		}
		if cause := errors.Unwrap(stdErr); cause != nil {
			return cause.Error()
		}
	}
	return err.Error()
}
