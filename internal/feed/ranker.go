// internal/feed/ranker.go
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/metrics"
	"devmatch-workers/internal/models"
	"devmatch-workers/internal/scoring"
)

type Repository interface {
	ListFeedCandidates(ctx context.Context, seekerID string) ([]models.FeedEntry, error)
	IncrementExposure(ctx context.Context, recordIDs []string, shownAt time.Time) error
}

type Config struct {
	DefaultLimit      int
	MaxLimit          int
	ExposureWorkers   int
	ExposureQueueSize int
	ExposureTimeout   time.Duration
}

type Feed struct {
	SeekerID    string             `json:"seekerId"`
	Entries     []models.FeedEntry `json:"entries"`
	RecordIDs   []string           `json:"recordIds"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

type Ranker struct {
	repo   Repository
	cfg    Config
	logger logger.Logger
	now    func() time.Time

	exposures chan []string

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRanker(repo Repository, cfg Config, log logger.Logger) *Ranker {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.ExposureWorkers <= 0 {
		cfg.ExposureWorkers = 1
	}
	if cfg.ExposureQueueSize <= 0 {
		cfg.ExposureQueueSize = 256
	}
	if cfg.ExposureTimeout <= 0 {
		cfg.ExposureTimeout = 5 * time.Second
	}
	return &Ranker{
		repo:      repo,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "feed-ranker"}),
		now:       time.Now,
		exposures: make(chan []string, cfg.ExposureQueueSize),
	}
}

// BuildFeed ranks the seeker's active matches by visibility and keeps the
// top limit. limit <= 0 selects the default; limits above MaxLimit are capped.
func (r *Ranker) BuildFeed(ctx context.Context, seekerID string, limit int, isFresh bool) (*Feed, error) {
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}
	if limit > r.cfg.MaxLimit {
		limit = r.cfg.MaxLimit
	}

	candidates, err := r.repo.ListFeedCandidates(ctx, seekerID)
	if err != nil {
		return nil, errors.NewFeedBuildFailedError(seekerID, err)
	}

	entries := Rank(candidates, isFresh)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Record.ID
	}

	metrics.FeedBuilds.Inc()
	r.logger.Debug("feed built", map[string]interface{}{
		"seekerId":   seekerID,
		"candidates": len(candidates),
		"returned":   len(entries),
	})

	return &Feed{SeekerID: seekerID, Entries: entries, RecordIDs: ids, GeneratedAt: r.now().UTC()}, nil
}

// Rank scores entries for visibility and orders them: highest visibility
// first, then newest opportunity, then opportunity id descending. Inactive
// records and opportunities are dropped.
func Rank(entries []models.FeedEntry, isFresh bool) []models.FeedEntry {
	out := make([]models.FeedEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Record.IsActive || !e.Opportunity.IsActive() {
			continue
		}
		e.Underexposed = scoring.IsUnderexposed(e.Record.FinalScore, e.Record.TimesShown)
		e.VisibilityScore = scoring.VisibilityScore(e.Record.FinalScore, e.Record.TimesShown, isFresh, e.Underexposed)
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.VisibilityScore != b.VisibilityScore {
			return a.VisibilityScore > b.VisibilityScore
		}
		if !a.Opportunity.CreatedAt.Equal(b.Opportunity.CreatedAt) {
			return a.Opportunity.CreatedAt.After(b.Opportunity.CreatedAt)
		}
		return a.Opportunity.ID > b.Opportunity.ID
	})
	return out
}

// RecordExposure bumps the exposure counters of the given records. Failures
// are logged and otherwise ignored.
func (r *Ranker) RecordExposure(ctx context.Context, recordIDs []string) {
	if len(recordIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ExposureTimeout)
	defer cancel()

	if err := r.repo.IncrementExposure(ctx, recordIDs, r.now().UTC()); err != nil {
		metrics.FeedExposureFailures.WithLabelValues("write").Inc()
		r.logger.Warn("failed to record exposure", map[string]interface{}{
			"records": len(recordIDs),
			"error":   err,
		})
	}
}

// ScheduleExposure defers RecordExposure to the background pool. It never
// blocks; a full queue drops the update.
func (r *Ranker) ScheduleExposure(recordIDs []string) bool {
	if len(recordIDs) == 0 {
		return true
	}
	ids := append([]string(nil), recordIDs...)
	select {
	case r.exposures <- ids:
		return true
	default:
		metrics.FeedExposureFailures.WithLabelValues("dropped").Inc()
		r.logger.Warn("exposure queue full, dropping update", map[string]interface{}{"records": len(ids)})
		return false
	}
}

func (r *Ranker) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.cfg.ExposureWorkers; i++ {
		r.wg.Add(1)
		go r.drain(ctx)
	}
}

// Stop flushes queued exposure updates and waits for the pool.
func (r *Ranker) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
}

func (r *Ranker) drain(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case ids := <-r.exposures:
			r.RecordExposure(context.WithoutCancel(ctx), ids)
		case <-ctx.Done():
			for {
				select {
				case ids := <-r.exposures:
					r.RecordExposure(context.WithoutCancel(ctx), ids)
				default:
					return
				}
			}
		}
	}
}
