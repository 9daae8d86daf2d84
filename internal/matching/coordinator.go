// internal/matching/coordinator.go
package matching

import (
	"context"
	"sync"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/common/metrics"
	"devmatch-workers/internal/models"
	"devmatch-workers/internal/scoring"
)

const (
	KindOpportunity = "opportunity"
	KindSeeker      = "seeker"
)

// Embedder turns text into a vector. Any error means "no vector".
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Repository is the persistence the coordinator needs.
type Repository interface {
	GetSeeker(ctx context.Context, seekerID string) (*models.Seeker, error)
	ListActiveSeekers(ctx context.Context) ([]models.Seeker, error)
	UpdateSeekerVector(ctx context.Context, seekerID string, vector []float64) error
	GetOpportunity(ctx context.Context, opportunityID string) (*models.Opportunity, error)
	ListActiveOpportunities(ctx context.Context) ([]models.Opportunity, error)
	UpdateOpportunityVector(ctx context.Context, opportunityID string, vector []float64) error
	UpsertScoreRecord(ctx context.Context, rec *models.ScoreRecord) error
}

type Config struct {
	Workers      int
	QueueSize    int
	EmbedTimeout time.Duration
}

// Summary counts the pairs handled by one rescoring pass.
type Summary struct {
	Scored int `json:"scored"`
	Failed int `json:"failed"`
}

type trigger struct {
	kind    string
	id      string
	reembed bool
}

// Coordinator rescores opportunity/seeker pairs. The Rescore methods run
// synchronously; the Trigger methods hand work to a bounded pool.
type Coordinator struct {
	repo     Repository
	embedder Embedder
	cfg      Config
	logger   logger.Logger

	triggers chan trigger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(repo Repository, embedder Embedder, cfg Config, log logger.Logger) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 15 * time.Second
	}
	return &Coordinator{
		repo:     repo,
		embedder: embedder,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "match-coordinator"}),
		triggers: make(chan trigger, cfg.QueueSize),
	}
}

// RescoreOpportunity scores one opportunity against every active seeker.
func (c *Coordinator) RescoreOpportunity(ctx context.Context, opportunityID string) (Summary, error) {
	opp, err := c.repo.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return Summary{}, err
	}
	c.ensureOpportunityVector(ctx, opp)

	seekers, err := c.repo.ListActiveSeekers(ctx)
	if err != nil {
		return Summary{}, errors.NewRescoreFailedError("opportunity "+opportunityID, err)
	}

	var sum Summary
	for i := range seekers {
		c.tally(&sum, c.scorePair(ctx, opp, &seekers[i]), KindOpportunity, opportunityID, seekers[i].ID)
	}

	c.logger.Info("opportunity rescored", map[string]interface{}{
		"opportunityId": opportunityID,
		"scored":        sum.Scored,
		"failed":        sum.Failed,
	})
	return sum, nil
}

// RescoreSeeker scores one seeker against every active opportunity.
func (c *Coordinator) RescoreSeeker(ctx context.Context, seekerID string) (Summary, error) {
	seeker, err := c.repo.GetSeeker(ctx, seekerID)
	if err != nil {
		return Summary{}, err
	}
	c.ensureSeekerVector(ctx, seeker)

	opps, err := c.repo.ListActiveOpportunities(ctx)
	if err != nil {
		return Summary{}, errors.NewRescoreFailedError("seeker "+seekerID, err)
	}

	var sum Summary
	for i := range opps {
		c.tally(&sum, c.scorePair(ctx, &opps[i], seeker), KindSeeker, opps[i].ID, seekerID)
	}

	c.logger.Info("seeker rescored", map[string]interface{}{
		"seekerId": seekerID,
		"scored":   sum.Scored,
		"failed":   sum.Failed,
	})
	return sum, nil
}

// Reembed refreshes the seeker's vector from its current profile text. A
// failed embedding leaves the stored vector untouched.
func (c *Coordinator) Reembed(ctx context.Context, seekerID string) error {
	seeker, err := c.repo.GetSeeker(ctx, seekerID)
	if err != nil {
		return err
	}
	seeker.Vector = nil
	c.ensureSeekerVector(ctx, seeker)
	return nil
}

// Score computes the record for a pair without persisting it.
func Score(opp *models.Opportunity, seeker *models.Seeker) models.ScoreRecord {
	semantic := scoring.Round2(scoring.SemanticScore(opp.Vector, seeker.Vector))
	skill := scoring.Round2(scoring.SkillOverlap(opp.Skills, seeker.Skills))
	activity := scoring.Clamp(seeker.ActivityScore)
	readiness := scoring.Clamp(seeker.PortfolioScore)

	return models.ScoreRecord{
		OpportunityID:     opp.ID,
		SeekerID:          seeker.ID,
		SemanticScore:     semantic,
		SkillOverlapScore: skill,
		ActivityScore:     activity,
		ReadinessScore:    readiness,
		FinalScore:        scoring.FinalScore(semantic, skill, activity, readiness),
		IsActive:          true,
	}
}

func (c *Coordinator) scorePair(ctx context.Context, opp *models.Opportunity, seeker *models.Seeker) error {
	rec := Score(opp, seeker)
	return c.repo.UpsertScoreRecord(ctx, &rec)
}

func (c *Coordinator) tally(sum *Summary, err error, kind, opportunityID, seekerID string) {
	if err == nil {
		sum.Scored++
		metrics.RescoredPairs.WithLabelValues(kind, "success").Inc()
		return
	}
	sum.Failed++
	metrics.RescoredPairs.WithLabelValues(kind, "failed").Inc()
	c.logger.Warn("failed to score pair", map[string]interface{}{
		"opportunityId": opportunityID,
		"seekerId":      seekerID,
		"error":         err,
	})
}

func (c *Coordinator) ensureOpportunityVector(ctx context.Context, opp *models.Opportunity) {
	if opp.HasVector() {
		return
	}
	vec := c.embed(ctx, opp.EmbeddingText())
	if vec == nil {
		return
	}
	opp.Vector = vec
	if err := c.repo.UpdateOpportunityVector(ctx, opp.ID, vec); err != nil {
		c.logger.Warn("failed to persist opportunity vector", map[string]interface{}{"opportunityId": opp.ID, "error": err})
	}
}

func (c *Coordinator) ensureSeekerVector(ctx context.Context, seeker *models.Seeker) {
	if seeker.HasVector() {
		return
	}
	vec := c.embed(ctx, seeker.EmbeddingText())
	if vec == nil {
		return
	}
	seeker.Vector = vec
	if err := c.repo.UpdateSeekerVector(ctx, seeker.ID, vec); err != nil {
		c.logger.Warn("failed to persist seeker vector", map[string]interface{}{"seekerId": seeker.ID, "error": err})
	}
}

// embed returns nil whenever no usable vector could be produced.
func (c *Coordinator) embed(ctx context.Context, text string) []float64 {
	if c.embedder == nil || text == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EmbedTimeout)
	defer cancel()

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		metrics.EmbeddingFailures.Inc()
		c.logger.Warn("embedding unavailable, semantic score will be 0", map[string]interface{}{"error": err})
		return nil
	}
	return vec
}
