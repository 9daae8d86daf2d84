// internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"devmatch-workers/internal/models"
)

type SeekerRepository interface {
	GetSeeker(ctx context.Context, seekerID string) (*models.Seeker, error)
	ListActiveSeekers(ctx context.Context) ([]models.Seeker, error)
	UpdateSeekerVector(ctx context.Context, seekerID string, vector []float64) error
	UpdatePortfolio(ctx context.Context, seekerID string, score float64, rank string) error

	// SavePendingAnalysis stores results for the seeker to review and raises
	// the notification flag.
	SavePendingAnalysis(ctx context.Context, seekerID string, results []models.RepoAnalysis) error
	ClearPendingAnalysis(ctx context.Context, seekerID string) error
	// AcceptPendingSkills replaces the seeker's skills and clears the pending
	// analysis in one write.
	AcceptPendingSkills(ctx context.Context, seekerID string, skills []string) error
}

type OpportunityRepository interface {
	GetOpportunity(ctx context.Context, opportunityID string) (*models.Opportunity, error)
	ListActiveOpportunities(ctx context.Context) ([]models.Opportunity, error)
	UpdateOpportunityVector(ctx context.Context, opportunityID string, vector []float64) error
}

type ScoreRepository interface {
	// UpsertScoreRecord inserts or updates the record for the pair. Exposure
	// counters of an existing record are kept and copied back into rec.
	UpsertScoreRecord(ctx context.Context, rec *models.ScoreRecord) error
	// ListFeedCandidates returns the seeker's active records joined to
	// opportunities that are still active.
	ListFeedCandidates(ctx context.Context, seekerID string) ([]models.FeedEntry, error)
	IncrementExposure(ctx context.Context, recordIDs []string, shownAt time.Time) error
}

// Repository is the full persistence surface of the pipeline.
type Repository interface {
	SeekerRepository
	OpportunityRepository
	ScoreRepository
}
