// internal/matching/coordinator_test.go
package matching

import (
	"context"
	"sync"
	"testing"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/models"
	"devmatch-workers/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

// failingRepo fails upserts for the listed seekers.
type failingRepo struct {
	*repository.Memory
	failSeekers map[string]bool
}

func (r *failingRepo) UpsertScoreRecord(ctx context.Context, rec *models.ScoreRecord) error {
	if r.failSeekers[rec.SeekerID] {
		return errors.NewPersistenceFailedError("upsert score record", errors.New("deadlock detected"))
	}
	return r.Memory.UpsertScoreRecord(ctx, rec)
}

// gatedRepo holds GetOpportunity for one id until release is closed.
type gatedRepo struct {
	*repository.Memory
	gateID  string
	started chan struct{}
	release chan struct{}
}

func (r *gatedRepo) GetOpportunity(ctx context.Context, opportunityID string) (*models.Opportunity, error) {
	if opportunityID == r.gateID {
		close(r.started)
		<-r.release
	}
	return r.Memory.GetOpportunity(ctx, opportunityID)
}

func seedRepo() *repository.Memory {
	repo := repository.NewMemory()
	repo.PutOpportunity(models.Opportunity{
		ID: "opp-1", Title: "Backend", Skills: []string{"python", "go"},
		Vector: []float64{1, 0}, Status: models.OpportunityStatusActive,
	})
	repo.PutSeeker(models.Seeker{
		ID: "seeker-1", Name: "Ada", Skills: []string{"Python", "React"},
		Vector: []float64{0.8, 0.6}, ActivityScore: 60, PortfolioScore: 40, IsActive: true,
	})
	repo.PutSeeker(models.Seeker{
		ID: "seeker-2", Name: "Bob", Skills: []string{"Go"}, ActivityScore: 50, PortfolioScore: 50, IsActive: true,
	})
	repo.PutSeeker(models.Seeker{ID: "seeker-off", Name: "Off", IsActive: false})
	return repo
}

func newTestCoordinator(t *testing.T, repo Repository, embedder Embedder, cfg Config) *Coordinator {
	return NewCoordinator(repo, embedder, cfg, logger.NewTestLogger(t))
}

// ==========================
// Rescoring
// ==========================

func TestScore_CombinesSignals(t *testing.T) {
	opp := &models.Opportunity{ID: "o", Skills: []string{"python", "go"}, Vector: []float64{1, 0}}
	seeker := &models.Seeker{ID: "s", Skills: []string{"Python", "React"}, Vector: []float64{0.8, 0.6},
		ActivityScore: 60, PortfolioScore: 40}

	rec := Score(opp, seeker)
	assert.InDelta(t, 80.0, rec.SemanticScore, 1e-9)
	assert.Equal(t, 50.0, rec.SkillOverlapScore)
	assert.Equal(t, 66.0, rec.FinalScore)
	assert.True(t, rec.IsActive)
}

func TestScore_ClampsComponents(t *testing.T) {
	rec := Score(&models.Opportunity{}, &models.Seeker{ActivityScore: 140, PortfolioScore: -3})
	assert.Equal(t, 100.0, rec.ActivityScore)
	assert.Equal(t, 0.0, rec.ReadinessScore)
	assert.Equal(t, 0.0, rec.SemanticScore, "missing vectors score 0")
}

func TestRescoreOpportunity_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo()
	c := newTestCoordinator(t, repo, nil, Config{})

	for i := 0; i < 2; i++ {
		sum, err := c.RescoreOpportunity(ctx, "opp-1")
		require.NoError(t, err)
		assert.Equal(t, Summary{Scored: 2}, sum)
	}

	records := repo.ScoreRecords()
	require.Len(t, records, 2, "one record per active pair")
	assert.Equal(t, "seeker-1", records[0].SeekerID)
	assert.Equal(t, 66.0, records[0].FinalScore)
}

func TestRescore_EntryPointsConverge(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo()
	c := newTestCoordinator(t, repo, nil, Config{})

	_, err := c.RescoreOpportunity(ctx, "opp-1")
	require.NoError(t, err)
	before := repo.ScoreRecords()

	_, err = c.RescoreSeeker(ctx, "seeker-1")
	require.NoError(t, err)
	_, err = c.RescoreSeeker(ctx, "seeker-2")
	require.NoError(t, err)

	assert.Equal(t, before, repo.ScoreRecords())
}

func TestRescoreSeeker_EmbedsSubjectLazily(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo()
	embedder := &fakeEmbedder{vectors: map[string][]float64{"Bob Go": {1, 0}}}
	c := newTestCoordinator(t, repo, embedder, Config{})

	_, err := c.RescoreSeeker(ctx, "seeker-2")
	require.NoError(t, err)

	seeker, err := repo.GetSeeker(ctx, "seeker-2")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, seeker.Vector, "vector is persisted")

	records := repo.ScoreRecords()
	require.Len(t, records, 1)
	assert.Equal(t, 100.0, records[0].SemanticScore)

	_, err = c.RescoreSeeker(ctx, "seeker-2")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.calls, "stored vector is reused")
}

func TestRescoreOpportunity_EmbeddingFailureIsNotAnError(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo()
	repo.PutOpportunity(models.Opportunity{
		ID: "opp-2", Title: "Frontend", Skills: []string{"react"}, Status: models.OpportunityStatusActive,
	})
	c := newTestCoordinator(t, repo, &fakeEmbedder{err: errors.New("503")}, Config{})

	sum, err := c.RescoreOpportunity(ctx, "opp-2")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scored)

	opp, err := repo.GetOpportunity(ctx, "opp-2")
	require.NoError(t, err)
	assert.False(t, opp.HasVector())

	for _, rec := range repo.ScoreRecords() {
		assert.Equal(t, 0.0, rec.SemanticScore)
	}
}

func TestRescoreOpportunity_PairFailureDoesNotAbort(t *testing.T) {
	repo := &failingRepo{Memory: seedRepo(), failSeekers: map[string]bool{"seeker-1": true}}
	c := newTestCoordinator(t, repo, nil, Config{})

	sum, err := c.RescoreOpportunity(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.Equal(t, Summary{Scored: 1, Failed: 1}, sum)

	records := repo.ScoreRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "seeker-2", records[0].SeekerID)
}

func TestRescore_UnknownSubject(t *testing.T) {
	c := newTestCoordinator(t, seedRepo(), nil, Config{})

	_, err := c.RescoreOpportunity(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrOpportunityNotFound))

	_, err = c.RescoreSeeker(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrSeekerNotFound))
}

// ==========================
// Triggers
// ==========================

func TestTriggers_DropWhenQueueFull(t *testing.T) {
	c := newTestCoordinator(t, seedRepo(), nil, Config{QueueSize: 1})

	assert.True(t, c.TriggerSeeker("seeker-1"))
	assert.False(t, c.TriggerOpportunity("opp-1"))
}

func TestTriggers_ProcessedByPool(t *testing.T) {
	repo := seedRepo()
	c := newTestCoordinator(t, repo, nil, Config{Workers: 2, QueueSize: 4})
	c.Start(context.Background())
	defer c.Stop()

	require.True(t, c.TriggerOpportunity("opp-1"))
	require.True(t, c.TriggerSeeker("missing"))

	assert.Eventually(t, func() bool {
		return len(repo.ScoreRecords()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTriggers_QueuedBeforeStopAreFlushed(t *testing.T) {
	repo := &gatedRepo{
		Memory:  seedRepo(),
		gateID:  "opp-gate",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := newTestCoordinator(t, repo, nil, Config{Workers: 1, QueueSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	require.True(t, c.TriggerOpportunity("opp-gate"))
	<-repo.started

	// Queued while the only worker is busy, then the pool is cancelled.
	require.True(t, c.TriggerSeeker("seeker-1"))
	require.True(t, c.TriggerSeeker("seeker-2"))
	cancel()
	close(repo.release)
	c.Stop()

	assert.Len(t, repo.ScoreRecords(), 2)
	assert.Empty(t, c.triggers)
}

func TestTriggerProfileEdit_ReembedsBeforeRescoring(t *testing.T) {
	repo := seedRepo()
	embedder := &fakeEmbedder{vectors: map[string][]float64{"Ada Python React": {0, 1}}}
	c := newTestCoordinator(t, repo, embedder, Config{})
	c.Start(context.Background())
	defer c.Stop()

	require.True(t, c.TriggerProfileEdit("seeker-1"))

	assert.Eventually(t, func() bool {
		records := repo.ScoreRecords()
		return len(records) == 1 && records[0].SemanticScore == 0
	}, 2*time.Second, 10*time.Millisecond)

	seeker, err := repo.GetSeeker(context.Background(), "seeker-1")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, seeker.Vector)
}
