// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/common/logger"
	"devmatch-workers/internal/feed"
	"devmatch-workers/internal/jobstore"
	"devmatch-workers/internal/matching"
	"devmatch-workers/internal/models"
	"devmatch-workers/internal/notify"
	"devmatch-workers/internal/repository"
	"devmatch-workers/internal/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const (
	urlA = "https://github.com/octo/a"
	urlB = "https://github.com/octo/b"
	urlC = "https://github.com/octo/c"
)

type fakeAnalyzer struct {
	block map[string]bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, url string) (*models.RepoAnalysis, error) {
	if f.block[url] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &models.RepoAnalysis{
		URL:            url,
		Name:           "repo",
		SkillsDetected: []string{"Go"},
		Languages:      []string{"Go"},
		CommitsCount:   5,
	}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return []float64{1, 0}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) AnalysisFinished(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) Events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(_ context.Context, jobID string) error {
	return errors.NewQueueFullError("analysis")
}

type harness struct {
	store    *jobstore.MemoryStore
	repo     *repository.Memory
	notifier *recordingNotifier
	pipe     *Pipeline
}

func seedRepo() *repository.Memory {
	repo := repository.NewMemory()
	repo.PutOpportunity(models.Opportunity{
		ID: "opp-1", Title: "Backend", Skills: []string{"go"},
		Vector: []float64{1, 0}, Status: models.OpportunityStatusActive,
		CreatedAt: time.Now().Add(-time.Hour),
	})
	repo.PutSeeker(models.Seeker{
		ID: "user-1", Name: "Ada", Skills: []string{"Python"},
		Vector: []float64{1, 0}, ActivityScore: 50, IsActive: true,
		CreatedAt: time.Now().Add(-30 * 24 * time.Hour),
	})
	return repo
}

// newHarness wires the real runner, coordinator and ranker over in-memory
// storage. Pass a non-nil enqueuer to replace the runner.
func newHarness(t *testing.T, analyzer runner.Analyzer, enqueuer Enqueuer) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	store := jobstore.NewMemoryStore(jobstore.Options{})
	repo := seedRepo()
	notifier := &recordingNotifier{}

	coord := matching.NewCoordinator(repo, fakeEmbedder{}, matching.Config{}, log)
	ranker := feed.NewRanker(repo, feed.Config{}, log)
	r := runner.New(store, analyzer, runner.Config{Workers: 2, UnitTimeout: 50 * time.Millisecond}, nil, log)

	if enqueuer == nil {
		enqueuer = r
	}
	pipe := New(Deps{
		Store:    store,
		Runner:   enqueuer,
		Seekers:  repo,
		Rescorer: coord,
		Feed:     ranker,
		Notifier: notifier,
	}, Config{EnqueueTimeout: 50 * time.Millisecond}, log)
	r.OnFinish(pipe.HandleJobFinished)

	r.Start(ctx)
	coord.Start(ctx)
	ranker.Start(ctx)
	t.Cleanup(func() {
		cancel()
		r.Stop()
		coord.Stop()
		ranker.Stop()
	})

	return &harness{store: store, repo: repo, notifier: notifier, pipe: pipe}
}

func waitForStatus(t *testing.T, h *harness, jobID string, want models.JobStatus) *models.AnalysisJob {
	t.Helper()
	var job *models.AnalysisJob
	require.Eventually(t, func() bool {
		var err error
		job, err = h.pipe.JobStatus(context.Background(), jobID)
		return err == nil && job.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

// ==========================
// Analysis Jobs
// ==========================

func TestSubmitAnalysis_TimedOutUnitStillCompletes(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{block: map[string]bool{urlB: true}}, nil)
	ctx := context.Background()

	jobID, err := h.pipe.SubmitAnalysis(ctx, "user-1", []string{urlA, urlB, urlC})
	require.NoError(t, err)

	job := waitForStatus(t, h, jobID, models.JobStatusCompleted)
	assert.Len(t, job.Results, 2)
	require.Len(t, job.Errors, 1)
	assert.Contains(t, job.Errors[0], urlB)
	assert.NotNil(t, job.CompletedAt)

	byUser, err := h.pipe.UserJob(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, jobID, byUser.ID)

	require.Eventually(t, func() bool { return len(h.notifier.Events()) == 1 }, time.Second, 10*time.Millisecond)
	event := h.notifier.Events()[0]
	assert.Equal(t, notify.EventAnalysisFinished, event.Type)
	assert.Equal(t, jobID, event.JobID)
	assert.Equal(t, string(models.JobStatusCompleted), event.Status)

	seeker, err := h.repo.GetSeeker(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, seeker.PendingAnalysis, 2)
	assert.True(t, seeker.AnalysisNotification)
	assert.Equal(t, 24.0, seeker.PortfolioScore)
	assert.Equal(t, "Beginner", seeker.PortfolioRank)

	require.Eventually(t, func() bool { return len(h.repo.ScoreRecords()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSubmitAnalysis_RejectsInvalidInput(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, nil)

	_, err := h.pipe.SubmitAnalysis(context.Background(), "user-1", nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidWorkUnits))
}

func TestSubmitAnalysis_UnqueuedJobIsFailed(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, failingEnqueuer{})
	ctx := context.Background()

	jobID, err := h.pipe.SubmitAnalysis(ctx, "user-1", []string{urlA})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueueFull, errors.AsStandard(err).Code)
	require.NotEmpty(t, jobID)

	job, err := h.pipe.JobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.Len(t, job.Errors, 1)
	assert.Contains(t, job.Errors[0], "could not be scheduled")
}

func TestAnalysisStatus(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, nil)
	ctx := context.Background()

	status, err := h.pipe.AnalysisStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, status.HasPendingAnalysis)
	assert.Empty(t, status.JobID)

	require.NoError(t, h.repo.SavePendingAnalysis(ctx, "user-1", []models.RepoAnalysis{{URL: urlA}}))
	status, err = h.pipe.AnalysisStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.HasPendingAnalysis, "falls back to the seeker flag when no job is registered")
	assert.True(t, status.AnalysisComplete)

	jobID, err := h.pipe.SubmitAnalysis(ctx, "user-1", []string{urlA})
	require.NoError(t, err)
	waitForStatus(t, h, jobID, models.JobStatusCompleted)

	status, err = h.pipe.AnalysisStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, "completed", status.JobStatus)
	assert.True(t, status.AnalysisComplete)

	status, err = h.pipe.AnalysisStatus(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, status.HasPendingAnalysis)
}

func TestHandleJobFinished_IgnoresSupersededJob(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, failingEnqueuer{})
	ctx := context.Background()

	oldID, err := h.store.Submit(ctx, "user-1", []string{urlA})
	require.NoError(t, err)
	require.NoError(t, h.store.Transition(ctx, oldID, models.JobStatusProcessing))
	require.NoError(t, h.store.AppendResult(ctx, oldID, models.RepoAnalysis{URL: urlA, SkillsDetected: []string{"Go"}}))
	require.NoError(t, h.store.Transition(ctx, oldID, models.JobStatusCompleted))

	_, err = h.store.Submit(ctx, "user-1", []string{urlB})
	require.NoError(t, err)

	old, err := h.store.Get(ctx, oldID)
	require.NoError(t, err)
	h.pipe.HandleJobFinished(ctx, old)

	assert.Empty(t, h.notifier.Events())
	seeker, err := h.repo.GetSeeker(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, seeker.PendingAnalysis)
}

func TestHandleJobFinished_FailedJobOnlyNotifies(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, failingEnqueuer{})
	ctx := context.Background()

	jobID, _ := h.pipe.SubmitAnalysis(ctx, "user-1", []string{urlA})
	job, err := h.store.Get(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFailed, job.Status)

	h.pipe.HandleJobFinished(ctx, job)

	require.Len(t, h.notifier.Events(), 1)
	assert.Equal(t, "failed", h.notifier.Events()[0].Status)
	seeker, err := h.repo.GetSeeker(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, seeker.AnalysisNotification)
}

// ==========================
// Skill Review
// ==========================

func TestPendingSkills_FillsFromCompletedJob(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, failingEnqueuer{})
	ctx := context.Background()

	jobID, err := h.store.Submit(ctx, "user-1", []string{urlA})
	require.NoError(t, err)
	require.NoError(t, h.store.Transition(ctx, jobID, models.JobStatusProcessing))
	require.NoError(t, h.store.AppendResult(ctx, jobID, models.RepoAnalysis{
		URL: urlA, SkillsDetected: []string{"Go", "SQL"},
	}))
	require.NoError(t, h.store.Transition(ctx, jobID, models.JobStatusCompleted))

	matches, err := h.pipe.PendingSkills(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []models.SkillMatch{
		{Skill: "Go", RepoName: "Unknown", RepoURL: urlA},
		{Skill: "SQL", RepoName: "Unknown", RepoURL: urlA},
	}, matches)

	seeker, err := h.repo.GetSeeker(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, seeker.PendingAnalysis, 1)
}

func TestPendingSkills_EmptyWithoutAnalysis(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, nil)

	matches, err := h.pipe.PendingSkills(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = h.pipe.PendingSkills(context.Background(), "nobody")
	assert.True(t, errors.Is(err, errors.ErrSeekerNotFound))
}

func TestAcceptSkills(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, nil)
	ctx := context.Background()

	_, err := h.pipe.AcceptSkills(ctx, "user-1", []string{"Go"})
	assert.True(t, errors.Is(err, errors.ErrNoPendingAnalysis))

	require.NoError(t, h.repo.SavePendingAnalysis(ctx, "user-1", []models.RepoAnalysis{{URL: urlA, SkillsDetected: []string{"Go"}}}))

	res, err := h.pipe.AcceptSkills(ctx, "user-1", []string{"go", "python", "Rust"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, []string{"Python", "go", "Rust"}, res.Skills)

	seeker, err := h.repo.GetSeeker(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Python", "go", "Rust"}, seeker.Skills)
	assert.Empty(t, seeker.PendingAnalysis)
	assert.False(t, seeker.AnalysisNotification)

	require.Eventually(t, func() bool { return len(h.repo.ScoreRecords()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestDismissAnalysis(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, nil)
	ctx := context.Background()

	require.NoError(t, h.repo.SavePendingAnalysis(ctx, "user-1", []models.RepoAnalysis{{URL: urlA}}))
	require.NoError(t, h.pipe.DismissAnalysis(ctx, "user-1"))

	seeker, err := h.repo.GetSeeker(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, seeker.PendingAnalysis)
	assert.False(t, seeker.AnalysisNotification)
}

func TestMergeSkills(t *testing.T) {
	tests := []struct {
		name      string
		held      []string
		accepted  []string
		want      []string
		wantAdded int
	}{
		{"nothing accepted", []string{"Go"}, nil, []string{"Go"}, 0},
		{"case-insensitive duplicates", []string{"Go"}, []string{"GO", "go "}, []string{"Go"}, 0},
		{"new skills appended in order", []string{"Go"}, []string{"SQL", "Docker"}, []string{"Go", "SQL", "Docker"}, 2},
		{"blank entries skipped", nil, []string{" ", "Rust"}, []string{"Rust"}, 1},
		{"duplicates within accepted", nil, []string{"Rust", "rust"}, []string{"Rust"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, added := MergeSkills(tt.held, tt.accepted)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantAdded, added)
		})
	}
}

// ==========================
// Matching and Feed
// ==========================

func TestFeed_RecordsExposure(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, nil)
	ctx := context.Background()

	require.True(t, h.pipe.OpportunityCreated("opp-1"))
	require.Eventually(t, func() bool { return len(h.repo.ScoreRecords()) == 1 }, time.Second, 10*time.Millisecond)

	f, err := h.pipe.Feed(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, f.Entries, 1)
	assert.Equal(t, "opp-1", f.Entries[0].Opportunity.ID)
	assert.Equal(t, 0, f.Entries[0].Record.TimesShown)

	require.Eventually(t, func() bool {
		recs := h.repo.ScoreRecords()
		return len(recs) == 1 && recs[0].TimesShown == 1
	}, time.Second, 10*time.Millisecond)
}

func TestProfileEdited_RescoresSeeker(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, nil)

	require.True(t, h.pipe.ProfileEdited("user-1"))
	require.Eventually(t, func() bool {
		recs := h.repo.ScoreRecords()
		return len(recs) == 1 && recs[0].SeekerID == "user-1" && recs[0].OpportunityID == "opp-1"
	}, time.Second, 10*time.Millisecond)
}

func TestFeed_UnknownSeeker(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{}, nil)

	_, err := h.pipe.Feed(context.Background(), "nobody", 10)
	assert.True(t, errors.Is(err, errors.ErrSeekerNotFound))
}
