// internal/repository/memory_test.go
package repository

import (
	"context"
	"testing"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_UpsertKeepsOneRecordPerPair(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	first := &models.ScoreRecord{OpportunityID: "o1", SeekerID: "s1", FinalScore: 40, IsActive: true}
	require.NoError(t, repo.UpsertScoreRecord(ctx, first))
	require.NotEmpty(t, first.ID)

	require.NoError(t, repo.IncrementExposure(ctx, []string{first.ID}, time.Now()))

	second := &models.ScoreRecord{OpportunityID: "o1", SeekerID: "s1", FinalScore: 70, IsActive: true}
	require.NoError(t, repo.UpsertScoreRecord(ctx, second))

	records := repo.ScoreRecords()
	require.Len(t, records, 1)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, 70.0, records[0].FinalScore)
	assert.Equal(t, 1, records[0].TimesShown, "exposure survives rescoring")
	assert.Equal(t, 1, second.TimesShown)
}

func TestMemory_FeedCandidatesSkipInactiveOpportunities(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	repo.PutOpportunity(models.Opportunity{ID: "open", Status: models.OpportunityStatusActive})
	repo.PutOpportunity(models.Opportunity{ID: "closed", Status: models.OpportunityStatusClosed})

	for _, id := range []string{"open", "closed"} {
		require.NoError(t, repo.UpsertScoreRecord(ctx, &models.ScoreRecord{OpportunityID: id, SeekerID: "s1", IsActive: true}))
	}

	entries, err := repo.ListFeedCandidates(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "open", entries[0].Opportunity.ID)
}

func TestMemory_SeekerLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	repo.PutSeeker(models.Seeker{ID: "s1", Skills: []string{"Go"}, IsActive: true})

	require.NoError(t, repo.SavePendingAnalysis(ctx, "s1", []models.RepoAnalysis{{Name: "x"}}))
	s, err := repo.GetSeeker(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, s.AnalysisNotification)
	assert.Len(t, s.PendingAnalysis, 1)

	require.NoError(t, repo.AcceptPendingSkills(ctx, "s1", []string{"Go", "Rust"}))

	s, err = repo.GetSeeker(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Rust"}, s.Skills)
	assert.Empty(t, s.PendingAnalysis)
	assert.False(t, s.AnalysisNotification)

	err = repo.ClearPendingAnalysis(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrSeekerNotFound))
}
