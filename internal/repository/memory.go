// internal/repository/memory.go
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/models"

	"github.com/google/uuid"
)

type pairKey struct {
	opportunityID string
	seekerID      string
}

// Memory is an in-process Repository for local runs and tests. Values are
// copied in and out.
type Memory struct {
	mu            sync.Mutex
	seekers       map[string]models.Seeker
	opportunities map[string]models.Opportunity
	records       map[pairKey]models.ScoreRecord
}

func NewMemory() *Memory {
	return &Memory{
		seekers:       make(map[string]models.Seeker),
		opportunities: make(map[string]models.Opportunity),
		records:       make(map[pairKey]models.ScoreRecord),
	}
}

func (m *Memory) PutSeeker(s models.Seeker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekers[s.ID] = copySeeker(s)
}

func (m *Memory) PutOpportunity(o models.Opportunity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opportunities[o.ID] = copyOpportunity(o)
}

// ScoreRecords returns all stored records ordered by opportunity then seeker.
func (m *Memory) ScoreRecords() []models.ScoreRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ScoreRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpportunityID != out[j].OpportunityID {
			return out[i].OpportunityID < out[j].OpportunityID
		}
		return out[i].SeekerID < out[j].SeekerID
	})
	return out
}

func (m *Memory) GetSeeker(_ context.Context, seekerID string) (*models.Seeker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.seekers[seekerID]
	if !ok {
		return nil, errors.NewSeekerNotFoundError(seekerID)
	}
	c := copySeeker(s)
	return &c, nil
}

func (m *Memory) ListActiveSeekers(_ context.Context) ([]models.Seeker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Seeker
	for _, s := range m.seekers {
		if s.IsActive {
			out = append(out, copySeeker(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateSeekerVector(_ context.Context, seekerID string, vector []float64) error {
	return m.updateSeeker(seekerID, func(s *models.Seeker) {
		s.Vector = append([]float64(nil), vector...)
	})
}

func (m *Memory) UpdatePortfolio(_ context.Context, seekerID string, score float64, rank string) error {
	return m.updateSeeker(seekerID, func(s *models.Seeker) {
		s.PortfolioScore = score
		s.PortfolioRank = rank
	})
}

func (m *Memory) SavePendingAnalysis(_ context.Context, seekerID string, results []models.RepoAnalysis) error {
	return m.updateSeeker(seekerID, func(s *models.Seeker) {
		s.PendingAnalysis = copyAnalyses(results)
		s.AnalysisNotification = true
	})
}

func (m *Memory) ClearPendingAnalysis(_ context.Context, seekerID string) error {
	return m.updateSeeker(seekerID, func(s *models.Seeker) {
		s.PendingAnalysis = nil
		s.AnalysisNotification = false
	})
}

func (m *Memory) AcceptPendingSkills(_ context.Context, seekerID string, skills []string) error {
	return m.updateSeeker(seekerID, func(s *models.Seeker) {
		s.Skills = append([]string(nil), skills...)
		s.PendingAnalysis = nil
		s.AnalysisNotification = false
	})
}

func (m *Memory) GetOpportunity(_ context.Context, opportunityID string) (*models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.opportunities[opportunityID]
	if !ok {
		return nil, errors.NewOpportunityNotFoundError(opportunityID)
	}
	c := copyOpportunity(o)
	return &c, nil
}

func (m *Memory) ListActiveOpportunities(_ context.Context) ([]models.Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Opportunity
	for _, o := range m.opportunities {
		if o.IsActive() {
			out = append(out, copyOpportunity(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateOpportunityVector(_ context.Context, opportunityID string, vector []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.opportunities[opportunityID]
	if !ok {
		return errors.NewOpportunityNotFoundError(opportunityID)
	}
	o.Vector = append([]float64(nil), vector...)
	m.opportunities[opportunityID] = o
	return nil
}

func (m *Memory) UpsertScoreRecord(_ context.Context, rec *models.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey{opportunityID: rec.OpportunityID, seekerID: rec.SeekerID}
	stored := *rec
	if existing, ok := m.records[key]; ok {
		stored.ID = existing.ID
		stored.TimesShown = existing.TimesShown
		stored.LastShownAt = existing.LastShownAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.TimesShown = 0
		stored.LastShownAt = nil
	}
	m.records[key] = stored

	rec.ID = stored.ID
	rec.TimesShown = stored.TimesShown
	rec.LastShownAt = stored.LastShownAt
	return nil
}

func (m *Memory) ListFeedCandidates(_ context.Context, seekerID string) ([]models.FeedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.FeedEntry
	for key, r := range m.records {
		if key.seekerID != seekerID || !r.IsActive {
			continue
		}
		o, ok := m.opportunities[key.opportunityID]
		if !ok || !o.IsActive() {
			continue
		}
		out = append(out, models.FeedEntry{Record: r, Opportunity: copyOpportunity(o)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Record.ID < out[j].Record.ID })
	return out, nil
}

func (m *Memory) IncrementExposure(_ context.Context, recordIDs []string, shownAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]struct{}, len(recordIDs))
	for _, id := range recordIDs {
		wanted[id] = struct{}{}
	}
	for key, r := range m.records {
		if _, ok := wanted[r.ID]; !ok {
			continue
		}
		at := shownAt
		r.TimesShown++
		r.LastShownAt = &at
		m.records[key] = r
	}
	return nil
}

func (m *Memory) updateSeeker(seekerID string, fn func(*models.Seeker)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.seekers[seekerID]
	if !ok {
		return errors.NewSeekerNotFoundError(seekerID)
	}
	fn(&s)
	m.seekers[seekerID] = s
	return nil
}

func copySeeker(s models.Seeker) models.Seeker {
	s.Skills = append([]string(nil), s.Skills...)
	if s.Vector != nil {
		s.Vector = append([]float64(nil), s.Vector...)
	}
	s.PendingAnalysis = copyAnalyses(s.PendingAnalysis)
	return s
}

func copyOpportunity(o models.Opportunity) models.Opportunity {
	o.Skills = append([]string(nil), o.Skills...)
	if o.Vector != nil {
		o.Vector = append([]float64(nil), o.Vector...)
	}
	return o
}

func copyAnalyses(in []models.RepoAnalysis) []models.RepoAnalysis {
	if in == nil {
		return nil
	}
	out := make([]models.RepoAnalysis, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

var _ Repository = (*Memory)(nil)
var _ Repository = (*Postgres)(nil)
