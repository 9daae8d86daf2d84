// internal/repository/postgres.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const defaultQueryTimeout = 10 * time.Second

const seekerColumns = `id, name, bio, skills, embedding, activity_score, portfolio_score,
	portfolio_rank, is_active, created_at, pending_analysis, analysis_notification`

const opportunityColumns = `id, title, description, requirements, skills, embedding, status, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

// Postgres implements Repository on database/sql with the lib/pq driver.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgres(db *sql.DB, queryTimeout time.Duration) *Postgres {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Postgres{db: db, timeout: queryTimeout}
}

func (r *Postgres) GetSeeker(ctx context.Context, seekerID string) (*models.Seeker, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+seekerColumns+` FROM seekers WHERE id = $1`, seekerID)
	seeker, err := scanSeeker(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewSeekerNotFoundError(seekerID)
	}
	if err != nil {
		return nil, r.fail("get seeker", err)
	}
	return seeker, nil
}

func (r *Postgres) ListActiveSeekers(ctx context.Context) ([]models.Seeker, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+seekerColumns+` FROM seekers WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, r.fail("list seekers", err)
	}
	defer rows.Close()

	var out []models.Seeker
	for rows.Next() {
		s, err := scanSeeker(rows)
		if err != nil {
			return nil, r.fail("scan seeker", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list seekers", err)
	}
	return out, nil
}

func (r *Postgres) UpdateSeekerVector(ctx context.Context, seekerID string, vector []float64) error {
	return r.execOne(ctx, "update seeker vector", errors.NewSeekerNotFoundError(seekerID),
		`UPDATE seekers SET embedding = $2 WHERE id = $1`, seekerID, pq.Float64Array(vector))
}

func (r *Postgres) UpdatePortfolio(ctx context.Context, seekerID string, score float64, rank string) error {
	return r.execOne(ctx, "update portfolio", errors.NewSeekerNotFoundError(seekerID),
		`UPDATE seekers SET portfolio_score = $2, portfolio_rank = $3 WHERE id = $1`, seekerID, score, rank)
}

func (r *Postgres) SavePendingAnalysis(ctx context.Context, seekerID string, results []models.RepoAnalysis) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "encode pending analysis")
	}
	return r.execOne(ctx, "save pending analysis", errors.NewSeekerNotFoundError(seekerID),
		`UPDATE seekers SET pending_analysis = $2, analysis_notification = TRUE WHERE id = $1`, seekerID, payload)
}

func (r *Postgres) ClearPendingAnalysis(ctx context.Context, seekerID string) error {
	return r.execOne(ctx, "clear pending analysis", errors.NewSeekerNotFoundError(seekerID),
		`UPDATE seekers SET pending_analysis = NULL, analysis_notification = FALSE WHERE id = $1`, seekerID)
}

func (r *Postgres) AcceptPendingSkills(ctx context.Context, seekerID string, skills []string) error {
	return r.execOne(ctx, "accept skills", errors.NewSeekerNotFoundError(seekerID),
		`UPDATE seekers SET skills = $2, pending_analysis = NULL, analysis_notification = FALSE WHERE id = $1`,
		seekerID, pq.Array(skills))
}

func (r *Postgres) GetOpportunity(ctx context.Context, opportunityID string) (*models.Opportunity, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, opportunityID)
	opp, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewOpportunityNotFoundError(opportunityID)
	}
	if err != nil {
		return nil, r.fail("get opportunity", err)
	}
	return opp, nil
}

func (r *Postgres) ListActiveOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE status = $1 ORDER BY id`, models.OpportunityStatusActive)
	if err != nil {
		return nil, r.fail("list opportunities", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, r.fail("scan opportunity", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list opportunities", err)
	}
	return out, nil
}

func (r *Postgres) UpdateOpportunityVector(ctx context.Context, opportunityID string, vector []float64) error {
	return r.execOne(ctx, "update opportunity vector", errors.NewOpportunityNotFoundError(opportunityID),
		`UPDATE opportunities SET embedding = $2 WHERE id = $1`, opportunityID, pq.Float64Array(vector))
}

func (r *Postgres) UpsertScoreRecord(ctx context.Context, rec *models.ScoreRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	var lastShown sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO score_records (id, opportunity_id, seeker_id, semantic_score, skill_overlap_score,
		                           activity_score, readiness_score, final_score, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (opportunity_id, seeker_id) DO UPDATE SET
			semantic_score = EXCLUDED.semantic_score,
			skill_overlap_score = EXCLUDED.skill_overlap_score,
			activity_score = EXCLUDED.activity_score,
			readiness_score = EXCLUDED.readiness_score,
			final_score = EXCLUDED.final_score,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING id, times_shown, last_shown_at`,
		id, rec.OpportunityID, rec.SeekerID,
		rec.SemanticScore, rec.SkillOverlapScore, rec.ActivityScore, rec.ReadinessScore,
		rec.FinalScore, rec.IsActive,
	).Scan(&rec.ID, &rec.TimesShown, &lastShown)
	if err != nil {
		return r.fail("upsert score record", err)
	}

	rec.LastShownAt = nil
	if lastShown.Valid {
		t := lastShown.Time
		rec.LastShownAt = &t
	}
	return nil
}

func (r *Postgres) ListFeedCandidates(ctx context.Context, seekerID string) ([]models.FeedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.opportunity_id, r.seeker_id, r.semantic_score, r.skill_overlap_score,
		       r.activity_score, r.readiness_score, r.final_score, r.is_active, r.times_shown, r.last_shown_at,
		       o.title, o.description, o.requirements, o.skills, o.status, o.created_at
		FROM score_records r
		JOIN opportunities o ON o.id = r.opportunity_id
		WHERE r.seeker_id = $1 AND r.is_active AND o.status = $2`,
		seekerID, models.OpportunityStatusActive)
	if err != nil {
		return nil, r.fail("list feed candidates", err)
	}
	defer rows.Close()

	var out []models.FeedEntry
	for rows.Next() {
		var e models.FeedEntry
		var lastShown sql.NullTime
		var skills pq.StringArray

		err := rows.Scan(
			&e.Record.ID, &e.Record.OpportunityID, &e.Record.SeekerID,
			&e.Record.SemanticScore, &e.Record.SkillOverlapScore,
			&e.Record.ActivityScore, &e.Record.ReadinessScore, &e.Record.FinalScore,
			&e.Record.IsActive, &e.Record.TimesShown, &lastShown,
			&e.Opportunity.Title, &e.Opportunity.Description, &e.Opportunity.Requirements,
			&skills, &e.Opportunity.Status, &e.Opportunity.CreatedAt,
		)
		if err != nil {
			return nil, r.fail("scan feed candidate", err)
		}
		if lastShown.Valid {
			t := lastShown.Time
			e.Record.LastShownAt = &t
		}
		e.Opportunity.ID = e.Record.OpportunityID
		e.Opportunity.Skills = []string(skills)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list feed candidates", err)
	}
	return out, nil
}

func (r *Postgres) IncrementExposure(ctx context.Context, recordIDs []string, shownAt time.Time) error {
	if len(recordIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE score_records SET times_shown = times_shown + 1, last_shown_at = $2 WHERE id = ANY($1)`,
		pq.Array(recordIDs), shownAt)
	if err != nil {
		return r.fail("increment exposure", err)
	}
	return nil
}

// execOne runs a single-row update and reports notFound when no row matched.
func (r *Postgres) execOne(ctx context.Context, op string, notFound error, query string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.fail(op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (r *Postgres) fail(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewQueryTimeoutError(op)
	}
	return errors.NewPersistenceFailedError(op, err)
}

func scanSeeker(row scanner) (*models.Seeker, error) {
	var (
		s         models.Seeker
		bio, rank sql.NullString
		skills    pq.StringArray
		vector    pq.Float64Array
		activity  sql.NullFloat64
		portfolio sql.NullFloat64
		pending   []byte
	)
	err := row.Scan(&s.ID, &s.Name, &bio, &skills, &vector, &activity, &portfolio,
		&rank, &s.IsActive, &s.CreatedAt, &pending, &s.AnalysisNotification)
	if err != nil {
		return nil, err
	}

	s.Bio = bio.String
	s.Skills = []string(skills)
	s.ActivityScore = activity.Float64
	s.PortfolioScore = portfolio.Float64
	s.PortfolioRank = rank.String
	if len(vector) > 0 {
		s.Vector = []float64(vector)
	}
	if len(pending) > 0 {
		if err := json.Unmarshal(pending, &s.PendingAnalysis); err != nil {
			return nil, errors.Wrapf(err, "decode pending analysis for seeker %s", s.ID)
		}
	}
	return &s, nil
}

func scanOpportunity(row scanner) (*models.Opportunity, error) {
	var (
		o      models.Opportunity
		skills pq.StringArray
		vector pq.Float64Array
	)
	err := row.Scan(&o.ID, &o.Title, &o.Description, &o.Requirements, &skills, &vector, &o.Status, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Skills = []string(skills)
	if len(vector) > 0 {
		o.Vector = []float64(vector)
	}
	return &o, nil
}
