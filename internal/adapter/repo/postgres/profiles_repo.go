package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jobfindr/matchengine/internal/domain"
)

// ProfileRepo persists candidate profiles. Skills and the analysis record
// live in JSONB columns; each save is a single upsert so concurrent writers
// never observe a partial record.
type ProfileRepo struct{ Pool PgxPool }

// NewProfileRepo constructs a ProfileRepo with the given pool.
func NewProfileRepo(p PgxPool) *ProfileRepo { return &ProfileRepo{Pool: p} }

// Get loads a candidate profile. A candidate with no row yet gets an empty
// profile, not an error; profiles materialize on first write.
func (r *ProfileRepo) Get(ctx domain.Context, userID string) (domain.CandidateProfile, error) {
	tracer := otel.Tracer("repo.profiles")
	ctx, span := tracer.Start(ctx, "profiles.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "profiles"),
	)

	q := `SELECT COALESCE(skills,'[]'), COALESCE(experience_level,''), analysis, updated_at FROM profiles WHERE user_id=$1`
	row := r.Pool.QueryRow(ctx, q, userID)

	p := domain.CandidateProfile{UserID: userID}
	var (
		skillsJSON   []byte
		analysisJSON []byte
	)
	if err := row.Scan(&skillsJSON, &p.ExperienceLevel, &analysisJSON, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CandidateProfile{UserID: userID}, nil
		}
		return domain.CandidateProfile{}, fmt.Errorf("op=profile.get: %w", err)
	}
	if len(skillsJSON) > 0 {
		if err := json.Unmarshal(skillsJSON, &p.Skills); err != nil {
			return domain.CandidateProfile{}, fmt.Errorf("op=profile.get: skills: %w", err)
		}
	}
	if len(analysisJSON) > 0 {
		var rec domain.AIAnalysisRecord
		if err := json.Unmarshal(analysisJSON, &rec); err != nil {
			return domain.CandidateProfile{}, fmt.Errorf("op=profile.get: analysis: %w", err)
		}
		p.Analysis = &rec
	}
	return p, nil
}

// SaveSkills upserts the candidate's skill list.
func (r *ProfileRepo) SaveSkills(ctx domain.Context, userID string, skills []string) error {
	tracer := otel.Tracer("repo.profiles")
	ctx, span := tracer.Start(ctx, "profiles.SaveSkills")
	defer span.End()

	b, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("op=profile.save_skills: %w", err)
	}
	q := `INSERT INTO profiles (user_id, skills, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET skills=EXCLUDED.skills, updated_at=EXCLUDED.updated_at`
	if _, err := r.Pool.Exec(ctx, q, userID, b, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=profile.save_skills: %w", err)
	}
	return nil
}

// SaveAnalysis upserts the full analysis record in one statement.
func (r *ProfileRepo) SaveAnalysis(ctx domain.Context, userID string, rec domain.AIAnalysisRecord) error {
	tracer := otel.Tracer("repo.profiles")
	ctx, span := tracer.Start(ctx, "profiles.SaveAnalysis")
	defer span.End()

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("op=profile.save_analysis: %w", err)
	}
	q := `INSERT INTO profiles (user_id, analysis, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET analysis=EXCLUDED.analysis, updated_at=EXCLUDED.updated_at`
	if _, err := r.Pool.Exec(ctx, q, userID, b, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=profile.save_analysis: %w", err)
	}
	return nil
}
