package postgres

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jobfindr/matchengine/internal/domain"
)

// JobRepo reads the job catalog from PostgreSQL. The engine never writes
// postings; see the seed command for fixture loading.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// ListActive returns every active posting in stable catalog order
// (created_at, then id). Scoring relies on this order for deterministic
// tie-breaking.
func (r *JobRepo) ListActive(ctx domain.Context) ([]domain.JobPosting, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ListActive")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "jobs"),
	)

	q := `SELECT id, title, COALESCE(description,''), COALESCE(requirements,'[]'), COALESCE(type,''), salary, is_active, created_at
		FROM jobs WHERE is_active = TRUE ORDER BY created_at, id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=job.list_active: %w", err)
	}
	defer rows.Close()

	var jobs []domain.JobPosting
	for rows.Next() {
		var (
			j       domain.JobPosting
			reqJSON []byte
		)
		if err := rows.Scan(&j.ID, &j.Title, &j.Description, &reqJSON, &j.Type, &j.Salary, &j.Active, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=job.list_active: %w", err)
		}
		if len(reqJSON) > 0 {
			if err := json.Unmarshal(reqJSON, &j.Requirements); err != nil {
				return nil, fmt.Errorf("op=job.list_active: requirements for %s: %w", j.ID, err)
			}
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.list_active: %w", err)
	}
	return jobs, nil
}
