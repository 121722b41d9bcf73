package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfindr/matchengine/internal/adapter/repo/postgres"
)

func TestProfileRepo_Get(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*dest[0].(*[]byte) = []byte(`["PHP","Laravel"]`)
		*dest[1].(*string) = "senior"
		*dest[2].(*[]byte) = []byte(`{"skills":["PHP"],"experience_years":"8 years","summary":"s","experience_level":"senior"}`)
		*dest[3].(*time.Time) = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		return nil
	}}}
	repo := postgres.NewProfileRepo(pool)

	p, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, []string{"PHP", "Laravel"}, p.Skills)
	assert.Equal(t, "senior", p.ExperienceLevel)
	require.NotNil(t, p.Analysis)
	assert.Equal(t, "8 years", p.Analysis.ExperienceYears)
}

func TestProfileRepo_Get_NoRowMeansEmptyProfile(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewProfileRepo(pool)

	p, err := repo.Get(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, "new-user", p.UserID)
	assert.Empty(t, p.Skills)
	assert.Nil(t, p.Analysis)
}

func TestProfileRepo_Get_NullAnalysis(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(dest ...any) error {
		*dest[0].(*[]byte) = []byte(`[]`)
		*dest[1].(*string) = ""
		*dest[2].(*[]byte) = nil
		*dest[3].(*time.Time) = time.Time{}
		return nil
	}}}
	repo := postgres.NewProfileRepo(pool)

	p, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, p.Analysis)
}

func TestProfileRepo_SaveSkills(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewProfileRepo(pool)

	require.NoError(t, repo.SaveSkills(context.Background(), "u1", []string{"PHP", "Go"}))
	require.Len(t, pool.execLog, 1)
	assert.Contains(t, pool.execLog[0], "ON CONFLICT (user_id)")
}

func TestProfileRepo_SaveSkills_ExecError(t *testing.T) {
	t.Parallel()
	repo := postgres.NewProfileRepo(&poolStub{execErr: errors.New("db down")})

	err := repo.SaveSkills(context.Background(), "u1", []string{"PHP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=profile.save_skills")
}

func TestProfileRepo_SaveAnalysis(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewProfileRepo(pool)

	rec := domainAnalysis()
	require.NoError(t, repo.SaveAnalysis(context.Background(), "u1", rec))
	require.Len(t, pool.execLog, 1)
	assert.Contains(t, pool.execLog[0], "analysis=EXCLUDED.analysis")
}
