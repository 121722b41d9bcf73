package redpanda_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfindr/matchengine/internal/adapter/queue/redpanda"
	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/usecase"
)

type stubBackend struct {
	configured bool
	rec        domain.AIAnalysisRecord
	err        error
}

func (b *stubBackend) Configured() bool { return b.configured }
func (b *stubBackend) ExtractSkills(ctx domain.Context, text string) ([]string, error) {
	return nil, nil
}
func (b *stubBackend) AnalyzeComprehensively(ctx domain.Context, text string) (domain.AIAnalysisRecord, error) {
	if b.err != nil {
		return domain.AIAnalysisRecord{}, b.err
	}
	return b.rec, nil
}
func (b *stubBackend) MatchScore(ctx domain.Context, jobText string, skills []string, experience string) (int, string, error) {
	return 0, "", domain.ErrBackendUnavailable
}
func (b *stubBackend) SuggestJobs(ctx domain.Context, skills []string, experience string, limit int) ([]domain.JobSuggestion, error) {
	return nil, nil
}

type stubProfiles struct {
	profile domain.CandidateProfile
	saved   []domain.AIAnalysisRecord
	saveErr error
}

func (s *stubProfiles) Get(ctx domain.Context, userID string) (domain.CandidateProfile, error) {
	return s.profile, nil
}
func (s *stubProfiles) SaveSkills(ctx domain.Context, userID string, skills []string) error {
	return nil
}
func (s *stubProfiles) SaveAnalysis(ctx domain.Context, userID string, rec domain.AIAnalysisRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, rec)
	s.profile.Analysis = &rec
	return nil
}

type stubCatalog struct{ jobs []domain.JobPosting }

func (c *stubCatalog) ListActive(ctx domain.Context) ([]domain.JobPosting, error) {
	return c.jobs, nil
}

type stubNotifications struct {
	appended []domain.NotificationRecord
}

func (s *stubNotifications) LatestByCategory(ctx domain.Context, userID, category string) (domain.NotificationRecord, error) {
	return domain.NotificationRecord{}, domain.ErrNotFound
}
func (s *stubNotifications) Append(ctx domain.Context, rec domain.NotificationRecord) (string, error) {
	s.appended = append(s.appended, rec)
	return rec.ID, nil
}

func newHandler(backend *stubBackend, profiles *stubProfiles, catalog *stubCatalog, store *stubNotifications) redpanda.AnalysisHandler {
	return redpanda.AnalysisHandler{
		Backend:   backend,
		Profiles:  profiles,
		Catalog:   catalog,
		Pipeline:  usecase.NewPipeline(nil, catalog, false, 2, 10),
		Notifier:  usecase.NewNotifier(store, 75, 6*time.Hour),
		Threshold: 75,
	}
}

func analyzedRecord() domain.AIAnalysisRecord {
	return domain.AIAnalysisRecord{
		Skills:          []string{"PHP", "Laravel"},
		ExperienceYears: "5 years",
		Summary:         "Seasoned backend engineer",
		ExperienceLevel: domain.LevelSenior,
		LastComputed:    time.Now().UTC(),
	}
}

func TestHandle_StoresAnalysisAndNotifies(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{configured: true, rec: analyzedRecord()}
	profiles := &stubProfiles{profile: domain.CandidateProfile{UserID: "u1", Skills: []string{"PHP"}}}
	catalog := &stubCatalog{jobs: []domain.JobPosting{
		{ID: "j1", Title: "PHP Developer", Description: "Laravel APIs"},
	}}
	store := &stubNotifications{}
	h := newHandler(backend, profiles, catalog, store)

	err := h.Handle(context.Background(), domain.AnalyzeTaskPayload{UserID: "u1", ResumeText: "resume"})
	require.NoError(t, err)

	require.Len(t, profiles.saved, 1)
	assert.Equal(t, "5 years", profiles.saved[0].ExperienceYears)

	// The single catalog job scores 100 for the PHP profile, clearing the
	// threshold, and the fresh analysis makes the candidate eligible.
	require.Len(t, store.appended, 1)
	assert.Equal(t, domain.NotificationCategoryHighMatch, store.appended[0].Category)
	assert.Equal(t, []string{"j1"}, store.appended[0].Payload.JobIDs)
}

func TestHandle_BackendFailureStoresDefault(t *testing.T) {
	t.Parallel()
	backend := &stubBackend{configured: true, err: domain.ErrBackendUnavailable}
	profiles := &stubProfiles{profile: domain.CandidateProfile{UserID: "u1"}}
	h := newHandler(backend, profiles, &stubCatalog{}, &stubNotifications{})

	err := h.Handle(context.Background(), domain.AnalyzeTaskPayload{UserID: "u1", ResumeText: "resume"})
	require.NoError(t, err, "backend failure never fails the task")

	require.Len(t, profiles.saved, 1)
	assert.Equal(t, "Unknown", profiles.saved[0].ExperienceYears)
	assert.Equal(t, "Unable to generate summary", profiles.saved[0].Summary)
}

func TestHandle_UnconfiguredBackendStoresDefault(t *testing.T) {
	t.Parallel()
	profiles := &stubProfiles{profile: domain.CandidateProfile{UserID: "u1"}}
	h := newHandler(&stubBackend{configured: false}, profiles, &stubCatalog{}, &stubNotifications{})

	err := h.Handle(context.Background(), domain.AnalyzeTaskPayload{UserID: "u1", ResumeText: "resume"})
	require.NoError(t, err)
	require.Len(t, profiles.saved, 1)
	assert.Equal(t, domain.LevelEntry, profiles.saved[0].ExperienceLevel)
}

func TestHandle_SaveFailureSurfaces(t *testing.T) {
	t.Parallel()
	profiles := &stubProfiles{saveErr: errors.New("db down")}
	h := newHandler(&stubBackend{configured: true, rec: analyzedRecord()}, profiles, &stubCatalog{}, &stubNotifications{})

	err := h.Handle(context.Background(), domain.AnalyzeTaskPayload{UserID: "u1", ResumeText: "resume"})
	require.Error(t, err)
}

func TestHandle_NoSkillsSkipsNotification(t *testing.T) {
	t.Parallel()
	profiles := &stubProfiles{profile: domain.CandidateProfile{UserID: "u1"}}
	store := &stubNotifications{}
	h := newHandler(&stubBackend{configured: true, rec: analyzedRecord()}, profiles, &stubCatalog{}, store)

	err := h.Handle(context.Background(), domain.AnalyzeTaskPayload{UserID: "u1", ResumeText: "resume"})
	require.NoError(t, err)
	assert.Empty(t, store.appended)
}

func TestHandle_SubThresholdMatchesDoNotNotify(t *testing.T) {
	t.Parallel()
	profiles := &stubProfiles{profile: domain.CandidateProfile{UserID: "u1", Skills: []string{"PHP", "Laravel", "MySQL"}}}
	// Only one of three skills appears, so confidence is 33 and stays below
	// the 75 threshold.
	catalog := &stubCatalog{jobs: []domain.JobPosting{
		{ID: "j1", Title: "PHP Developer", Description: "legacy systems"},
	}}
	store := &stubNotifications{}
	h := newHandler(&stubBackend{configured: true, rec: analyzedRecord()}, profiles, catalog, store)

	err := h.Handle(context.Background(), domain.AnalyzeTaskPayload{UserID: "u1", ResumeText: "resume"})
	require.NoError(t, err)
	assert.Empty(t, store.appended)
}

func TestHandle_ValidatesPayload(t *testing.T) {
	t.Parallel()
	h := newHandler(&stubBackend{}, &stubProfiles{}, &stubCatalog{}, &stubNotifications{})

	err := h.Handle(context.Background(), domain.AnalyzeTaskPayload{UserID: "", ResumeText: "x"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	err = h.Handle(context.Background(), domain.AnalyzeTaskPayload{UserID: "u1", ResumeText: ""})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
