package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jobfindr/matchengine/internal/adapter/httpserver"
	"github.com/jobfindr/matchengine/internal/config"
	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/usecase"
)

type stubCatalog struct {
	jobs []domain.JobPosting
	err  error
}

func (c *stubCatalog) ListActive(ctx domain.Context) ([]domain.JobPosting, error) {
	return c.jobs, c.err
}

type stubProfiles struct {
	profile domain.CandidateProfile
	getErr  error
	saved   [][]string
}

func (s *stubProfiles) Get(ctx domain.Context, userID string) (domain.CandidateProfile, error) {
	if s.getErr != nil {
		return domain.CandidateProfile{}, s.getErr
	}
	return s.profile, nil
}
func (s *stubProfiles) SaveSkills(ctx domain.Context, userID string, skills []string) error {
	s.saved = append(s.saved, skills)
	return nil
}
func (s *stubProfiles) SaveAnalysis(ctx domain.Context, userID string, rec domain.AIAnalysisRecord) error {
	return nil
}

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) ExtractFile(ctx domain.Context, filename string, data []byte) (string, error) {
	return e.text, e.err
}

type stubLocker struct{}

func (l *stubLocker) Lock(ctx domain.Context, userID string) (func(), error) {
	return func() {}, nil
}

type stubBackend struct {
	suggestions []domain.JobSuggestion
	suggestErr  error
}

func (b *stubBackend) Configured() bool { return true }
func (b *stubBackend) ExtractSkills(ctx domain.Context, text string) ([]string, error) {
	return nil, domain.ErrBackendUnavailable
}
func (b *stubBackend) AnalyzeComprehensively(ctx domain.Context, text string) (domain.AIAnalysisRecord, error) {
	return domain.AIAnalysisRecord{}, domain.ErrBackendUnavailable
}
func (b *stubBackend) MatchScore(ctx domain.Context, jobText string, skills []string, experience string) (int, string, error) {
	return 0, "", domain.ErrBackendUnavailable
}
func (b *stubBackend) SuggestJobs(ctx domain.Context, skills []string, experience string, limit int) ([]domain.JobSuggestion, error) {
	return b.suggestions, b.suggestErr
}

type serverFixture struct {
	catalog  *stubCatalog
	profiles *stubProfiles
	srv      *httpserver.Server
	router   chi.Router
}

func newFixture(t *testing.T, backend domain.ReasoningBackend) *serverFixture {
	t.Helper()
	catalog := &stubCatalog{jobs: []domain.JobPosting{
		{ID: "j1", Title: "PHP Developer", Description: "PHP and Laravel APIs", Type: "senior", Active: true},
		{ID: "j2", Title: "Data Scientist", Description: "Python models", Active: true},
	}}
	profiles := &stubProfiles{profile: domain.CandidateProfile{
		UserID: "u1", Skills: []string{"PHP", "Laravel"}, ExperienceLevel: domain.LevelSenior,
	}}
	cfg := config.Config{DefaultSuggestions: 5, MaxSuggestions: 10, MaxUploadMB: 5}
	pipeline := usecase.NewPipeline(backend, catalog, false, 2, cfg.MaxSuggestions)
	profileSvc := usecase.NewProfileService(profiles, &stubExtractor{text: "resume text"}, nil, &stubLocker{}, nil)

	srv := httpserver.NewServer(cfg, pipeline, profileSvc, catalog, profiles, nil, nil, nil)
	r := chi.NewRouter()
	r.Post("/v1/recommendations", srv.RecommendationsHandler())
	r.Post("/v1/suggestions", srv.SuggestionsHandler())
	r.Post("/v1/profile/{userID}/resume", srv.ResumeUploadHandler())
	r.Get("/v1/profile/{userID}/analysis", srv.AnalysisHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	return &serverFixture{catalog: catalog, profiles: profiles, srv: srv, router: r}
}

func (f *serverFixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// analysisFixture returns a profile carrying a completed analysis.
func analysisFixture() domain.CandidateProfile {
	rec := domain.AIAnalysisRecord{
		Skills:          []string{"PHP"},
		ExperienceYears: "5 years",
		Summary:         "Seasoned engineer",
		ExperienceLevel: domain.LevelSenior,
		LastComputed:    time.Now().UTC(),
	}
	return domain.CandidateProfile{UserID: "u1", Skills: []string{"PHP"}, Analysis: &rec}
}
