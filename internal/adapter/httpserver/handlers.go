package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/jobfindr/matchengine/internal/config"
	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg      config.Config
	Pipeline usecase.Pipeline
	Profile  usecase.ProfileService
	Catalog  domain.JobCatalog
	Profiles domain.ProfileStore

	DBCheck     func(ctx context.Context) error
	RedisCheck  func(ctx context.Context) error
	BrokerCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, pipeline usecase.Pipeline, profile usecase.ProfileService, catalog domain.JobCatalog, profiles domain.ProfileStore, dbCheck, redisCheck, brokerCheck func(context.Context) error) *Server {
	return &Server{
		Cfg:      cfg,
		Pipeline: pipeline,
		Profile:  profile,
		Catalog:  catalog,
		Profiles: profiles,

		DBCheck:     dbCheck,
		RedisCheck:  redisCheck,
		BrokerCheck: brokerCheck,
	}
}

// ensureJSONAccepted rejects requests whose Accept header excludes JSON.
func ensureJSONAccepted(w http.ResponseWriter, r *http.Request) bool {
	if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
		writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
			Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a},
		}})
		return false
	}
	return true
}

// allowedExt enforces the resume upload allowlist: .pdf, .doc, .docx
func allowedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".doc", ".docx":
		return true
	}
	return false
}

func allowedMIME(m string) bool {
	m = strings.ToLower(m)
	return m == "application/pdf" ||
		m == "application/msword" ||
		m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

type matchDTO struct {
	JobID      string `json:"job_id"`
	Title      string `json:"title"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning,omitempty"`
	Source     string `json:"source"`
}

func toMatchDTOs(matches []domain.MatchResult) []matchDTO {
	out := make([]matchDTO, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchDTO{
			JobID:      m.JobID,
			Title:      m.Title,
			Confidence: m.Confidence,
			Reasoning:  m.Reasoning,
			Source:     string(m.Source),
		})
	}
	return out
}

// effectiveLimit substitutes the configured default when the caller omitted
// the limit. Negative limits pass through so the pipeline rejects them.
func (s *Server) effectiveLimit(limit int) int {
	if limit == 0 {
		return s.Cfg.DefaultSuggestions
	}
	return limit
}

// RecommendationsHandler scores the live catalog for a candidate profile.
func (s *Server) RecommendationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ensureJSONAccepted(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
		var req struct {
			UserID     string   `json:"user_id"`
			Skills     []string `json:"skills"`
			Experience string   `json:"experience"`
			Limit      int      `json:"limit"`
			Mode       string   `json:"mode" validate:"omitempty,oneof=strict best_effort"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}

		ctx := r.Context()
		profile := domain.CandidateProfile{UserID: req.UserID, Skills: req.Skills, ExperienceLevel: req.Experience}
		if len(req.Skills) == 0 {
			if req.UserID == "" {
				writeError(w, r, fmt.Errorf("%w: user_id or skills required", domain.ErrInvalidArgument), nil)
				return
			}
			stored, err := s.Profiles.Get(ctx, req.UserID)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			profile = stored
			if req.Experience != "" {
				profile.ExperienceLevel = req.Experience
			}
		}

		mode := domain.RecommendMode(req.Mode)
		if mode == "" {
			// The browse view wants the whole ranked catalog by default.
			mode = domain.ModeBestEffort
		}

		jobs, err := s.Catalog.ListActive(ctx)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		matches, err := s.Pipeline.Recommend(ctx, profile, jobs, s.effectiveLimit(req.Limit), mode)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": toMatchDTOs(matches), "count": len(matches)})
	}
}

// SuggestionsHandler is the skill-chat endpoint: suggestions for an ad-hoc
// skill list without a stored profile. source=ai asks the reasoning backend
// to invent suggestions instead of scoring the catalog heuristically.
func (s *Server) SuggestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ensureJSONAccepted(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
		var req struct {
			Skills     []string `json:"skills" validate:"required,min=1"`
			Experience string   `json:"experience"`
			Limit      int      `json:"limit"`
			Source     string   `json:"source" validate:"omitempty,oneof=catalog ai"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}

		ctx := r.Context()
		limit := s.effectiveLimit(req.Limit)
		var (
			suggestions []domain.JobSuggestion
			err         error
		)
		if req.Source == "ai" {
			suggestions, err = s.Pipeline.SuggestFromBackend(ctx, req.Skills, req.Experience, limit)
		} else {
			suggestions, err = s.Pipeline.SuggestForSkills(ctx, req.Skills, req.Experience, limit)
		}
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if suggestions == nil {
			suggestions = []domain.JobSuggestion{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions, "count": len(suggestions)})
	}
}

// ResumeUploadHandler ingests a multipart resume for the candidate: extract,
// merge skills, enqueue the comprehensive analysis task.
func (s *Server) ResumeUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ensureJSONAccepted(w, r) {
			return
		}
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			writeError(w, r, fmt.Errorf("%w: userID missing", domain.ErrInvalidArgument), nil)
			return
		}
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}

		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
					Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB},
				}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		file, header, err := r.FormFile("resume")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: resume file required", domain.ErrInvalidArgument), map[string]string{"field": "resume"})
			return
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: resume read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		if !allowedExt(header.Filename) {
			writeError(w, r, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Ext(header.Filename)),
				map[string]string{"filename": header.Filename})
			return
		}
		mime := mimetype.Detect(data)
		if !allowedMIME(mime.String()) {
			writeError(w, r, fmt.Errorf("%w: content sniffed as %s", domain.ErrUnsupportedFormat, mime.String()),
				map[string]string{"mime": mime.String(), "filename": header.Filename})
			return
		}

		text, skills, err := s.Profile.ProcessResumeUpload(r.Context(), userID, header.Filename, data)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":    userID,
			"skills":     skills,
			"text_chars": len(text),
		})
	}
}

// AnalysisHandler returns the stored comprehensive resume analysis.
func (s *Server) AnalysisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ensureJSONAccepted(w, r) {
			return
		}
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			writeError(w, r, fmt.Errorf("%w: userID missing", domain.ErrInvalidArgument), nil)
			return
		}
		rec, err := s.Profile.Analysis(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if rec == nil {
			writeError(w, r, fmt.Errorf("%w: no analysis for user", domain.ErrNotFound), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "analysis": rec})
	}
}

// ReadyzHandler probes the DB, Redis, and the message broker. The reasoning
// backend is reported but never fails readiness; the service degrades to
// heuristic scoring without it.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 4)
		probe := func(name string, fn func(ctx context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
				return
			}
			checks = append(checks, check{Name: name, OK: true})
		}
		probe("db", s.DBCheck)
		probe("redis", s.RedisCheck)
		probe("broker", s.BrokerCheck)
		if s.Cfg.BackendConfigured() {
			checks = append(checks, check{Name: "backend", OK: true})
		} else {
			checks = append(checks, check{Name: "backend", OK: true, Details: "unconfigured, heuristic scoring only"})
		}

		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
