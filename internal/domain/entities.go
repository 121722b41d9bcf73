package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedFormat   = errors.New("unsupported document format")
	ErrCorruptDocument     = errors.New("corrupt document")
	ErrBackendUnconfigured = errors.New("reasoning backend unconfigured")
	ErrBackendUnavailable  = errors.New("reasoning backend unavailable")
	ErrBackendMalformed    = errors.New("reasoning backend malformed response")
	ErrInternal            = errors.New("internal error")
)

// MatchSource identifies which scorer produced a MatchResult.
type MatchSource string

const (
	SourceAI        MatchSource = "ai"
	SourceHeuristic MatchSource = "heuristic"
)

// RecommendMode selects the post-filter applied to a ranked result set.
type RecommendMode string

const (
	// ModeStrict drops zero-confidence results before applying the limit.
	ModeStrict RecommendMode = "strict"
	// ModeBestEffort keeps every scored job so the caller always sees the
	// whole catalog ranked, even when nothing matched.
	ModeBestEffort RecommendMode = "best_effort"
)

// NotificationCategoryHighMatch tags alerts emitted for strong job matches.
const NotificationCategoryHighMatch = "high_job_match"

// Experience level labels as stored on profiles and analysis records.
const (
	LevelEntry  = "entry"
	LevelMid    = "mid"
	LevelSenior = "senior"
	LevelExpert = "expert"
)

// JobPosting is a read-only snapshot of an open position. The engine never
// mutates postings; persistence is owned by the catalog service.
type JobPosting struct {
	ID           string
	Title        string
	Description  string
	Requirements []string
	Type         string
	Salary       *float64
	Active       bool
	CreatedAt    time.Time
}

// CandidateProfile holds the skills and experience the engine scores against.
// Skills keep first-seen order; dedupe is exact (case-sensitive).
type CandidateProfile struct {
	UserID          string
	Skills          []string
	ExperienceLevel string
	Analysis        *AIAnalysisRecord
	UpdatedAt       time.Time
}

// AIAnalysisRecord is the comprehensive resume analysis produced by the
// reasoning backend. It is written atomically: either the backend returned a
// full record or the defaulted record below is stored, never a partial merge.
type AIAnalysisRecord struct {
	Skills          []string  `json:"skills"`
	ExperienceYears string    `json:"experience_years"`
	Education       []string  `json:"education"`
	Certifications  []string  `json:"certifications"`
	Languages       []string  `json:"languages"`
	Summary         string    `json:"summary"`
	Strengths       []string  `json:"strengths"`
	ExperienceLevel string    `json:"experience_level"`
	KeyAchievements []string  `json:"key_achievements"`
	LastComputed    time.Time `json:"last_computed"`
}

// DefaultAnalysisRecord is stored when the backend output cannot be parsed.
func DefaultAnalysisRecord(now time.Time) AIAnalysisRecord {
	return AIAnalysisRecord{
		Skills:          []string{},
		ExperienceYears: "Unknown",
		Education:       []string{},
		Certifications:  []string{},
		Languages:       []string{},
		Summary:         "Unable to generate summary",
		Strengths:       []string{},
		ExperienceLevel: LevelEntry,
		KeyAchievements: []string{},
		LastComputed:    now,
	}
}

// MatchResult is the per-job scoring outcome. Confidence is always in
// [0,100]. Results are ephemeral; they are never persisted by the engine.
type MatchResult struct {
	JobID      string
	Title      string
	Confidence int
	Reasoning  string
	Source     MatchSource
}

// JobSuggestion is a trimmed, presentation-ready match. JobID may be empty
// when a backend-suggested title could not be reconciled against the catalog;
// callers must tolerate the absence.
type JobSuggestion struct {
	JobID            string `json:"job_id,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	RecommendedLevel string `json:"recommended_level"`
	Confidence       int    `json:"confidence"`
}

// NotificationPayload carries what the alert renders.
type NotificationPayload struct {
	JobIDs   []string `json:"job_ids"`
	TopScore int      `json:"top_score"`
	TopTitle string   `json:"top_title"`
}

// NotificationRecord is an appended alert. The engine only ever reads the
// most recent record per (user, category) to evaluate the cooldown window.
type NotificationRecord struct {
	ID        string
	UserID    string
	Category  string
	Payload   NotificationPayload
	CreatedAt time.Time
}

// AnalyzeTaskPayload is the queued unit of work for comprehensive analysis.
type AnalyzeTaskPayload struct {
	UserID     string `json:"user_id"`
	ResumeText string `json:"resume_text"`
}

// Ports

// JobCatalog reads the scoring universe. Read-only by design.
type JobCatalog interface {
	ListActive(ctx Context) ([]JobPosting, error)
}

// ProfileStore reads and writes candidate profiles. SaveSkills and
// SaveAnalysis must each be atomic against concurrent writers.
type ProfileStore interface {
	Get(ctx Context, userID string) (CandidateProfile, error)
	SaveSkills(ctx Context, userID string, skills []string) error
	SaveAnalysis(ctx Context, userID string, rec AIAnalysisRecord) error
}

// NotificationStore appends alerts and serves the cooldown read.
type NotificationStore interface {
	LatestByCategory(ctx Context, userID, category string) (NotificationRecord, error)
	Append(ctx Context, rec NotificationRecord) (string, error)
}

// ReasoningBackend is the optional network-backed text-reasoning service.
// Configured reports whether a credential is present; when it returns false
// callers must skip the backend entirely rather than fail per call.
type ReasoningBackend interface {
	Configured() bool
	ExtractSkills(ctx Context, resumeText string) ([]string, error)
	AnalyzeComprehensively(ctx Context, resumeText string) (AIAnalysisRecord, error)
	MatchScore(ctx Context, jobText string, skills []string, experience string) (int, string, error)
	SuggestJobs(ctx Context, skills []string, experience string, limit int) ([]JobSuggestion, error)
}

// TextExtractor converts an uploaded resume into plain text.
type TextExtractor interface {
	ExtractFile(ctx Context, filename string, data []byte) (string, error)
}

// ProfileLocker serializes skill merges for one candidate across processes.
type ProfileLocker interface {
	Lock(ctx Context, userID string) (unlock func(), err error)
}

// AnalysisQueue hands resume analysis off to the worker.
type AnalysisQueue interface {
	EnqueueAnalyze(ctx Context, payload AnalyzeTaskPayload) (string, error)
}

// Context aliases context.Context so domain signatures stay terse.
type Context = context.Context
