// Package usecase contains application business logic services.
package usecase

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/observability"
	"github.com/jobfindr/matchengine/pkg/textx"
)

// suggestionDescriptionMax is the presentation budget for suggestion
// descriptions (content plus ellipsis).
const suggestionDescriptionMax = 200

// titleLookupPrefix is how much of a backend-suggested title is used for the
// best-effort catalog reconciliation.
const titleLookupPrefix = 50

// MatchScorer scores one job against a candidate's skills and experience.
// Implementations must clamp confidence to [0,100] and never return an error:
// a scorer that cannot produce a score degrades internally instead of
// failing the pipeline.
type MatchScorer interface {
	Score(ctx domain.Context, job domain.JobPosting, skills []string, experience string) domain.MatchResult
}

// HeuristicMatcher is the deterministic, network-free scorer. It counts how
// many candidate skills appear in the lowercased job text and scales the
// ratio to [0,100].
//
// With Tokenized false the containment check is a raw substring match, so
// "Java" also matches inside "JavaScript". That mirrors the long-standing
// production behavior; flip Tokenized to require word boundaries.
type HeuristicMatcher struct {
	Tokenized bool
}

// Score implements MatchScorer.
func (m HeuristicMatcher) Score(_ domain.Context, job domain.JobPosting, skills []string, _ string) domain.MatchResult {
	text := strings.ToLower(ComposeJobText(job))
	matchCount := 0
	for _, skill := range skills {
		s := strings.ToLower(skill)
		if s == "" {
			continue
		}
		if m.contains(text, s) {
			matchCount++
		}
	}
	confidence := 0
	if matchCount > 0 {
		denom := len(skills)
		if denom < 1 {
			denom = 1
		}
		confidence = matchCount * 100 / denom
		if confidence > 100 {
			confidence = 100
		}
	}
	return domain.MatchResult{
		JobID:      job.ID,
		Title:      job.Title,
		Confidence: confidence,
		Source:     domain.SourceHeuristic,
	}
}

func (m HeuristicMatcher) contains(text, skill string) bool {
	if !m.Tokenized {
		return strings.Contains(text, skill)
	}
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '+' || r == '#' || r == '.')
	}) {
		if word == skill {
			return true
		}
	}
	return false
}

// AIMatcher asks the reasoning backend for a score and falls back to the
// heuristic scorer when the call fails. Failures are per job; the pipeline
// never sees them.
type AIMatcher struct {
	Backend  domain.ReasoningBackend
	Fallback HeuristicMatcher
}

// Score implements MatchScorer.
func (m AIMatcher) Score(ctx domain.Context, job domain.JobPosting, skills []string, experience string) domain.MatchResult {
	score, reasoning, err := m.Backend.MatchScore(ctx, ComposeJobText(job), skills, experience)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("ai scoring failed, using heuristic",
			"job_id", job.ID, "error", err)
		observability.ScoringFallbacksTotal.Inc()
		return m.Fallback.Score(ctx, job, skills, experience)
	}
	return domain.MatchResult{
		JobID:      job.ID,
		Title:      job.Title,
		Confidence: clampConfidence(score),
		Reasoning:  reasoning,
		Source:     domain.SourceAI,
	}
}

// ComposeJobText builds the scoring haystack: title, description, and the
// JSON rendering of the structured requirements when present.
func ComposeJobText(job domain.JobPosting) string {
	parts := []string{job.Title, job.Description}
	if len(job.Requirements) > 0 {
		if b, err := json.Marshal(job.Requirements); err == nil {
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, " ")
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Pipeline orchestrates scoring across a job set, ranks, filters, and clamps
// the results.
type Pipeline struct {
	Backend     domain.ReasoningBackend
	Catalog     domain.JobCatalog
	Tokenized   bool
	Concurrency int
	MaxLimit    int
}

// NewPipeline constructs a Pipeline. Backend may be nil for heuristic-only
// deployments.
func NewPipeline(backend domain.ReasoningBackend, catalog domain.JobCatalog, tokenized bool, concurrency, maxLimit int) Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxLimit < 1 {
		maxLimit = 10
	}
	return Pipeline{Backend: backend, Catalog: catalog, Tokenized: tokenized, Concurrency: concurrency, MaxLimit: maxLimit}
}

// Recommend scores every job for the profile and returns the ranked, trimmed
// list. Ordering is deterministic regardless of scoring concurrency: strictly
// (confidence desc, original catalog index asc). In strict mode
// zero-confidence results are dropped; in best-effort mode they are kept.
func (p Pipeline) Recommend(ctx domain.Context, profile domain.CandidateProfile, jobs []domain.JobPosting, limit int, mode domain.RecommendMode) ([]domain.MatchResult, error) {
	if !hasUsableSkill(profile.Skills) {
		return nil, fmt.Errorf("%w: at least one skill required", domain.ErrInvalidArgument)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidArgument)
	}
	if limit > p.MaxLimit {
		limit = p.MaxLimit
	}

	scored := p.scoreAll(ctx, jobs, profile.Skills, profile.ExperienceLevel)

	// Stable keeps the original catalog order for equal confidence.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Confidence > scored[j].Confidence })

	out := make([]domain.MatchResult, 0, limit)
	for _, r := range scored {
		if mode == domain.ModeStrict && r.Confidence == 0 {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	for _, r := range out {
		observability.ObserveConfidence(string(r.Source), r.Confidence)
	}
	return out, nil
}

// scoreAll fans scoring out over a bounded worker pool and collects results
// by catalog index. When the backend is known unconfigured the whole set goes
// through the heuristic scorer without a single network call.
func (p Pipeline) scoreAll(ctx domain.Context, jobs []domain.JobPosting, skills []string, experience string) []domain.MatchResult {
	heuristic := HeuristicMatcher{Tokenized: p.Tokenized}
	var scorer MatchScorer = heuristic
	if p.Backend != nil && p.Backend.Configured() {
		scorer = AIMatcher{Backend: p.Backend, Fallback: heuristic}
	}

	scored := make([]domain.MatchResult, len(jobs))
	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				scored[i] = scorer.Score(ctx, jobs[i], skills, experience)
			}
		}()
	}
	for i := range jobs {
		idx <- i
	}
	close(idx)
	wg.Wait()
	return scored
}

// SuggestForSkills is the skill-chat path: heuristic-only strict scoring of
// the live catalog against caller-provided skills.
func (p Pipeline) SuggestForSkills(ctx domain.Context, skills []string, experience string, limit int) ([]domain.JobSuggestion, error) {
	jobs, err := p.Catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=recommend.suggest_for_skills: %w", err)
	}
	profile := domain.CandidateProfile{Skills: skills, ExperienceLevel: experience}
	heuristicOnly := Pipeline{Catalog: p.Catalog, Tokenized: p.Tokenized, Concurrency: p.Concurrency, MaxLimit: p.MaxLimit}
	matches, err := heuristicOnly.Recommend(ctx, profile, jobs, limit, domain.ModeStrict)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.JobPosting, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}
	out := make([]domain.JobSuggestion, 0, len(matches))
	for _, m := range matches {
		job := byID[m.JobID]
		out = append(out, domain.JobSuggestion{
			JobID:            m.JobID,
			Title:            m.Title,
			Description:      textx.Truncate(job.Description, suggestionDescriptionMax),
			RecommendedLevel: recommendedLevel(job),
			Confidence:       m.Confidence,
		})
	}
	return out, nil
}

// SuggestFromBackend asks the reasoning backend to invent suggestions and
// reconciles the returned titles against the live catalog.
func (p Pipeline) SuggestFromBackend(ctx domain.Context, skills []string, experience string, limit int) ([]domain.JobSuggestion, error) {
	if p.Backend == nil || !p.Backend.Configured() {
		return nil, domain.ErrBackendUnconfigured
	}
	suggestions, err := p.Backend.SuggestJobs(ctx, skills, experience, limit)
	if err != nil {
		return nil, err
	}
	jobs, err := p.Catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=recommend.suggest_from_backend: %w", err)
	}
	ResolveSuggestionIDs(suggestions, jobs)
	return suggestions, nil
}

// ResolveSuggestionIDs fills in missing job ids by matching the first 50
// characters of each suggested title against catalog titles, case
// insensitively. Unresolved suggestions keep an empty id; callers must not
// let users act on those.
func ResolveSuggestionIDs(suggestions []domain.JobSuggestion, jobs []domain.JobPosting) {
	for i := range suggestions {
		if suggestions[i].JobID != "" || suggestions[i].Title == "" {
			continue
		}
		needle := strings.ToLower(suggestions[i].Title)
		if r := []rune(needle); len(r) > titleLookupPrefix {
			needle = string(r[:titleLookupPrefix])
		}
		for _, j := range jobs {
			if strings.Contains(strings.ToLower(j.Title), needle) {
				suggestions[i].JobID = j.ID
				break
			}
		}
	}
}

func recommendedLevel(job domain.JobPosting) string {
	if job.Type != "" {
		return job.Type
	}
	return domain.LevelMid
}

func hasUsableSkill(skills []string) bool {
	for _, s := range skills {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
