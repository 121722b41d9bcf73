package usecase

import (
	"fmt"
	"strings"

	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/observability"
)

// ProfileService owns resume ingestion: extraction, skill merging, and the
// hand-off to the analysis worker. Extraction and backend failures are
// absorbed here so a resume upload never fails because of them; the caller
// gets the unchanged skill set instead.
type ProfileService struct {
	Profiles  domain.ProfileStore
	Extractor domain.TextExtractor
	Backend   domain.ReasoningBackend
	Locker    domain.ProfileLocker
	Queue     domain.AnalysisQueue
}

// NewProfileService constructs a ProfileService. Backend and Queue may be nil.
func NewProfileService(profiles domain.ProfileStore, extractor domain.TextExtractor, backend domain.ReasoningBackend, locker domain.ProfileLocker, queue domain.AnalysisQueue) ProfileService {
	return ProfileService{Profiles: profiles, Extractor: extractor, Backend: backend, Locker: locker, Queue: queue}
}

// MergeSkills unions two skill lists with case-sensitive exact dedupe.
// Existing skills keep their first-seen order; genuinely new skills follow in
// incoming order. Merging a list into itself is a no-op.
func MergeSkills(existing, incoming []string) []string {
	merged := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, s := range existing {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}
	for _, s := range incoming {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, s)
	}
	return merged
}

// ProcessResumeUpload extracts text from the uploaded file, pulls skills out
// of it via the backend, and merges them into the stored profile under the
// per-candidate lock. It returns the extracted text and the post-merge skill
// list. Extraction or backend trouble degrades to an unchanged skill set; an
// error is returned only for caller mistakes or profile-store failures.
func (s ProfileService) ProcessResumeUpload(ctx domain.Context, userID, filename string, data []byte) (string, []string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, fmt.Errorf("%w: user id required", domain.ErrInvalidArgument)
	}
	if filename == "" || len(data) == 0 {
		return "", nil, fmt.Errorf("%w: resume file required", domain.ErrInvalidArgument)
	}
	lg := observability.LoggerFromContext(ctx)

	text, err := s.Extractor.ExtractFile(ctx, filename, data)
	if err != nil {
		// Treat failed and empty extraction identically: no usable text.
		lg.Warn("resume extraction failed", "user_id", userID, "filename", filename, "error", err)
		text = ""
	}

	var extracted []string
	if text != "" && s.Backend != nil && s.Backend.Configured() {
		extracted, err = s.Backend.ExtractSkills(ctx, text)
		if err != nil {
			lg.Warn("skill extraction failed", "user_id", userID, "error", err)
			extracted = nil
		}
	}

	unlock, err := s.Locker.Lock(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("op=profile.lock: %w", err)
	}
	defer unlock()

	profile, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("op=profile.get: %w", err)
	}
	merged := MergeSkills(profile.Skills, extracted)
	if len(merged) != len(profile.Skills) {
		if err := s.Profiles.SaveSkills(ctx, userID, merged); err != nil {
			return "", nil, fmt.Errorf("op=profile.save_skills: %w", err)
		}
	}

	if text != "" && s.Queue != nil && s.Backend != nil && s.Backend.Configured() {
		if _, err := s.Queue.EnqueueAnalyze(ctx, domain.AnalyzeTaskPayload{UserID: userID, ResumeText: text}); err != nil {
			lg.Error("analysis enqueue failed", "user_id", userID, "error", err)
		} else {
			observability.AnalysisTasksTotal.WithLabelValues("enqueued").Inc()
		}
	}

	return text, merged, nil
}

// Analysis returns the stored comprehensive analysis for a candidate.
func (s ProfileService) Analysis(ctx domain.Context, userID string) (*domain.AIAnalysisRecord, error) {
	profile, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("op=profile.analysis: %w", err)
	}
	return profile.Analysis, nil
}
