package redpanda

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/observability"
	"github.com/jobfindr/matchengine/internal/usecase"
)

// AnalysisHandler runs one resume analysis task end to end: comprehensive
// analysis, atomic persistence, and the follow-up high-match notification
// check.
type AnalysisHandler struct {
	Backend   domain.ReasoningBackend
	Profiles  domain.ProfileStore
	Catalog   domain.JobCatalog
	Pipeline  usecase.Pipeline
	Notifier  usecase.Notifier
	Threshold int
}

// Handle processes a single analysis task. Backend failures degrade to the
// defaulted analysis record; only persistence failures are returned so the
// consumer can surface them.
func (h AnalysisHandler) Handle(ctx domain.Context, payload domain.AnalyzeTaskPayload) error {
	if payload.UserID == "" || payload.ResumeText == "" {
		return fmt.Errorf("%w: user id and resume text required", domain.ErrInvalidArgument)
	}
	lg := observability.LoggerFromContext(ctx).With(slog.String("user_id", payload.UserID))

	rec := h.analyze(ctx, lg, payload.ResumeText)
	if err := h.Profiles.SaveAnalysis(ctx, payload.UserID, rec); err != nil {
		observability.AnalysisTasksTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("op=analysis.save: %w", err)
	}
	observability.AnalysisTasksTotal.WithLabelValues("completed").Inc()
	lg.Info("analysis stored", slog.String("experience_level", rec.ExperienceLevel))

	if err := h.notifyHighMatches(ctx, payload.UserID); err != nil {
		// Notification trouble never fails the task; the analysis is saved.
		lg.Warn("high match notification check failed", slog.Any("error", err))
	}
	return nil
}

func (h AnalysisHandler) analyze(ctx domain.Context, lg *slog.Logger, resumeText string) domain.AIAnalysisRecord {
	if h.Backend == nil || !h.Backend.Configured() {
		lg.Warn("backend unavailable, storing defaulted analysis")
		return domain.DefaultAnalysisRecord(time.Now().UTC())
	}
	rec, err := h.Backend.AnalyzeComprehensively(ctx, resumeText)
	if err != nil {
		lg.Warn("comprehensive analysis failed, storing defaulted record", slog.Any("error", err))
		return domain.DefaultAnalysisRecord(time.Now().UTC())
	}
	return rec
}

// notifyHighMatches re-scores the freshly analyzed candidate against the live
// catalog and emits a high_job_match alert when every surviving match clears
// the threshold.
func (h AnalysisHandler) notifyHighMatches(ctx domain.Context, userID string) error {
	profile, err := h.Profiles.Get(ctx, userID)
	if err != nil {
		return err
	}
	jobs, err := h.Catalog.ListActive(ctx)
	if err != nil {
		return err
	}

	matches, err := h.Pipeline.Recommend(ctx, profile, jobs, h.Pipeline.MaxLimit, domain.ModeStrict)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			// Candidate has no usable skills yet; nothing to notify about.
			return nil
		}
		return err
	}

	high := matches[:0:0]
	for _, m := range matches {
		if m.Confidence >= h.Threshold {
			high = append(high, m)
		}
	}
	if len(high) == 0 {
		return nil
	}
	_, err = h.Notifier.MaybeNotifyHighMatch(ctx, profile, high)
	return err
}
