package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/observability"
)

// Notifier decides whether a strong-match alert should be emitted and, when
// permitted, appends the record. The read-then-append sequence is best-effort
// at-most-one-per-window; a rare double send under true concurrency is
// acceptable, dropped notifications are not.
type Notifier struct {
	Store     domain.NotificationStore
	Threshold int
	Cooldown  time.Duration
	Now       func() time.Time
}

// NewNotifier constructs a Notifier with the given threshold and cooldown.
func NewNotifier(store domain.NotificationStore, threshold int, cooldown time.Duration) Notifier {
	return Notifier{Store: store, Threshold: threshold, Cooldown: cooldown, Now: time.Now}
}

// ShouldNotify reports whether a new notification for (userID, category) is
// permitted at instant now. A record exactly Cooldown old no longer
// suppresses: the window is [created, created+Cooldown).
func (n Notifier) ShouldNotify(ctx domain.Context, userID, category string, now time.Time) (bool, error) {
	rec, err := n.Store.LatestByCategory(ctx, userID, category)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("op=notify.latest: %w", err)
	}
	return now.Sub(rec.CreatedAt) >= n.Cooldown, nil
}

// MaybeNotifyHighMatch evaluates a ranked match set for a candidate and
// appends a high_job_match record when eligible. Eligibility: a non-empty
// set in which every match clears the threshold, and a profile carrying a
// completed analysis record; heuristic-only candidates never qualify because
// they cannot have one.
func (n Notifier) MaybeNotifyHighMatch(ctx domain.Context, profile domain.CandidateProfile, matches []domain.MatchResult) (bool, error) {
	if len(matches) == 0 || profile.Analysis == nil {
		observability.NotificationDecisionsTotal.WithLabelValues("ineligible").Inc()
		return false, nil
	}
	top := matches[0]
	jobIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Confidence < n.Threshold {
			observability.NotificationDecisionsTotal.WithLabelValues("ineligible").Inc()
			return false, nil
		}
		if m.Confidence > top.Confidence {
			top = m
		}
		jobIDs = append(jobIDs, m.JobID)
	}

	now := n.Now()
	ok, err := n.ShouldNotify(ctx, profile.UserID, domain.NotificationCategoryHighMatch, now)
	if err != nil {
		return false, err
	}
	if !ok {
		observability.NotificationDecisionsTotal.WithLabelValues("cooldown").Inc()
		return false, nil
	}

	rec := domain.NotificationRecord{
		ID:       uuid.New().String(),
		UserID:   profile.UserID,
		Category: domain.NotificationCategoryHighMatch,
		Payload: domain.NotificationPayload{
			JobIDs:   jobIDs,
			TopScore: top.Confidence,
			TopTitle: top.Title,
		},
		CreatedAt: now,
	}
	if _, err := n.Store.Append(ctx, rec); err != nil {
		return false, fmt.Errorf("op=notify.append: %w", err)
	}
	observability.NotificationDecisionsTotal.WithLabelValues("sent").Inc()
	return true, nil
}
