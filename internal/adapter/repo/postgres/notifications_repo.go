package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/jobfindr/matchengine/internal/domain"
)

// NotificationRepo appends alert records and serves the cooldown read.
type NotificationRepo struct{ Pool PgxPool }

// NewNotificationRepo constructs a NotificationRepo with the given pool.
func NewNotificationRepo(p PgxPool) *NotificationRepo { return &NotificationRepo{Pool: p} }

// LatestByCategory returns the most recent record for (userID, category), or
// domain.ErrNotFound when the candidate has never been notified in it.
func (r *NotificationRepo) LatestByCategory(ctx domain.Context, userID, category string) (domain.NotificationRecord, error) {
	tracer := otel.Tracer("repo.notifications")
	ctx, span := tracer.Start(ctx, "notifications.LatestByCategory")
	defer span.End()

	q := `SELECT id, payload, created_at FROM notifications
		WHERE user_id=$1 AND category=$2 ORDER BY created_at DESC LIMIT 1`
	row := r.Pool.QueryRow(ctx, q, userID, category)

	rec := domain.NotificationRecord{UserID: userID, Category: category}
	var payloadJSON []byte
	if err := row.Scan(&rec.ID, &payloadJSON, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotificationRecord{}, fmt.Errorf("op=notification.latest: %w", domain.ErrNotFound)
		}
		return domain.NotificationRecord{}, fmt.Errorf("op=notification.latest: %w", err)
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
			return domain.NotificationRecord{}, fmt.Errorf("op=notification.latest: payload: %w", err)
		}
	}
	return rec, nil
}

// Append inserts a new record and returns its id (generates one if empty).
func (r *NotificationRepo) Append(ctx domain.Context, rec domain.NotificationRecord) (string, error) {
	tracer := otel.Tracer("repo.notifications")
	ctx, span := tracer.Start(ctx, "notifications.Append")
	defer span.End()

	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	b, err := json.Marshal(rec.Payload)
	if err != nil {
		return "", fmt.Errorf("op=notification.append: %w", err)
	}
	q := `INSERT INTO notifications (id, user_id, category, payload, created_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.Pool.Exec(ctx, q, id, rec.UserID, rec.Category, b, createdAt); err != nil {
		return "", fmt.Errorf("op=notification.append: %w", err)
	}
	return id, nil
}
