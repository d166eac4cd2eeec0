package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-management-api/internal/models"
)

// ActivityRepository appends and reads the activity log.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an entry, filling id, colour and timestamp when unset. Replaying an id is a no-op.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Color == "" {
		activity.Color = models.ActivityColorBlue
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO activities (id, action, entity_type, entity_id, message, color, timestamp)
VALUES (:id, :action, :entity_type, :entity_id, :message, :color, :timestamp)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]models.Activity, error) {
	const query = `SELECT id, action, entity_type, entity_id, message, color, timestamp FROM activities ORDER BY timestamp DESC LIMIT $1`
	activities := []models.Activity{}
	if err := r.db.SelectContext(ctx, &activities, query, limit); err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	return activities, nil
}
