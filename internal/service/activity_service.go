package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
	"github.com/noah-isme/course-management-api/pkg/jobs"
)

const (
	activityJobType    = "activity.record"
	maxActivityLimit   = 50
	activitySinkDB     = "postgres"
	activitySinkBroker = "kafka"
)

type activityStore interface {
	Create(ctx context.Context, activity *models.Activity) error
	Recent(ctx context.Context, limit int) ([]models.Activity, error)
}

// ActivityPublisher forwards persisted entries to an event stream.
type ActivityPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// activityRecorder is what the resource services need from the activity log.
type activityRecorder interface {
	Record(ctx context.Context, activity models.Activity)
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, models.Activity) {}

// ActivityConfig sizes the detached writer.
type ActivityConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// ActivityService records activity entries off the request path and serves the recent feed.
type ActivityService struct {
	store     activityStore
	publisher ActivityPublisher
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewActivityService builds the service and its worker queue. Call Start before recording.
// publisher may be nil when no broker is configured.
func NewActivityService(store activityStore, publisher ActivityPublisher, cfg ActivityConfig, metrics *MetricsService, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ActivityService{store: store, publisher: publisher, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("activity", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the writer workers.
func (s *ActivityService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (s *ActivityService) Stop() {
	s.queue.Stop()
}

// Record hands the entry to the writer without blocking. It never fails the caller:
// a full or stopped queue drops the entry with a warning.
func (s *ActivityService) Record(ctx context.Context, activity models.Activity) {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Color == "" {
		activity.Color = models.ActivityColorBlue
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}

	err := s.queue.TryEnqueue(jobs.Job{ID: activity.ID, Type: activityJobType, Payload: activity})
	if err != nil {
		s.metrics.RecordActivityDropped()
		s.logger.Warn("activity dropped",
			zap.String("action", activity.Action),
			zap.String("entity_id", activity.EntityID),
			zap.Bool("queue_full", errors.Is(err, jobs.ErrQueueFull)),
			zap.Error(err),
		)
	}
}

// Recent returns the newest entries, defaulting to RecentActivityLimit and capped at 50.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = models.RecentActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	activities, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent activity")
	}
	return activities, nil
}

func (s *ActivityService) handle(ctx context.Context, job jobs.Job) error {
	activity, ok := job.Payload.(models.Activity)
	if !ok {
		s.logger.Error("unexpected activity payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}

	err := s.store.Create(ctx, &activity)
	s.metrics.RecordActivityWrite(activitySinkDB, err)
	if err != nil {
		return fmt.Errorf("persist activity %s: %w", activity.ID, err)
	}

	if s.publisher != nil {
		pubErr := s.publisher.Publish(ctx, activity.EntityID, activity)
		s.metrics.RecordActivityWrite(activitySinkBroker, pubErr)
		if pubErr != nil {
			s.logger.Warn("activity publish failed", zap.String("activity_id", activity.ID), zap.Error(pubErr))
		}
	}
	return nil
}
