package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
)

type courseStatsProvider interface {
	Stats(ctx context.Context) (*models.CourseStats, bool, error)
}

type studentStatsProvider interface {
	Stats(ctx context.Context) (*models.StudentStats, bool, error)
}

type enrollmentStatsProvider interface {
	Stats(ctx context.Context) (*models.EnrollmentStats, bool, error)
}

type recentActivityProvider interface {
	Recent(ctx context.Context, limit int) ([]models.Activity, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL      time.Duration
	ActivityLimit int
}

// DashboardService composes the statistics of every resource with the activity feed.
type DashboardService struct {
	courses     courseStatsProvider
	students    studentStatsProvider
	enrollments enrollmentStatsProvider
	activity    recentActivityProvider
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Courses     courseStatsProvider
	Students    studentStatsProvider
	Enrollments enrollmentStatsProvider
	Activity    recentActivityProvider
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.ActivityLimit <= 0 {
		cfg.ActivityLimit = models.RecentActivityLimit
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		courses:     params.Courses,
		students:    params.Students,
		enrollments: params.Enrollments,
		activity:    params.Activity,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Overview returns the dashboard payload and indicates cache utilisation.
func (s *DashboardService) Overview(ctx context.Context) (*dto.DashboardResponse, bool, error) {
	var cached dto.DashboardResponse
	if s.cache.Get(ctx, CacheKeyDashboard, &cached) {
		return &cached, true, nil
	}

	courses, _, err := s.courses.Stats(ctx)
	if err != nil {
		return nil, false, err
	}
	students, _, err := s.students.Stats(ctx)
	if err != nil {
		return nil, false, err
	}
	enrollments, _, err := s.enrollments.Stats(ctx)
	if err != nil {
		return nil, false, err
	}
	recent, err := s.activity.Recent(ctx, s.cfg.ActivityLimit)
	if err != nil {
		s.logger.Warn("dashboard activity unavailable", zap.Error(err))
		recent = nil
	}
	if recent == nil {
		recent = []models.Activity{}
	}

	resp := &dto.DashboardResponse{
		Courses:        *courses,
		Students:       *students,
		Enrollments:    *enrollments,
		RecentActivity: recent,
		GeneratedAt:    s.now().UTC(),
	}
	s.cache.Set(ctx, CacheKeyDashboard, resp, s.cfg.CacheTTL)
	return resp, false, nil
}
