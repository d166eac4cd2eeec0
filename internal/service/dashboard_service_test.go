package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/models"
)

type stubCourseStats struct {
	calls int
	err   error
}

func (s *stubCourseStats) Stats(ctx context.Context) (*models.CourseStats, bool, error) {
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	return &models.CourseStats{Overview: models.CourseOverview{TotalCourses: 3}, BySemester: []models.CourseSemesterCount{}}, false, nil
}

type stubStudentStats struct{}

func (stubStudentStats) Stats(ctx context.Context) (*models.StudentStats, bool, error) {
	return &models.StudentStats{Overview: models.StudentOverview{TotalStudents: 5}}, false, nil
}

type stubEnrollmentStats struct{}

func (stubEnrollmentStats) Stats(ctx context.Context) (*models.EnrollmentStats, bool, error) {
	return &models.EnrollmentStats{Overview: models.EnrollmentOverview{TotalEnrollments: 8, EnrolledCount: 6}}, false, nil
}

type stubRecent struct {
	limit int
	err   error
}

func (s *stubRecent) Recent(ctx context.Context, limit int) ([]models.Activity, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return []models.Activity{{ID: "a1", Action: models.ActionCourseCreated}}, nil
}

func TestDashboardServiceOverviewCaches(t *testing.T) {
	courses := &stubCourseStats{}
	recent := &stubRecent{}
	backend := newMemoryCache()
	svc := NewDashboardService(DashboardServiceParams{
		Courses:     courses,
		Students:    stubStudentStats{},
		Enrollments: stubEnrollmentStats{},
		Activity:    recent,
		Cache:       NewCacheService(backend, nil, time.Minute, zap.NewNop(), true),
	})
	fixed := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	resp, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, resp.Courses.Overview.TotalCourses)
	assert.Equal(t, 5, resp.Students.Overview.TotalStudents)
	assert.Equal(t, 6, resp.Enrollments.Overview.EnrolledCount)
	assert.Len(t, resp.RecentActivity, 1)
	assert.Equal(t, models.RecentActivityLimit, recent.limit)
	assert.Equal(t, fixed, resp.GeneratedAt)

	cached, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, cached.Courses.Overview.TotalCourses)
	assert.Equal(t, 1, courses.calls)
}

func TestDashboardServiceOverviewDegradesWithoutActivity(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{
		Courses:     &stubCourseStats{},
		Students:    stubStudentStats{},
		Enrollments: stubEnrollmentStats{},
		Activity:    &stubRecent{err: errors.New("db down")},
	})

	resp, _, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, resp.RecentActivity)
	assert.Empty(t, resp.RecentActivity)
}

func TestDashboardServiceOverviewPropagatesStatsError(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{
		Courses:     &stubCourseStats{err: errors.New("boom")},
		Students:    stubStudentStats{},
		Enrollments: stubEnrollmentStats{},
		Activity:    &stubRecent{},
	})

	_, _, err := svc.Overview(context.Background())
	assert.Error(t, err)
}
