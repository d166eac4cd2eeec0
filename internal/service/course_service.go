package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	"github.com/noah-isme/course-management-api/internal/repository"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
	"github.com/noah-isme/course-management-api/pkg/validation"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.CourseStats, error)
	Reconcile(ctx context.Context, courseID string) ([]models.CourseReconciliation, error)
}

// CourseService handles course offerings.
type CourseService struct {
	repo      courseRepository
	validator *validation.Validator
	cache     *CacheService
	activity  activityRecorder
	logger    *zap.Logger
}

// NewCourseService constructs the course service. cache and activity may be nil.
func NewCourseService(repo courseRepository, validate *validation.Validator, cache *CacheService, activity activityRecorder, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validation.Default()
	}
	if activity == nil {
		activity = noopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, cache: cache, activity: activity, logger: logger}
}

// List returns active courses and pagination metadata.
func (s *CourseService) List(ctx context.Context, query dto.CourseListQuery) ([]models.CourseView, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, err
	}
	page, limit, _ := models.NormalizePage(query.Page, query.Limit)
	courses, total, err := s.repo.List(ctx, models.CourseFilter{
		Semester:   query.Semester,
		Year:       query.Year,
		Instructor: strings.TrimSpace(query.Instructor),
		Search:     strings.TrimSpace(query.Search),
		Page:       page,
		PageSize:   limit,
	})
	if err != nil {
		return nil, nil, internalError(err, "failed to list courses")
	}
	views := make([]models.CourseView, 0, len(courses))
	for _, c := range courses {
		views = append(views, models.NewCourseView(c))
	}
	return views, models.NewPagination(page, limit, total), nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseView, error) {
	course, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := models.NewCourseView(*course)
	return &view, nil
}

func (s *CourseService) find(ctx context.Context, id string) (*models.Course, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "course")
	}
	return course, nil
}

// Create registers a new course offering with an empty roster.
func (s *CourseService) Create(ctx context.Context, req dto.CourseRequest) (*models.CourseView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	course := courseFromRequest(req)
	if err := s.ensureCodeAvailable(ctx, course.Code, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, passThrough(err, "failed to create course")
	}

	s.cache.InvalidateReadModels(ctx)
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionCourseCreated,
		EntityType: models.EntityCourse,
		EntityID:   course.ID,
		Message:    fmt.Sprintf("New course %q (%s) created.", course.Title, course.Code),
	})
	view := models.NewCourseView(*course)
	return &view, nil
}

// Update replaces the editable fields of a course. The enrolled counter is preserved
// unless the semester or year changes, in which case it is recounted for the new offering.
func (s *CourseService) Update(ctx context.Context, id string, req dto.CourseRequest) (*models.CourseView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	course := courseFromRequest(req)
	course.ID = existing.ID
	if req.Capacity == nil {
		course.Capacity = existing.Capacity
	}
	if req.IsActive == nil {
		course.IsActive = existing.IsActive
	}
	sameOffering := course.Semester == existing.Semester && course.Year == existing.Year
	if sameOffering && course.Capacity < existing.Enrolled {
		return nil, capacityBelowEnrolled(existing.Enrolled, nil)
	}
	if err := s.ensureCodeAvailable(ctx, course.Code, existing.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, course); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityBelowEnrolled):
			current, findErr := s.repo.FindByID(ctx, existing.ID)
			enrolled := existing.Enrolled
			if findErr == nil {
				enrolled = current.Enrolled
			}
			return nil, capacityBelowEnrolled(enrolled, err)
		default:
			var appErr *appErrors.Error
			if errors.As(err, &appErr) {
				return nil, appErr
			}
			return nil, lookupError(err, "course")
		}
	}

	s.cache.InvalidateReadModels(ctx)
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionCourseUpdated,
		EntityType: models.EntityCourse,
		EntityID:   course.ID,
		Message:    fmt.Sprintf("Course %q (%s) updated.", course.Title, course.Code),
	})
	view := models.NewCourseView(*course)
	return &view, nil
}

// Delete soft deletes a course. Existing enrollments are left untouched.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	course, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, course.ID); err != nil {
		return lookupError(err, "course")
	}

	s.cache.InvalidateReadModels(ctx)
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionCourseDeleted,
		EntityType: models.EntityCourse,
		EntityID:   course.ID,
		Message:    fmt.Sprintf("Course %q (%s) deleted (soft delete).", course.Title, course.Code),
		Color:      models.ActivityColorRed,
	})
	return nil
}

// Stats aggregates active courses, served from cache when possible.
func (s *CourseService) Stats(ctx context.Context) (*models.CourseStats, bool, error) {
	var cached models.CourseStats
	if s.cache.Get(ctx, CacheKeyCourseStats, &cached) {
		return &cached, true, nil
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to load course statistics")
	}
	s.cache.Set(ctx, CacheKeyCourseStats, stats, 0)
	return stats, false, nil
}

// Reconcile recomputes enrolled counters from the enrollment table. An empty id
// targets every course.
func (s *CourseService) Reconcile(ctx context.Context, id string) (*dto.ReconcileResponse, error) {
	scope := "all"
	if id != "" {
		if !validID(id) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		scope = id
	}
	corrected, err := s.repo.Reconcile(ctx, id)
	if err != nil {
		return nil, lookupError(err, "course")
	}
	if corrected == nil {
		corrected = []models.CourseReconciliation{}
	}

	if len(corrected) > 0 {
		s.cache.InvalidateReadModels(ctx)
	}
	for _, c := range corrected {
		s.logger.Info("course counter reconciled",
			zap.String("course_id", c.CourseID),
			zap.Int("previous", c.Previous),
			zap.Int("enrolled", c.Enrolled),
		)
		s.activity.Record(ctx, models.Activity{
			Action:     models.ActionCourseReconciled,
			EntityType: models.EntityCourse,
			EntityID:   c.CourseID,
			Message:    fmt.Sprintf("Enrolled count for %s corrected from %d to %d.", c.Code, c.Previous, c.Enrolled),
		})
	}
	return &dto.ReconcileResponse{Scope: scope, Corrected: corrected}, nil
}

func (s *CourseService) ensureCodeAvailable(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return internalError(err, "failed to validate course code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateKey, "course code already exists")
	}
	return nil
}

func courseFromRequest(req dto.CourseRequest) *models.Course {
	capacity := models.DefaultCourseCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.Course{
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Credits:     req.Credits,
		Instructor:  strings.TrimSpace(req.Instructor),
		Capacity:    capacity,
		Semester:    req.Semester,
		Year:        req.Year,
		IsActive:    active,
	}
}

func capacityBelowEnrolled(enrolled int, cause error) error {
	return appErrors.Validation("validation failed", []appErrors.FieldError{{
		Field:   "capacity",
		Message: fmt.Sprintf("capacity cannot be lower than the %d students already enrolled", enrolled),
	}}, cause)
}
