package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
	"github.com/noah-isme/course-management-api/pkg/validation"
)

// Enrollment operations reported to metrics.
const (
	EnrollmentOpCreate = "create"
	EnrollmentOpUpdate = "update"
	EnrollmentOpGrade  = "grade"
	EnrollmentOpDelete = "delete"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	UpdateGrade(ctx context.Context, id, grade string, comments *string) (*models.Enrollment, error)
	SoftDelete(ctx context.Context, id string) (*models.Enrollment, error)
	Stats(ctx context.Context) (*models.EnrollmentStats, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EnrollmentService manages enrollments and the seat accounting of their courses.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentLookup
	courses   courseLookup
	validator *validation.Validator
	cache     *CacheService
	activity  activityRecorder
	metrics   *MetricsService
	logger    *zap.Logger
}

// EnrollmentServiceParams groups the collaborators of EnrollmentService.
type EnrollmentServiceParams struct {
	Repo      enrollmentRepository
	Students  studentLookup
	Courses   courseLookup
	Validator *validation.Validator
	Cache     *CacheService
	Activity  activityRecorder
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(p EnrollmentServiceParams) *EnrollmentService {
	if p.Validator == nil {
		p.Validator = validation.Default()
	}
	if p.Activity == nil {
		p.Activity = noopRecorder{}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      p.Repo,
		students:  p.Students,
		courses:   p.Courses,
		validator: p.Validator,
		cache:     p.Cache,
		activity:  p.Activity,
		metrics:   p.Metrics,
		logger:    p.Logger,
	}
}

// List returns active enrollments with student and course summaries.
func (s *EnrollmentService) List(ctx context.Context, query dto.EnrollmentListQuery) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, err
	}
	page, limit, _ := models.NormalizePage(query.Page, query.Limit)
	filter := filterFromQuery(query)
	filter.Page, filter.PageSize = page, limit

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, models.NewPagination(page, limit, total), nil
}

// Get returns one enrollment with its summaries.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	return detail, nil
}

// Create enrolls a student into a course offering. The duplicate and capacity checks
// and the counter increment happen in one transaction in the repository.
func (s *EnrollmentService) Create(ctx context.Context, req dto.EnrollmentRequest) (detail *models.EnrollmentDetail, err error) {
	defer func() { s.metrics.RecordEnrollmentOperation(EnrollmentOpCreate, err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	student, course, err := s.resolveRefs(ctx, req.Student, req.Course)
	if err != nil {
		return nil, err
	}

	enrollment := enrollmentFromRequest(req)
	if err := s.repo.CreateWithinCapacity(ctx, enrollment); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateEnrollment) || errors.Is(err, appErrors.ErrCapacityExceeded) {
			s.logger.Info("enrollment rejected",
				zap.String("student_id", student.ID),
				zap.String("course_id", course.ID),
				zap.Error(err),
			)
		}
		return nil, passThrough(err, "failed to create enrollment")
	}

	s.cache.InvalidateReadModels(ctx)
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionEnrollmentCreated,
		EntityType: models.EntityEnrollment,
		EntityID:   enrollment.ID,
		Message:    fmt.Sprintf("New enrollment for %q in %q created.", student.FullName(), course.Title),
	})
	return composeDetail(*enrollment, student, course), nil
}

// Update replaces the editable fields of an enrollment and moves its seat when the
// status or the course changes.
func (s *EnrollmentService) Update(ctx context.Context, id string, req dto.EnrollmentRequest) (detail *models.EnrollmentDetail, err error) {
	defer func() { s.metrics.RecordEnrollmentOperation(EnrollmentOpUpdate, err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	student, course, err := s.resolveRefs(ctx, req.Student, req.Course)
	if err != nil {
		return nil, err
	}

	enrollment := enrollmentFromRequest(req)
	enrollment.ID = existing.ID
	if req.EnrollmentDate == nil {
		enrollment.EnrollmentDate = existing.EnrollmentDate
	}
	if err := s.repo.Update(ctx, enrollment); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, lookupError(err, "enrollment")
	}

	s.cache.InvalidateReadModels(ctx)
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionEnrollmentUpdated,
		EntityType: models.EntityEnrollment,
		EntityID:   enrollment.ID,
		Message:    fmt.Sprintf("Enrollment for %q in %q updated.", student.FullName(), course.Title),
	})
	return composeDetail(*enrollment, student, course), nil
}

// UpdateGrade sets the grade and optional comments. The status is not touched.
func (s *EnrollmentService) UpdateGrade(ctx context.Context, id string, req dto.GradeRequest) (detail *models.EnrollmentDetail, err error) {
	defer func() { s.metrics.RecordEnrollmentOperation(EnrollmentOpGrade, err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if req.Comments != nil {
		trimmed := strings.TrimSpace(*req.Comments)
		req.Comments = &trimmed
	}
	enrollment, err := s.repo.UpdateGrade(ctx, id, req.Grade, req.Comments)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}

	s.cache.InvalidateReadModels(ctx)
	detail, err = s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionEnrollmentGradeUpdated,
		EntityType: models.EntityEnrollment,
		EntityID:   enrollment.ID,
		Message:    fmt.Sprintf("Grade for enrollment in %q updated to %s.", detail.Course.Title, req.Grade),
	})
	return detail, nil
}

// Delete soft deletes an enrollment, releasing its seat when it held one.
func (s *EnrollmentService) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.RecordEnrollmentOperation(EnrollmentOpDelete, err) }()

	if !validID(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	enrollment, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return lookupError(err, "enrollment")
	}
	s.cache.InvalidateReadModels(ctx)

	studentName, courseTitle := enrollment.StudentID, enrollment.CourseID
	if student, findErr := s.students.FindByID(ctx, enrollment.StudentID); findErr == nil {
		studentName = student.FullName()
	}
	if course, findErr := s.courses.FindByID(ctx, enrollment.CourseID); findErr == nil {
		courseTitle = course.Title
	}
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionEnrollmentDeleted,
		EntityType: models.EntityEnrollment,
		EntityID:   enrollment.ID,
		Message:    fmt.Sprintf("Enrollment for %q in %q deleted (soft delete).", studentName, courseTitle),
		Color:      models.ActivityColorRed,
	})
	return nil
}

// Stats aggregates active enrollments, served from cache when possible.
func (s *EnrollmentService) Stats(ctx context.Context) (*models.EnrollmentStats, bool, error) {
	var cached models.EnrollmentStats
	if s.cache.Get(ctx, CacheKeyEnrollmentStats, &cached) {
		return &cached, true, nil
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to load enrollment statistics")
	}
	s.cache.Set(ctx, CacheKeyEnrollmentStats, stats, 0)
	return stats, false, nil
}

func (s *EnrollmentService) find(ctx context.Context, id string) (*models.Enrollment, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) resolveRefs(ctx context.Context, studentID, courseID string) (*models.Student, *models.Course, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, nil, lookupError(err, "student")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, nil, lookupError(err, "course")
	}
	return student, course, nil
}

func enrollmentFromRequest(req dto.EnrollmentRequest) *models.Enrollment {
	status := req.Status
	if status == "" {
		status = models.EnrollmentStatusEnrolled
	}
	e := &models.Enrollment{
		StudentID:    req.Student,
		CourseID:     req.Course,
		Semester:     req.Semester,
		Year:         req.Year,
		Status:       status,
		Grade:        req.Grade,
		GradePoints:  req.GradePoints,
		Attendance:   req.Attendance,
		TotalClasses: req.TotalClasses,
		Comments:     strings.TrimSpace(req.Comments),
	}
	if req.EnrollmentDate != nil {
		e.EnrollmentDate = req.EnrollmentDate.UTC()
	}
	return e
}

func filterFromQuery(query dto.EnrollmentListQuery) models.EnrollmentFilter {
	return models.EnrollmentFilter{
		Status:   query.Status,
		Semester: query.Semester,
		Year:     query.Year,
		Search:   strings.TrimSpace(query.Search),
	}
}

func composeDetail(e models.Enrollment, student *models.Student, course *models.Course) *models.EnrollmentDetail {
	return &models.EnrollmentDetail{
		Enrollment: e,
		Student: models.StudentSummary{
			ID:        student.ID,
			StudentID: student.StudentID,
			FirstName: student.FirstName,
			LastName:  student.LastName,
			Email:     student.Email,
		},
		Course: models.CourseSummary{
			ID:         course.ID,
			Code:       course.Code,
			Title:      course.Title,
			Credits:    course.Credits,
			Instructor: course.Instructor,
		},
		AttendancePercentage: e.AttendancePercentage(),
	}
}

// rosterTime formats timestamps in exports.
func rosterTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
