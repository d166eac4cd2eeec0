package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
	"github.com/noah-isme/course-management-api/pkg/validation"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	SoftDelete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.StudentStats, error)
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validation.Validator
	cache     *CacheService
	activity  activityRecorder
	logger    *zap.Logger
}

// NewStudentService constructs the student service. cache and activity may be nil.
func NewStudentService(repo studentRepository, validate *validation.Validator, cache *CacheService, activity activityRecorder, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validation.Default()
	}
	if activity == nil {
		activity = noopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, cache: cache, activity: activity, logger: logger}
}

// List returns active students and pagination metadata.
func (s *StudentService) List(ctx context.Context, query dto.StudentListQuery) ([]models.Student, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, err
	}
	page, limit, _ := models.NormalizePage(query.Page, query.Limit)
	students, total, err := s.repo.List(ctx, models.StudentFilter{
		Search:    strings.TrimSpace(query.Search),
		Major:     strings.TrimSpace(query.Major),
		YearLevel: query.YearLevel,
		Page:      page,
		PageSize:  limit,
	})
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, models.NewPagination(page, limit, total), nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req dto.StudentRequest) (*models.Student, error) {
	student, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, student, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, passThrough(err, "failed to create student")
	}

	s.cache.InvalidateReadModels(ctx)
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionStudentCreated,
		EntityType: models.EntityStudent,
		EntityID:   student.ID,
		Message:    fmt.Sprintf("New student %q (%s) created.", student.FullName(), student.StudentID),
	})
	return student, nil
}

// Update replaces every editable field of a student.
func (s *StudentService) Update(ctx context.Context, id string, req dto.StudentRequest) (*models.Student, error) {
	student, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student.ID = existing.ID
	student.CreatedAt = existing.CreatedAt
	if req.IsActive == nil {
		student.IsActive = existing.IsActive
	}
	if err := s.ensureUnique(ctx, student, existing.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, student); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, lookupError(err, "student")
	}

	s.cache.InvalidateReadModels(ctx)
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionStudentUpdated,
		EntityType: models.EntityStudent,
		EntityID:   student.ID,
		Message:    fmt.Sprintf("Student %q (%s) updated.", student.FullName(), student.StudentID),
	})
	return student, nil
}

// Delete soft deletes a student. Their enrollments keep referencing the row.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	student, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, student.ID); err != nil {
		return lookupError(err, "student")
	}

	s.cache.InvalidateReadModels(ctx)
	s.activity.Record(ctx, models.Activity{
		Action:     models.ActionStudentDeleted,
		EntityType: models.EntityStudent,
		EntityID:   student.ID,
		Message:    fmt.Sprintf("Student %q (%s) deleted (soft delete).", student.FullName(), student.StudentID),
		Color:      models.ActivityColorRed,
	})
	return nil
}

// Stats aggregates active students, served from cache when possible.
func (s *StudentService) Stats(ctx context.Context) (*models.StudentStats, bool, error) {
	var cached models.StudentStats
	if s.cache.Get(ctx, CacheKeyStudentStats, &cached) {
		return &cached, true, nil
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to load student statistics")
	}
	s.cache.Set(ctx, CacheKeyStudentStats, stats, 0)
	return stats, false, nil
}

func (s *StudentService) fromRequest(req dto.StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if req.DateOfBirth == nil || req.DateOfBirth.IsZero() {
		return nil, appErrors.Validation("validation failed", []appErrors.FieldError{{
			Field:   "dateOfBirth",
			Message: "dateOfBirth is a required field",
		}}, nil)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	student := &models.Student{
		StudentID:    strings.ToUpper(strings.TrimSpace(req.StudentID)),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		DateOfBirth:  req.DateOfBirth.Time,
		Major:        strings.TrimSpace(req.Major),
		YearLevel:    req.YearLevel,
		GPA:          req.GPA,
		TotalCredits: req.TotalCredits,
		IsActive:     active,
	}
	if req.Address != nil {
		student.Address = &models.Address{
			Street:  strings.TrimSpace(req.Address.Street),
			City:    strings.TrimSpace(req.Address.City),
			State:   strings.TrimSpace(req.Address.State),
			ZipCode: strings.TrimSpace(req.Address.ZipCode),
			Country: strings.TrimSpace(req.Address.Country),
		}
	}
	return student, nil
}

func (s *StudentService) ensureUnique(ctx context.Context, student *models.Student, excludeID string) error {
	exists, err := s.repo.ExistsByStudentID(ctx, student.StudentID, excludeID)
	if err != nil {
		return internalError(err, "failed to validate student ID")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateKey, "student ID already exists")
	}
	exists, err = s.repo.ExistsByEmail(ctx, student.Email, excludeID)
	if err != nil {
		return internalError(err, "failed to validate email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateKey, "email already exists")
	}
	return nil
}
