package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

type enrollmentFixture struct {
	svc      *EnrollmentService
	store    *memoryStore
	activity *recordingActivity
	metrics  *MetricsService
	course   models.Course
	alice    models.Student
	bob      models.Student
}

func newEnrollmentFixture(t *testing.T, capacity int) *enrollmentFixture {
	t.Helper()
	store := newMemoryStore()
	activity := &recordingActivity{}
	metrics := NewMetricsService()
	svc := NewEnrollmentService(EnrollmentServiceParams{
		Repo:     fakeEnrollmentRepo{store},
		Students: fakeStudentRepo{store},
		Courses:  fakeCourseRepo{store},
		Activity: activity,
		Metrics:  metrics,
		Logger:   zap.NewNop(),
	})
	return &enrollmentFixture{
		svc:      svc,
		store:    store,
		activity: activity,
		metrics:  metrics,
		course: store.addCourse(models.Course{
			Code: "CS101", Title: "Intro to Computing", Capacity: capacity, IsActive: true,
			Semester: models.SemesterFall, Year: 2024, Credits: 3, Instructor: "Dr. Smith",
		}),
		alice: store.addStudent(models.Student{StudentID: "STU001", FirstName: "Alice", LastName: "Smith", IsActive: true}),
		bob:   store.addStudent(models.Student{StudentID: "STU002", FirstName: "Bob", LastName: "Jones", IsActive: true}),
	}
}

func (f *enrollmentFixture) request(student models.Student) dto.EnrollmentRequest {
	return dto.EnrollmentRequest{
		Student:  student.ID,
		Course:   f.course.ID,
		Semester: models.SemesterFall,
		Year:     2024,
	}
}

func TestEnrollmentServiceCreate(t *testing.T) {
	f := newEnrollmentFixture(t, 30)
	req := f.request(f.alice)
	req.Attendance = 17
	req.TotalClasses = 20

	detail, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, detail.Status)
	assert.True(t, detail.IsActive)
	assert.Equal(t, "STU001", detail.Student.StudentID)
	assert.Equal(t, "CS101", detail.Course.Code)
	assert.Equal(t, 85, detail.AttendancePercentage)
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)

	last := f.activity.last()
	assert.Equal(t, models.ActionEnrollmentCreated, last.Action)
	assert.Equal(t, `New enrollment for "Alice Smith" in "Intro to Computing" created.`, last.Message)
	assert.Contains(t, scrapeMetrics(t, f.metrics), `enrollment_operations_total{operation="create",result="success"} 1`)
}

func TestEnrollmentServiceCapacityOneScenario(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.request(f.bob))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)

	_, err = f.svc.Create(ctx, f.request(f.alice))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)

	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)
	assert.Equal(t, []string{models.ActionEnrollmentCreated}, f.activity.actions())
}

func TestEnrollmentServiceCapacityBoundary(t *testing.T) {
	f := newEnrollmentFixture(t, 2)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err, "count == capacity-1 must succeed")
	_, err = f.svc.Create(ctx, f.request(f.bob))
	require.NoError(t, err)

	carol := f.store.addStudent(models.Student{StudentID: "STU003", FirstName: "Carol", LastName: "Diaz", IsActive: true})
	_, err = f.svc.Create(ctx, f.request(carol))
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	assert.Equal(t, 2, f.store.course(f.course.ID).Enrolled)
}

func TestEnrollmentServiceConcurrentIdenticalCreates(t *testing.T) {
	f := newEnrollmentFixture(t, 30)
	const attempts = 10

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.request(f.alice))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)
}

func TestEnrollmentServiceCreateMissingRefs(t *testing.T) {
	f := newEnrollmentFixture(t, 30)

	req := f.request(f.alice)
	req.Student = uuid.NewString()
	_, err := f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "student not found", appErrors.FromError(err).Message)

	req = f.request(f.alice)
	req.Course = uuid.NewString()
	_, err = f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "course not found", appErrors.FromError(err).Message)

	req.Course = "CS101"
	_, err = f.svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdateReleasesSeat(t *testing.T) {
	f := newEnrollmentFixture(t, 30)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err)

	req := f.request(f.alice)
	req.Status = models.EnrollmentStatusDropped
	updated, err := f.svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, updated.Status)
	assert.Equal(t, created.EnrollmentDate, updated.EnrollmentDate)
	assert.Equal(t, 0, f.store.course(f.course.ID).Enrolled)
	assert.Equal(t, `Enrollment for "Alice Smith" in "Intro to Computing" updated.`, f.activity.last().Message)
}

func TestEnrollmentServiceUpdateReenrollRespectsCapacity(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	ctx := context.Background()
	alice, err := f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err)

	drop := f.request(f.alice)
	drop.Status = models.EnrollmentStatusDropped
	_, err = f.svc.Update(ctx, alice.ID, drop)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.request(f.bob))
	require.NoError(t, err, "the released seat is available again")

	_, err = f.svc.Update(ctx, alice.ID, f.request(f.alice))
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)
}

func TestEnrollmentServiceUpdateGradeKeepsStatus(t *testing.T) {
	f := newEnrollmentFixture(t, 30)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err)

	detail, err := f.svc.UpdateGrade(ctx, created.ID, dto.GradeRequest{Grade: "A", Comments: strPtr(" great work ")})
	require.NoError(t, err)
	require.NotNil(t, detail.Grade)
	assert.Equal(t, "A", *detail.Grade)
	assert.Equal(t, "great work", detail.Comments)
	assert.Equal(t, models.EnrollmentStatusEnrolled, detail.Status)

	last := f.activity.last()
	assert.Equal(t, models.ActionEnrollmentGradeUpdated, last.Action)
	assert.Equal(t, created.ID, last.EntityID)
	assert.Equal(t, `Grade for enrollment in "Intro to Computing" updated to A.`, last.Message)

	_, err = f.svc.UpdateGrade(ctx, created.ID, dto.GradeRequest{Grade: "Z"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDeleteExcludesFromListing(t *testing.T) {
	f := newEnrollmentFixture(t, 30)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.request(f.bob))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)

	items, pagination, err := f.svc.List(ctx, dto.EnrollmentListQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "STU002", items[0].Student.StudentID)
	assert.Equal(t, 1, pagination.Total)

	row, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err, "soft deleted row must remain")
	assert.False(t, row.IsActive)

	last := f.activity.last()
	assert.Equal(t, models.ActivityColorRed, last.Color)
	assert.Equal(t, `Enrollment for "Alice Smith" in "Intro to Computing" deleted (soft delete).`, last.Message)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled, "second delete must not release again")

	assert.ErrorIs(t, f.svc.Delete(ctx, uuid.NewString()), appErrors.ErrNotFound)
}

func TestEnrollmentServiceStatsCached(t *testing.T) {
	f := newEnrollmentFixture(t, 30)
	backend := newMemoryCache()
	f.svc.cache = NewCacheService(backend, nil, 0, zap.NewNop(), true)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err)

	stats, hit, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, stats.Overview.EnrolledCount)

	_, hit, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = f.svc.Create(ctx, f.request(f.bob))
	require.NoError(t, err)
	stats, hit, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, stats.Overview.TotalEnrollments)
}

func TestEnrollmentServiceCreateNonEnrolledStatusLeavesCounter(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	ctx := context.Background()

	req := f.request(f.alice)
	req.Status = models.EnrollmentStatusCompleted
	completed, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, completed.Status)
	assert.Equal(t, 0, f.store.course(f.course.ID).Enrolled)

	_, err = f.svc.Create(ctx, f.request(f.bob))
	require.NoError(t, err, "a completed enrollment does not take the only seat")
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)

	require.NoError(t, f.svc.Delete(ctx, completed.ID))
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)
}

func TestEnrollmentServiceOtherOfferingDoesNotTakeCourseSeat(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	ctx := context.Background()

	spring := f.request(f.bob)
	spring.Semester = models.SemesterSpring
	spring.Year = 2025
	springDetail, err := f.svc.Create(ctx, spring)
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.course(f.course.ID).Enrolled)

	_, err = f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err, "the Fall 2024 offering still has its seat")
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)

	carol := f.store.addStudent(models.Student{StudentID: "STU003", FirstName: "Carol", LastName: "Diaz", IsActive: true})
	again := f.request(carol)
	again.Semester = models.SemesterSpring
	again.Year = 2025
	_, err = f.svc.Create(ctx, again)
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded, "capacity applies per offering")

	require.NoError(t, f.svc.Delete(ctx, springDetail.ID))
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)
}

func TestEnrollmentServiceUpdateIntoOtherOfferingReleasesSeat(t *testing.T) {
	f := newEnrollmentFixture(t, 1)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.request(f.alice))
	require.NoError(t, err)

	req := f.request(f.alice)
	req.Year = 2025
	_, err = f.svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.course(f.course.ID).Enrolled)

	_, err = f.svc.Update(ctx, created.ID, f.request(f.alice))
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.course(f.course.ID).Enrolled)
}
