package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

func newStudentServiceForTest(t *testing.T) (*StudentService, *memoryStore, *recordingActivity) {
	t.Helper()
	store := newMemoryStore()
	activity := &recordingActivity{}
	svc := NewStudentService(fakeStudentRepo{store}, nil, nil, activity, zap.NewNop())
	return svc, store, activity
}

func validStudentRequest() dto.StudentRequest {
	return dto.StudentRequest{
		StudentID:   "stu001",
		FirstName:   "John",
		LastName:    "Doe",
		Email:       "John.Doe@Example.com",
		DateOfBirth: &dto.Date{Time: time.Date(2002, 5, 17, 0, 0, 0, 0, time.UTC)},
		Major:       "Computer Science",
		YearLevel:   models.YearLevelJunior,
		GPA:         3.4,
	}
}

func TestStudentServiceCreateNormalises(t *testing.T) {
	svc, store, activity := newStudentServiceForTest(t)

	student, err := svc.Create(context.Background(), validStudentRequest())
	require.NoError(t, err)
	assert.Equal(t, "STU001", student.StudentID)
	assert.Equal(t, "john.doe@example.com", student.Email)
	assert.True(t, student.IsActive)
	assert.Len(t, store.students, 1)

	last := activity.last()
	assert.Equal(t, models.ActionStudentCreated, last.Action)
	assert.Equal(t, `New student "John Doe" (STU001) created.`, last.Message)
}

func TestStudentServiceCreateDuplicates(t *testing.T) {
	svc, store, _ := newStudentServiceForTest(t)
	store.addStudent(models.Student{StudentID: "STU001", Email: "other@example.com", IsActive: true})

	_, err := svc.Create(context.Background(), validStudentRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateKey)
	assert.Equal(t, "student ID already exists", appErrors.FromError(err).Message)

	req := validStudentRequest()
	req.StudentID = "STU002"
	req.Email = "OTHER@example.com"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "email already exists", appErrors.FromError(err).Message)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc, _, _ := newStudentServiceForTest(t)
	req := validStudentRequest()
	req.Email = "not-an-email"
	req.Phone = "abc"
	req.GPA = 4.5

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	fields := map[string]string{}
	for _, d := range appErr.Details {
		fields[d.Field] = d.Message
	}
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "gpa")
	assert.Equal(t, "phone must be a valid phone number", fields["phone"])
}

func TestStudentServiceCreateRequiresDateOfBirth(t *testing.T) {
	svc, _, _ := newStudentServiceForTest(t)
	var req dto.StudentRequest
	payload := `{"studentId":"STU9","firstName":"Ann","lastName":"Lee","email":"ann@example.com","dateOfBirth":"","major":"Math","yearLevel":"Senior"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "dateOfBirth", appErr.Details[0].Field)
}

func TestStudentServiceUpdateKeepsActiveFlag(t *testing.T) {
	svc, store, activity := newStudentServiceForTest(t)
	existing := store.addStudent(models.Student{StudentID: "STU001", Email: "john.doe@example.com", IsActive: true})

	req := validStudentRequest()
	req.Major = "Mathematics"
	req.Address = &dto.AddressRequest{City: " Springfield "}
	updated, err := svc.Update(context.Background(), existing.ID, req)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.Equal(t, "Mathematics", updated.Major)
	require.NotNil(t, updated.Address)
	assert.Equal(t, "Springfield", updated.Address.City)
	assert.Equal(t, models.ActionStudentUpdated, activity.last().Action)
}

func TestStudentServiceDelete(t *testing.T) {
	svc, store, activity := newStudentServiceForTest(t)
	existing := store.addStudent(models.Student{StudentID: "STU001", FirstName: "John", LastName: "Doe", IsActive: true})

	require.NoError(t, svc.Delete(context.Background(), existing.ID))
	assert.False(t, store.students[existing.ID].IsActive)
	assert.Equal(t, `Student "John Doe" (STU001) deleted (soft delete).`, activity.last().Message)

	list, pagination, err := svc.List(context.Background(), dto.StudentListQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, pagination.Total)
}

func TestStudentServiceListMajorCaseInsensitive(t *testing.T) {
	svc, store, _ := newStudentServiceForTest(t)
	store.addStudent(models.Student{StudentID: "S1", Major: "Computer Science", IsActive: true})
	store.addStudent(models.Student{StudentID: "S2", Major: "Physics", IsActive: true})

	list, pagination, err := svc.List(context.Background(), dto.StudentListQuery{Major: "computer science"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "S1", list[0].StudentID)
	assert.Equal(t, 1, pagination.Pages)
}
