package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	"github.com/noah-isme/course-management-api/internal/service"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

type fakeEnrollmentSrv struct {
	createErr error
	grade     dto.GradeRequest
	exported  dto.EnrollmentListQuery
}

func (f *fakeEnrollmentSrv) List(context.Context, dto.EnrollmentListQuery) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return []models.EnrollmentDetail{}, models.NewPagination(1, 10, 0), nil
}

func (f *fakeEnrollmentSrv) Get(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id}}, nil
}

func (f *fakeEnrollmentSrv) Create(_ context.Context, req dto.EnrollmentRequest) (*models.EnrollmentDetail, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e-1", Status: models.EnrollmentStatusEnrolled, IsActive: true}}, nil
}

func (f *fakeEnrollmentSrv) Update(_ context.Context, id string, req dto.EnrollmentRequest) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id, Status: req.Status}}, nil
}

func (f *fakeEnrollmentSrv) UpdateGrade(_ context.Context, id string, req dto.GradeRequest) (*models.EnrollmentDetail, error) {
	f.grade = req
	grade := req.Grade
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id, Grade: &grade}}, nil
}

func (f *fakeEnrollmentSrv) Delete(context.Context, string) error { return nil }

func (f *fakeEnrollmentSrv) Stats(context.Context) (*models.EnrollmentStats, bool, error) {
	return &models.EnrollmentStats{}, false, nil
}

func (f *fakeEnrollmentSrv) Roster(_ context.Context, query dto.EnrollmentListQuery) (*service.ExportResult, error) {
	f.exported = query
	if query.Format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.ExportResult{Filename: "enrollments_20240101_120000.csv", ContentType: "text/csv", Body: []byte("Student ID\nSTU001\n"), Rows: 1}, nil
}

const enrollmentPayload = `{"student":"5f1d7c2e-7c33-4c1f-9c55-0b8e7f6f1a01","course":"5f1d7c2e-7c33-4c1f-9c55-0b8e7f6f1a02","semester":"Fall","year":2024}`

func TestEnrollmentHandlerCreate(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	handler := NewEnrollmentHandler(srv, srv)
	c, rec := newTestContext(http.MethodPost, "/api/enrollments", enrollmentPayload)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Enrolled", decode(t, rec).Data["status"])
}

func TestEnrollmentHandlerCreateConflictsAreBadRequests(t *testing.T) {
	cases := map[string]error{
		"DUPLICATE_ENROLLMENT": appErrors.ErrDuplicateEnrollment,
		"CAPACITY_EXCEEDED":    appErrors.ErrCapacityExceeded,
	}
	for code, err := range cases {
		t.Run(code, func(t *testing.T) {
			srv := &fakeEnrollmentSrv{createErr: err}
			handler := NewEnrollmentHandler(srv, srv)
			c, rec := newTestContext(http.MethodPost, "/api/enrollments", enrollmentPayload)

			handler.Create(c)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, code, decode(t, rec).Error["code"])
		})
	}
}

func TestEnrollmentHandlerCreateMissingStudent(t *testing.T) {
	srv := &fakeEnrollmentSrv{createErr: appErrors.Clone(appErrors.ErrNotFound, "student not found")}
	handler := NewEnrollmentHandler(srv, srv)
	c, rec := newTestContext(http.MethodPost, "/api/enrollments", enrollmentPayload)

	handler.Create(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollmentHandlerUpdateGrade(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	handler := NewEnrollmentHandler(srv, srv)
	c, rec := newTestContext(http.MethodPut, "/api/enrollments/e-1/grade", `{"grade":"B+","comments":"solid"}`)
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}

	handler.UpdateGrade(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "B+", srv.grade.Grade)
	require.NotNil(t, srv.grade.Comments)
	assert.Equal(t, "solid", *srv.grade.Comments)
	assert.Equal(t, "B+", decode(t, rec).Data["grade"])
}

func TestEnrollmentHandlerDelete(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	handler := NewEnrollmentHandler(srv, srv)
	c, rec := newTestContext(http.MethodDelete, "/api/enrollments/e-1", "")
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}

	handler.Delete(c)

	assert.Equal(t, "Enrollment deleted successfully", decode(t, rec).Data["message"])
}

func TestEnrollmentHandlerExport(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	handler := NewEnrollmentHandler(srv, srv)
	c, rec := newTestContext(http.MethodGet, "/api/enrollments/export?format=csv&status=Enrolled", "")

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.exported.Format)
	assert.Equal(t, models.EnrollmentStatusEnrolled, srv.exported.Status)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="enrollments_20240101_120000.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Student ID\nSTU001\n", rec.Body.String())
}

func TestEnrollmentHandlerExportRejectsFormat(t *testing.T) {
	srv := &fakeEnrollmentSrv{}
	handler := NewEnrollmentHandler(srv, srv)
	c, rec := newTestContext(http.MethodGet, "/api/enrollments/export?format=xlsx", "")

	handler.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
