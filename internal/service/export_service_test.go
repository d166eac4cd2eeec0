package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

func newExportServiceForTest(t *testing.T) (*ExportService, *enrollmentFixture) {
	t.Helper()
	f := newEnrollmentFixture(t, 30)
	req := f.request(f.alice)
	req.Attendance = 9
	req.TotalClasses = 10
	_, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	svc := NewExportService(fakeEnrollmentRepo{f.store}, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 9, 1, 8, 30, 0, 0, time.UTC) }
	return svc, f
}

func TestExportServiceRosterCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	result, err := svc.Roster(context.Background(), dto.EnrollmentListQuery{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "enrollments_20240901_083000.csv", result.Filename)
	assert.Equal(t, 1, result.Rows)

	records, err := csv.NewReader(bytes.NewReader(result.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Student ID", records[0][0])
	assert.Equal(t, []string{"STU001", "Alice Smith", "CS101", "Intro to Computing", "Fall", "2024", "Enrolled", "", "90"}, records[1][:9])
}

func TestExportServiceRosterPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	result, err := svc.Roster(context.Background(), dto.EnrollmentListQuery{Format: "pdf", Status: models.EnrollmentStatusEnrolled})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Body, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.Roster(context.Background(), dto.EnrollmentListQuery{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
