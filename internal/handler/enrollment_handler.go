package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	"github.com/noah-isme/course-management-api/internal/service"
	"github.com/noah-isme/course-management-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, query dto.EnrollmentListQuery) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, req dto.EnrollmentRequest) (*models.EnrollmentDetail, error)
	Update(ctx context.Context, id string, req dto.EnrollmentRequest) (*models.EnrollmentDetail, error)
	UpdateGrade(ctx context.Context, id string, req dto.GradeRequest) (*models.EnrollmentDetail, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.EnrollmentStats, bool, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, query dto.EnrollmentListQuery) (*service.ExportResult, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
	exports     rosterExporter
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService, exports rosterExporter) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, exports: exports}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param status query string false "Enrollment status"
// @Param semester query string false "Semester"
// @Param year query int false "Year"
// @Param search query string false "Matches student or course"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var query dto.EnrollmentListQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := h.enrollments.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get enrollment detail
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Create godoc
// @Summary Enroll a student in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.EnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentRequest true "Enrollment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	var req dto.EnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.enrollments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// UpdateGrade godoc
// @Summary Set the grade of an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.GradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/grade [put]
func (h *EnrollmentHandler) UpdateGrade(c *gin.Context) {
	var req dto.GradeRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.enrollments.UpdateGrade(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Delete godoc
// @Summary Soft delete enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Enrollment deleted successfully")
}

// Stats godoc
// @Summary Enrollment statistics
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/stats/overview [get]
func (h *EnrollmentHandler) Stats(c *gin.Context) {
	stats, hit, err := h.enrollments.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	cached(c, stats, hit)
}

// Export godoc
// @Summary Export the enrollment roster
// @Tags Enrollments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "Enrollment status"
// @Param semester query string false "Semester"
// @Param year query int false "Year"
// @Param search query string false "Matches student or course"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /enrollments/export [get]
func (h *EnrollmentHandler) Export(c *gin.Context) {
	var query dto.EnrollmentListQuery
	if !bindQuery(c, &query) {
		return
	}
	result, err := h.exports.Roster(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
