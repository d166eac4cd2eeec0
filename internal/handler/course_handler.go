package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	"github.com/noah-isme/course-management-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, query dto.CourseListQuery) ([]models.CourseView, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.CourseView, error)
	Create(ctx context.Context, req dto.CourseRequest) (*models.CourseView, error)
	Update(ctx context.Context, id string, req dto.CourseRequest) (*models.CourseView, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.CourseStats, bool, error)
	Reconcile(ctx context.Context, id string) (*dto.ReconcileResponse, error)
}

// CourseHandler exposes course endpoints.
type CourseHandler struct {
	courses courseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param semester query string false "Fall, Spring or Summer"
// @Param year query int false "Academic year"
// @Param instructor query string false "Instructor substring"
// @Param search query string false "Matches code or title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var query dto.CourseListQuery
	if !bindQuery(c, &query) {
		return
	}
	courses, pagination, err := h.courses.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req dto.CourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req dto.CourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Delete godoc
// @Summary Soft delete course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Course deleted successfully")
}

// Stats godoc
// @Summary Course statistics
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses/stats/overview [get]
func (h *CourseHandler) Stats(c *gin.Context) {
	stats, hit, err := h.courses.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	cached(c, stats, hit)
}

// ReconcileAll godoc
// @Summary Recompute every enrolled counter
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses/reconcile [post]
func (h *CourseHandler) ReconcileAll(c *gin.Context) {
	h.reconcile(c, "")
}

// Reconcile godoc
// @Summary Recompute the enrolled counter of one course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/reconcile [post]
func (h *CourseHandler) Reconcile(c *gin.Context) {
	h.reconcile(c, c.Param("id"))
}

func (h *CourseHandler) reconcile(c *gin.Context, id string) {
	result, err := h.courses.Reconcile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
