package dto

import "github.com/noah-isme/course-management-api/internal/models"

// CourseRequest is the create and full-replace payload for a course. The enrolled
// counter is deliberately absent: it is owned by the enrollment lifecycle.
type CourseRequest struct {
	Code        string          `json:"code" validate:"required,min=2,max=10"`
	Title       string          `json:"title" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Credits     int             `json:"credits" validate:"required,min=1,max=6"`
	Instructor  string          `json:"instructor" validate:"required,min=2"`
	Capacity    *int            `json:"capacity" validate:"omitempty,min=1"`
	Semester    models.Semester `json:"semester" validate:"required,oneof=Fall Spring Summer"`
	Year        int             `json:"year" validate:"required,min=2020"`
	IsActive    *bool           `json:"isActive"`
}

// CourseListQuery captures list filters from the query string.
type CourseListQuery struct {
	Semester   models.Semester `form:"semester" json:"semester" validate:"omitempty,oneof=Fall Spring Summer"`
	Year       int             `form:"year" json:"year" validate:"omitempty,min=2020"`
	Instructor string          `form:"instructor" json:"instructor"`
	Search     string          `form:"search" json:"search"`
	Page       int             `form:"page" json:"page" validate:"omitempty,min=1"`
	Limit      int             `form:"limit" json:"limit" validate:"omitempty,min=1"`
}

// ReconcileResponse lists the counters that were corrected.
type ReconcileResponse struct {
	Scope     string                        `json:"scope"`
	Corrected []models.CourseReconciliation `json:"corrected"`
}
