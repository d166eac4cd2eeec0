package dto

import (
	"time"

	"github.com/noah-isme/course-management-api/internal/models"
)

// EnrollmentRequest is the create and full-replace payload for an enrollment.
// Student and Course reference the entities by id.
type EnrollmentRequest struct {
	Student        string                  `json:"student" validate:"required,uuid"`
	Course         string                  `json:"course" validate:"required,uuid"`
	Semester       models.Semester         `json:"semester" validate:"required,oneof=Fall Spring Summer"`
	Year           int                     `json:"year" validate:"required,min=2020"`
	Status         models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=Enrolled Dropped Completed Withdrawn"`
	Grade          *string                 `json:"grade" validate:"omitempty,oneof=A+ A A- B+ B B- C+ C C- D+ D D- F W I P NP"`
	GradePoints    *float64                `json:"gradePoints" validate:"omitempty,min=0,max=4"`
	Attendance     int                     `json:"attendance" validate:"min=0"`
	TotalClasses   int                     `json:"totalClasses" validate:"min=0"`
	Comments       string                  `json:"comments" validate:"max=500"`
	EnrollmentDate *time.Time              `json:"enrollmentDate"`
}

// GradeRequest sets the grade of an enrollment.
type GradeRequest struct {
	Grade    string  `json:"grade" validate:"required,oneof=A+ A A- B+ B B- C+ C C- D+ D D- F W I P NP"`
	Comments *string `json:"comments" validate:"omitempty,max=500"`
}

// EnrollmentListQuery captures list and export filters from the query string.
type EnrollmentListQuery struct {
	Status   models.EnrollmentStatus `form:"status" json:"status" validate:"omitempty,oneof=Enrolled Dropped Completed Withdrawn"`
	Semester models.Semester         `form:"semester" json:"semester" validate:"omitempty,oneof=Fall Spring Summer"`
	Year     int                     `form:"year" json:"year" validate:"omitempty,min=2020"`
	Search   string                  `form:"search" json:"search"`
	Page     int                     `form:"page" json:"page" validate:"omitempty,min=1"`
	Limit    int                     `form:"limit" json:"limit" validate:"omitempty,min=1"`
	Format   string                  `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
}
