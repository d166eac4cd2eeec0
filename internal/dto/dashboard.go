package dto

import (
	"time"

	"github.com/noah-isme/course-management-api/internal/models"
)

// DashboardResponse combines every statistics block with the recent activity feed.
type DashboardResponse struct {
	Courses        models.CourseStats     `json:"courses"`
	Students       models.StudentStats    `json:"students"`
	Enrollments    models.EnrollmentStats `json:"enrollments"`
	RecentActivity []models.Activity      `json:"recentActivity"`
	GeneratedAt    time.Time              `json:"generatedAt"`
}
