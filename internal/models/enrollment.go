package models

import (
	"math"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "Enrolled"
	EnrollmentStatusDropped   EnrollmentStatus = "Dropped"
	EnrollmentStatusCompleted EnrollmentStatus = "Completed"
	EnrollmentStatusWithdrawn EnrollmentStatus = "Withdrawn"
)

// Enrollment captures a student's registration to a course offering.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"studentId"`
	CourseID       string           `db:"course_id" json:"courseId"`
	Semester       Semester         `db:"semester" json:"semester"`
	Year           int              `db:"year" json:"year"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollmentDate"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Grade          *string          `db:"grade" json:"grade"`
	GradePoints    *float64         `db:"grade_points" json:"gradePoints"`
	Attendance     int              `db:"attendance" json:"attendance"`
	TotalClasses   int              `db:"total_classes" json:"totalClasses"`
	Comments       string           `db:"comments" json:"comments"`
	IsActive       bool             `db:"is_active" json:"isActive"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updatedAt"`
}

// Occupies reports whether the enrollment consumes a seat of its course offering.
func (e Enrollment) Occupies() bool {
	return e.IsActive && e.Status == EnrollmentStatusEnrolled
}

// HoldsSeatIn reports whether the enrollment is counted by the enrolled counter of a
// course offered in the given semester and year.
func (e Enrollment) HoldsSeatIn(semester Semester, year int) bool {
	return e.Occupies() && e.Semester == semester && e.Year == year
}

// AttendancePercentage returns the rounded share of attended classes.
func (e Enrollment) AttendancePercentage() int {
	return AttendancePercentage(e.Attendance, e.TotalClasses)
}

// AttendancePercentage is round(attendance/totalClasses*100), 0 without classes.
func AttendancePercentage(attendance, totalClasses int) int {
	if totalClasses <= 0 {
		return 0
	}
	return int(math.Round(float64(attendance) / float64(totalClasses) * 100))
}

// StudentSummary is the student projection embedded in enrollment responses.
type StudentSummary struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"studentId"`
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
	Email     string `db:"email" json:"email"`
}

// CourseSummary is the course projection embedded in enrollment responses.
type CourseSummary struct {
	ID         string `db:"id" json:"id"`
	Code       string `db:"code" json:"code"`
	Title      string `db:"title" json:"title"`
	Credits    int    `db:"credits" json:"credits"`
	Instructor string `db:"instructor" json:"instructor"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	Student              StudentSummary `db:"student" json:"student"`
	Course               CourseSummary  `db:"course" json:"course"`
	AttendancePercentage int            `db:"-" json:"attendancePercentage"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	Status   EnrollmentStatus
	Semester Semester
	Year     int
	Search   string
	Page     int
	PageSize int
}
