package models

import "time"

// Semester identifies the academic period of a course offering.
type Semester string

// Supported semesters.
const (
	SemesterFall   Semester = "Fall"
	SemesterSpring Semester = "Spring"
	SemesterSummer Semester = "Summer"
)

// DefaultCourseCapacity applies when a course is created without an explicit capacity.
const DefaultCourseCapacity = 30

// Course is a single course offering. Enrolled is owned by the enrollment lifecycle.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Credits     int       `db:"credits" json:"credits"`
	Instructor  string    `db:"instructor" json:"instructor"`
	Capacity    int       `db:"capacity" json:"capacity"`
	Enrolled    int       `db:"enrolled" json:"enrolled"`
	Semester    Semester  `db:"semester" json:"semester"`
	Year        int       `db:"year" json:"year"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// AvailableSeats returns the remaining capacity, never negative.
func (c Course) AvailableSeats() int {
	if c.Enrolled >= c.Capacity {
		return 0
	}
	return c.Capacity - c.Enrolled
}

// CourseView is the response shape exposing derived seat information.
type CourseView struct {
	Course
	AvailableSeats int `json:"availableSeats"`
}

// NewCourseView wraps a course with its derived fields.
func NewCourseView(c Course) CourseView {
	return CourseView{Course: c, AvailableSeats: c.AvailableSeats()}
}

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	Semester   Semester
	Year       int
	Instructor string
	Search     string
	Page       int
	PageSize   int
}

// CourseReconciliation reports a course counter that was recomputed from enrollments.
type CourseReconciliation struct {
	CourseID string `db:"id" json:"courseId"`
	Code     string `db:"code" json:"code"`
	Previous int    `db:"previous" json:"previous"`
	Enrolled int    `db:"enrolled" json:"enrolled"`
	Capacity int    `db:"capacity" json:"capacity"`
}
