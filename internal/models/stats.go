package models

// CourseOverview aggregates active courses.
type CourseOverview struct {
	TotalCourses  int     `db:"total_courses" json:"totalCourses"`
	TotalEnrolled int     `db:"total_enrolled" json:"totalEnrolled"`
	TotalCapacity int     `db:"total_capacity" json:"totalCapacity"`
	AvgCredits    float64 `db:"avg_credits" json:"avgCredits"`
}

// CourseSemesterCount groups active courses by semester.
type CourseSemesterCount struct {
	Semester      Semester `db:"semester" json:"semester"`
	Count         int      `db:"count" json:"count"`
	TotalEnrolled int      `db:"total_enrolled" json:"totalEnrolled"`
}

// CourseStats is the course statistics payload.
type CourseStats struct {
	Overview   CourseOverview        `json:"overview"`
	BySemester []CourseSemesterCount `json:"bySemester"`
}

// StudentOverview aggregates active students.
type StudentOverview struct {
	TotalStudents int     `db:"total_students" json:"totalStudents"`
	AvgGPA        float64 `db:"avg_gpa" json:"avgGpa"`
}

// StudentMajorCount groups active students by major.
type StudentMajorCount struct {
	Major  string  `db:"major" json:"major"`
	Count  int     `db:"count" json:"count"`
	AvgGPA float64 `db:"avg_gpa" json:"avgGpa"`
}

// StudentYearLevelCount groups active students by year level.
type StudentYearLevelCount struct {
	YearLevel YearLevel `db:"year_level" json:"yearLevel"`
	Count     int       `db:"count" json:"count"`
}

// StudentStats is the student statistics payload.
type StudentStats struct {
	Overview    StudentOverview         `json:"overview"`
	ByMajor     []StudentMajorCount     `json:"byMajor"`
	ByYearLevel []StudentYearLevelCount `json:"byYearLevel"`
}

// EnrollmentOverview aggregates active enrollments.
type EnrollmentOverview struct {
	TotalEnrollments int `db:"total_enrollments" json:"totalEnrollments"`
	EnrolledCount    int `db:"enrolled_count" json:"enrolledCount"`
	CompletedCount   int `db:"completed_count" json:"completedCount"`
	DroppedCount     int `db:"dropped_count" json:"droppedCount"`
	WithdrawnCount   int `db:"withdrawn_count" json:"withdrawnCount"`
}

// EnrollmentSemesterCount groups active enrollments by semester.
type EnrollmentSemesterCount struct {
	Semester      Semester `db:"semester" json:"semester"`
	Count         int      `db:"count" json:"count"`
	EnrolledCount int      `db:"enrolled_count" json:"enrolledCount"`
}

// EnrollmentStatusCount groups active enrollments by status.
type EnrollmentStatusCount struct {
	Status EnrollmentStatus `db:"status" json:"status"`
	Count  int              `db:"count" json:"count"`
}

// EnrollmentStats is the enrollment statistics payload.
type EnrollmentStats struct {
	Overview   EnrollmentOverview        `json:"overview"`
	BySemester []EnrollmentSemesterCount `json:"bySemester"`
	ByStatus   []EnrollmentStatusCount   `json:"byStatus"`
}
