package models

import "time"

// EntityType names the resource an activity refers to.
type EntityType string

// Entity types recorded in the activity log.
const (
	EntityCourse     EntityType = "Course"
	EntityStudent    EntityType = "Student"
	EntityEnrollment EntityType = "Enrollment"
	EntityUser       EntityType = "User"
)

// Display colours used by the activity feed.
const (
	ActivityColorBlue = "blue"
	ActivityColorRed  = "red"
)

// Activity actions emitted by the services.
const (
	ActionCourseCreated          = "Course Created"
	ActionCourseUpdated          = "Course Updated"
	ActionCourseDeleted          = "Course Deleted"
	ActionCourseReconciled       = "Course Reconciled"
	ActionStudentCreated         = "Student Created"
	ActionStudentUpdated         = "Student Updated"
	ActionStudentDeleted         = "Student Deleted"
	ActionEnrollmentCreated      = "Enrollment Created"
	ActionEnrollmentUpdated      = "Enrollment Updated"
	ActionEnrollmentGradeUpdated = "Enrollment Grade Updated"
	ActionEnrollmentDeleted      = "Enrollment Deleted"
	ActionUserLogin              = "User Login"
)

// RecentActivityLimit caps the activity feed.
const RecentActivityLimit = 10

// Activity is an append-only audit entry describing a mutation.
type Activity struct {
	ID         string     `db:"id" json:"id"`
	Action     string     `db:"action" json:"action"`
	EntityType EntityType `db:"entity_type" json:"entityType"`
	EntityID   string     `db:"entity_id" json:"entityId"`
	Message    string     `db:"message" json:"message"`
	Color      string     `db:"color" json:"color"`
	Timestamp  time.Time  `db:"timestamp" json:"timestamp"`
}
