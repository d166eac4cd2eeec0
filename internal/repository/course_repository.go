package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

const courseColumns = `id, code, title, description, credits, instructor, capacity, enrolled, semester, year, is_active, created_at, updated_at`

// ErrCapacityBelowEnrolled signals a capacity update smaller than the live counter.
var ErrCapacityBelowEnrolled = errors.New("capacity below enrolled")

// CourseRepository persists course offerings.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns active courses matching the filter, newest first.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	conds := conditions{}
	conds.raw("is_active = TRUE")
	if filter.Semester != "" {
		conds.add("semester = ?", filter.Semester)
	}
	if filter.Year > 0 {
		conds.add("year = ?", filter.Year)
	}
	if filter.Instructor != "" {
		conds.add("instructor ILIKE ?", likePattern(filter.Instructor))
	}
	if filter.Search != "" {
		conds.add("(code ILIKE ? OR title ILIKE ?)", likePattern(filter.Search))
	}
	_, limit, offset := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM courses%s ORDER BY created_at DESC LIMIT %d OFFSET %d", courseColumns, conds.where(), limit, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"+conds.where(), conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course regardless of its active flag.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, "SELECT "+courseColumns+" FROM courses WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCode reports whether another course already uses code.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var one int
	if err := r.db.GetContext(ctx, &one, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create inserts a course with a zero counter.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	course.Enrolled = 0
	course.IsActive = true
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, code, title, description, credits, instructor, capacity, enrolled, semester, year, is_active, created_at, updated_at)
VALUES (:id, :code, :title, :description, :credits, :instructor, :capacity, :enrolled, :semester, :year, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return appErrors.Clone(appErrors.ErrDuplicateKey, "course code already exists")
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update rewrites the editable columns. The stored counter is kept while the semester and
// year stay the same; moving the course to another offering recounts it for that offering.
// The capacity guard is evaluated against the resulting counter.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `WITH target AS (
	SELECT c.id, CASE WHEN c.semester = $8 AND c.year = $9 THEN c.enrolled
		ELSE (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.semester = $8 AND e.year = $9
			AND e.is_active = TRUE AND e.status = $12) END AS enrolled
	FROM courses c WHERE c.id = $1
)
UPDATE courses c SET code = $2, title = $3, description = $4, credits = $5, instructor = $6,
capacity = $7, semester = $8, year = $9, is_active = $10, updated_at = $11, enrolled = target.enrolled
FROM target
WHERE c.id = target.id AND target.enrolled <= $7
RETURNING c.enrolled, c.created_at`
	row := r.db.QueryRowxContext(ctx, query,
		course.ID, course.Code, course.Title, course.Description, course.Credits, course.Instructor,
		course.Capacity, course.Semester, course.Year, course.IsActive, course.UpdatedAt, models.EnrollmentStatusEnrolled,
	)
	if err := row.Scan(&course.Enrolled, &course.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.classifyMissedUpdate(ctx, course.ID)
		}
		if _, ok := uniqueConstraint(err); ok {
			return appErrors.Clone(appErrors.ErrDuplicateKey, "course code already exists")
		}
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

func (r *CourseRepository) classifyMissedUpdate(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)", id); err != nil {
		return fmt.Errorf("check course: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrCapacityBelowEnrolled
}

// SoftDelete marks the course inactive.
func (r *CourseRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE courses SET is_active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats aggregates active courses.
func (r *CourseRepository) Stats(ctx context.Context) (*models.CourseStats, error) {
	stats := &models.CourseStats{BySemester: []models.CourseSemesterCount{}}
	const overview = `SELECT COUNT(*) AS total_courses, COALESCE(SUM(enrolled), 0) AS total_enrolled,
COALESCE(SUM(capacity), 0) AS total_capacity, COALESCE(AVG(credits), 0) AS avg_credits
FROM courses WHERE is_active = TRUE`
	if err := r.db.GetContext(ctx, &stats.Overview, overview); err != nil {
		return nil, fmt.Errorf("course overview: %w", err)
	}
	const bySemester = `SELECT semester, COUNT(*) AS count, COALESCE(SUM(enrolled), 0) AS total_enrolled
FROM courses WHERE is_active = TRUE GROUP BY semester ORDER BY semester`
	if err := r.db.SelectContext(ctx, &stats.BySemester, bySemester); err != nil {
		return nil, fmt.Errorf("course semester stats: %w", err)
	}
	return stats, nil
}

// Reconcile recomputes enrolled from the active Enrolled enrollments of each course's own
// semester and year and returns the courses whose stored counter disagreed. An empty courseID targets every course.
func (r *CourseRepository) Reconcile(ctx context.Context, courseID string) (result []models.CourseReconciliation, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lock := "SELECT id FROM courses ORDER BY id FOR UPDATE"
	var args []interface{}
	if courseID != "" {
		lock = "SELECT id FROM courses WHERE id = $1 FOR UPDATE"
		args = append(args, courseID)
	}
	var locked []string
	if err = tx.SelectContext(ctx, &locked, lock, args...); err != nil {
		return nil, fmt.Errorf("lock courses: %w", err)
	}
	if courseID != "" && len(locked) == 0 {
		err = sql.ErrNoRows
		return nil, err
	}

	scope := ""
	if courseID != "" {
		scope = " WHERE c.id = $2"
	}
	query := fmt.Sprintf(`WITH actual AS (
	SELECT c.id, c.enrolled AS previous,
		(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.semester = c.semester AND e.year = c.year
			AND e.is_active = TRUE AND e.status = $1) AS counted
	FROM courses c%s
)
UPDATE courses c SET enrolled = actual.counted, updated_at = NOW()
FROM actual
WHERE c.id = actual.id AND c.enrolled <> actual.counted
RETURNING c.id, c.code, actual.previous, c.enrolled, c.capacity`, scope)
	updateArgs := []interface{}{models.EnrollmentStatusEnrolled}
	if courseID != "" {
		updateArgs = append(updateArgs, courseID)
	}
	result = []models.CourseReconciliation{}
	if err = tx.SelectContext(ctx, &result, query, updateArgs...); err != nil {
		return nil, fmt.Errorf("reconcile courses: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconcile tx: %w", err)
	}
	return result, nil
}
