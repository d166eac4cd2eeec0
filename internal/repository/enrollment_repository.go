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

// MaxExportRows bounds unpaginated roster reads.
const MaxExportRows = 10000

const enrollmentColumns = `id, student_id, course_id, semester, year, enrollment_date, status, grade, grade_points, attendance, total_classes, comments, is_active, created_at, updated_at`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.semester, e.year, e.enrollment_date, e.status, e.grade, e.grade_points,
e.attendance, e.total_classes, e.comments, e.is_active, e.created_at, e.updated_at,
s.id AS "student.id", s.student_id AS "student.student_id", s.first_name AS "student.first_name",
s.last_name AS "student.last_name", s.email AS "student.email",
c.id AS "course.id", c.code AS "course.code", c.title AS "course.title", c.credits AS "course.credits",
c.instructor AS "course.instructor"`

const enrollmentDetailFrom = ` FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN courses c ON c.id = e.course_id`

// EnrollmentRepository persists enrollments and keeps the course counters in step.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns active enrollments with student and course summaries, newest enrollment first.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	conds := enrollmentConditions(filter)
	_, limit, offset := models.NormalizePage(filter.Page, filter.PageSize)

	details, err := r.selectDetails(ctx, conds, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+enrollmentDetailFrom+conds.where(), conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return details, total, nil
}

// ListAll returns every matching active enrollment up to MaxExportRows.
func (r *EnrollmentRepository) ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	return r.selectDetails(ctx, enrollmentConditions(filter), MaxExportRows, 0)
}

func (r *EnrollmentRepository) selectDetails(ctx context.Context, conds conditions, limit, offset int) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf("%s%s%s ORDER BY e.enrollment_date DESC, e.id LIMIT %d OFFSET %d",
		enrollmentDetailSelect, enrollmentDetailFrom, conds.where(), limit, offset)
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	for i := range details {
		details[i].AttendancePercentage = details[i].Enrollment.AttendancePercentage()
	}
	return details, nil
}

func enrollmentConditions(filter models.EnrollmentFilter) conditions {
	conds := conditions{}
	conds.raw("e.is_active = TRUE")
	if filter.Status != "" {
		conds.add("e.status = ?", filter.Status)
	}
	if filter.Semester != "" {
		conds.add("e.semester = ?", filter.Semester)
	}
	if filter.Year > 0 {
		conds.add("e.year = ?", filter.Year)
	}
	if filter.Search != "" {
		conds.add("(s.student_id ILIKE ? OR s.first_name ILIKE ? OR s.last_name ILIKE ? OR c.code ILIKE ? OR c.title ILIKE ?)", likePattern(filter.Search))
	}
	return conds
}

// FindByID returns the bare enrollment row.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, "SELECT "+enrollmentColumns+" FROM enrollments WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns the enrollment with student and course summaries.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+enrollmentDetailFrom+" WHERE e.id = $1", id); err != nil {
		return nil, err
	}
	detail.AttendancePercentage = detail.Enrollment.AttendancePercentage()
	return &detail, nil
}

// CreateWithinCapacity inserts the enrollment and, when it holds a seat of the course's
// own offering, bumps the course counter in the same transaction. The course row lock
// serialises concurrent creations for one course, so the duplicate and occupancy checks
// cannot interleave with another insert.
func (r *EnrollmentRepository) CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	enrollment.IsActive = true
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	return inTx(ctx, r.db, "create enrollment", func(tx *sqlx.Tx) error {
		course, err := lockOffering(ctx, tx, enrollment.CourseID)
		if err != nil {
			return err
		}

		var duplicate bool
		const dupQuery = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND semester = $3 AND year = $4)`
		if err := tx.GetContext(ctx, &duplicate, dupQuery, enrollment.StudentID, enrollment.CourseID, enrollment.Semester, enrollment.Year); err != nil {
			return fmt.Errorf("check duplicate enrollment: %w", err)
		}
		if duplicate {
			return appErrors.ErrDuplicateEnrollment
		}

		var occupied int
		const occupancyQuery = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND semester = $2 AND year = $3 AND status = $4 AND is_active = TRUE`
		if err := tx.GetContext(ctx, &occupied, occupancyQuery, enrollment.CourseID, enrollment.Semester, enrollment.Year, models.EnrollmentStatusEnrolled); err != nil {
			return fmt.Errorf("count occupancy: %w", err)
		}
		if occupied >= course.Capacity {
			return appErrors.ErrCapacityExceeded
		}

		const insert = `INSERT INTO enrollments (id, student_id, course_id, semester, year, enrollment_date, status, grade, grade_points, attendance, total_classes, comments, is_active, created_at, updated_at)
VALUES (:id, :student_id, :course_id, :semester, :year, :enrollment_date, :status, :grade, :grade_points, :attendance, :total_classes, :comments, :is_active, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return appErrors.ErrDuplicateEnrollment
			}
			return fmt.Errorf("insert enrollment: %w", err)
		}

		if !course.counts(*enrollment) {
			return nil
		}
		return claimSeat(ctx, tx, enrollment.CourseID)
	})
}

// Update replaces the editable fields. Seat accounting follows the transition between
// holding a seat of the course's offering and not holding one, including a move to
// another course or offering.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	return inTx(ctx, r.db, "update enrollment", func(tx *sqlx.Tx) error {
		var prev models.Enrollment
		if err := tx.GetContext(ctx, &prev, "SELECT "+enrollmentColumns+" FROM enrollments WHERE id = $1 FOR UPDATE", enrollment.ID); err != nil {
			return err
		}

		enrollment.IsActive = prev.IsActive
		enrollment.CreatedAt = prev.CreatedAt
		enrollment.UpdatedAt = time.Now().UTC()
		if enrollment.EnrollmentDate.IsZero() {
			enrollment.EnrollmentDate = prev.EnrollmentDate
		}

		const update = `UPDATE enrollments SET student_id = :student_id, course_id = :course_id, semester = :semester, year = :year,
enrollment_date = :enrollment_date, status = :status, grade = :grade, grade_points = :grade_points, attendance = :attendance,
total_classes = :total_classes, comments = :comments, updated_at = :updated_at
WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, update, enrollment); err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return appErrors.ErrDuplicateEnrollment
			}
			return fmt.Errorf("update enrollment: %w", err)
		}

		was, err := holdsSeat(ctx, tx, prev)
		if err != nil {
			return err
		}
		now, err := holdsSeat(ctx, tx, *enrollment)
		if err != nil {
			return err
		}
		same := prev.CourseID == enrollment.CourseID
		if was && !(now && same) {
			if err := releaseSeat(ctx, tx, prev.CourseID); err != nil {
				return err
			}
		}
		if now && !(was && same) {
			if err := claimSeat(ctx, tx, enrollment.CourseID); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateGrade sets the grade and, when given, the comments. Status is left alone.
func (r *EnrollmentRepository) UpdateGrade(ctx context.Context, id, grade string, comments *string) (*models.Enrollment, error) {
	query := `UPDATE enrollments SET grade = $2, comments = COALESCE($3, comments), updated_at = NOW()
WHERE id = $1 RETURNING ` + enrollmentColumns
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, grade, comments); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// SoftDelete deactivates the enrollment and frees its seat if it held one.
// Deleting an already inactive enrollment changes nothing.
func (r *EnrollmentRepository) SoftDelete(ctx context.Context, id string) (*models.Enrollment, error) {
	var prev models.Enrollment
	err := inTx(ctx, r.db, "delete enrollment", func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &prev, "SELECT "+enrollmentColumns+" FROM enrollments WHERE id = $1 FOR UPDATE", id); err != nil {
			return err
		}
		if !prev.IsActive {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "UPDATE enrollments SET is_active = FALSE, updated_at = NOW() WHERE id = $1", id); err != nil {
			return fmt.Errorf("deactivate enrollment: %w", err)
		}
		held, err := holdsSeat(ctx, tx, prev)
		if err != nil || !held {
			return err
		}
		return releaseSeat(ctx, tx, prev.CourseID)
	})
	if err != nil {
		return nil, err
	}
	prev.IsActive = false
	return &prev, nil
}

// offering is the locked course row that owns the enrolled counter.
type offering struct {
	Capacity int             `db:"capacity"`
	Semester models.Semester `db:"semester"`
	Year     int             `db:"year"`
}

func (o offering) counts(e models.Enrollment) bool {
	return e.HoldsSeatIn(o.Semester, o.Year)
}

func lockOffering(ctx context.Context, tx *sqlx.Tx, courseID string) (*offering, error) {
	var o offering
	if err := tx.GetContext(ctx, &o, "SELECT capacity, semester, year FROM courses WHERE id = $1 FOR UPDATE", courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	return &o, nil
}

// holdsSeat locks the enrollment's course only when the enrollment could hold a seat.
func holdsSeat(ctx context.Context, tx *sqlx.Tx, e models.Enrollment) (bool, error) {
	if !e.Occupies() {
		return false, nil
	}
	course, err := lockOffering(ctx, tx, e.CourseID)
	if err != nil {
		return false, err
	}
	return course.counts(e), nil
}

// claimSeat increments the counter only while it is below capacity.
func claimSeat(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	res, err := tx.ExecContext(ctx, "UPDATE courses SET enrolled = enrolled + 1, updated_at = NOW() WHERE id = $1 AND enrolled < capacity", courseID)
	if err != nil {
		return fmt.Errorf("increment course enrolled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.ErrCapacityExceeded
	}
	return nil
}

func releaseSeat(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	if _, err := tx.ExecContext(ctx, "UPDATE courses SET enrolled = GREATEST(enrolled - 1, 0), updated_at = NOW() WHERE id = $1", courseID); err != nil {
		return fmt.Errorf("decrement course enrolled: %w", err)
	}
	return nil
}

// Stats aggregates active enrollments.
func (r *EnrollmentRepository) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	stats := &models.EnrollmentStats{
		BySemester: []models.EnrollmentSemesterCount{},
		ByStatus:   []models.EnrollmentStatusCount{},
	}
	const overview = `SELECT COUNT(*) AS total_enrollments,
COUNT(*) FILTER (WHERE status = 'Enrolled') AS enrolled_count,
COUNT(*) FILTER (WHERE status = 'Completed') AS completed_count,
COUNT(*) FILTER (WHERE status = 'Dropped') AS dropped_count,
COUNT(*) FILTER (WHERE status = 'Withdrawn') AS withdrawn_count
FROM enrollments WHERE is_active = TRUE`
	if err := r.db.GetContext(ctx, &stats.Overview, overview); err != nil {
		return nil, fmt.Errorf("enrollment overview: %w", err)
	}
	const bySemester = `SELECT semester, COUNT(*) AS count, COUNT(*) FILTER (WHERE status = 'Enrolled') AS enrolled_count
FROM enrollments WHERE is_active = TRUE GROUP BY semester ORDER BY semester`
	if err := r.db.SelectContext(ctx, &stats.BySemester, bySemester); err != nil {
		return nil, fmt.Errorf("enrollment semester stats: %w", err)
	}
	const byStatus = `SELECT status, COUNT(*) AS count FROM enrollments WHERE is_active = TRUE GROUP BY status ORDER BY status`
	if err := r.db.SelectContext(ctx, &stats.ByStatus, byStatus); err != nil {
		return nil, fmt.Errorf("enrollment status stats: %w", err)
	}
	return stats, nil
}
