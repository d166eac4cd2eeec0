package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

const studentColumns = `id, student_id, first_name, last_name, email, phone, date_of_birth, major, year_level, gpa, total_credits, is_active, address, created_at, updated_at`

// StudentRepository persists students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns active students matching the filter, newest first.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conds := conditions{}
	conds.raw("is_active = TRUE")
	if filter.Major != "" {
		conds.add("LOWER(major) = LOWER(?)", strings.TrimSpace(filter.Major))
	}
	if filter.YearLevel != "" {
		conds.add("year_level = ?", filter.YearLevel)
	}
	if filter.Search != "" {
		conds.add("(student_id ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)", likePattern(filter.Search))
	}
	_, limit, offset := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY created_at DESC LIMIT %d OFFSET %d", studentColumns, conds.where(), limit, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+conds.where(), conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student regardless of its active flag.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByStudentID reports whether another student holds the institutional number.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	return r.exists(ctx, "student_id", studentID, excludeID)
}

// ExistsByEmail reports whether another student holds the email address.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return r.exists(ctx, "email", email, excludeID)
}

func (r *StudentRepository) exists(ctx context.Context, column, value, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM students WHERE %s = $1", column)
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var one int
	if err := r.db.GetContext(ctx, &one, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student %s: %w", column, err)
	}
	return true, nil
}

// Create inserts a student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.IsActive = true
	student.CreatedAt = now
	student.UpdatedAt = now

	const query = `INSERT INTO students (id, student_id, first_name, last_name, email, phone, date_of_birth, major, year_level, gpa, total_credits, is_active, address, created_at, updated_at)
VALUES (:id, :student_id, :first_name, :last_name, :email, :phone, :date_of_birth, :major, :year_level, :gpa, :total_credits, :is_active, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return studentDuplicate(constraint)
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites every editable column.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_id = :student_id, first_name = :first_name, last_name = :last_name,
email = :email, phone = :phone, date_of_birth = :date_of_birth, major = :major, year_level = :year_level,
gpa = :gpa, total_credits = :total_credits, is_active = :is_active, address = :address, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return studentDuplicate(constraint)
		}
		return fmt.Errorf("update student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete marks the student inactive.
func (r *StudentRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE students SET is_active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats aggregates active students.
func (r *StudentRepository) Stats(ctx context.Context) (*models.StudentStats, error) {
	stats := &models.StudentStats{
		ByMajor:     []models.StudentMajorCount{},
		ByYearLevel: []models.StudentYearLevelCount{},
	}
	const overview = `SELECT COUNT(*) AS total_students, COALESCE(AVG(gpa), 0) AS avg_gpa FROM students WHERE is_active = TRUE`
	if err := r.db.GetContext(ctx, &stats.Overview, overview); err != nil {
		return nil, fmt.Errorf("student overview: %w", err)
	}
	const byMajor = `SELECT major, COUNT(*) AS count, COALESCE(AVG(gpa), 0) AS avg_gpa
FROM students WHERE is_active = TRUE GROUP BY major ORDER BY count DESC, major`
	if err := r.db.SelectContext(ctx, &stats.ByMajor, byMajor); err != nil {
		return nil, fmt.Errorf("student major stats: %w", err)
	}
	const byYear = `SELECT year_level, COUNT(*) AS count FROM students WHERE is_active = TRUE GROUP BY year_level ORDER BY year_level`
	if err := r.db.SelectContext(ctx, &stats.ByYearLevel, byYear); err != nil {
		return nil, fmt.Errorf("student year level stats: %w", err)
	}
	return stats, nil
}

func studentDuplicate(constraint string) error {
	if strings.Contains(constraint, "email") {
		return appErrors.Clone(appErrors.ErrDuplicateKey, "email already exists")
	}
	return appErrors.Clone(appErrors.ErrDuplicateKey, "student ID already exists")
}
