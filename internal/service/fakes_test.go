package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/course-management-api/internal/models"
	"github.com/noah-isme/course-management-api/internal/repository"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
)

type recordingActivity struct {
	mu      sync.Mutex
	entries []models.Activity
}

func (r *recordingActivity) Record(ctx context.Context, activity models.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, activity)
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func (r *recordingActivity) last() models.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return models.Activity{}
	}
	return r.entries[len(r.entries)-1]
}

// memoryStore backs the course, student and enrollment fakes with one lock so the
// enrollment fake can mutate course counters the way the SQL transaction does.
type memoryStore struct {
	mu          sync.Mutex
	courses     map[string]models.Course
	students    map[string]models.Student
	enrollments map[string]models.Enrollment
	err         error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		courses:     make(map[string]models.Course),
		students:    make(map[string]models.Student),
		enrollments: make(map[string]models.Enrollment),
	}
}

func (m *memoryStore) addCourse(c models.Course) models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.courses[c.ID] = c
	return c
}

func (m *memoryStore) addStudent(s models.Student) models.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.students[s.ID] = s
	return s
}

func (m *memoryStore) course(id string) models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.courses[id]
}

type fakeCourseRepo struct{ *memoryStore }

func (f fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	out := []models.Course{}
	for _, c := range f.courses {
		if !c.IsActive || (filter.Semester != "" && c.Semester != filter.Semester) {
			continue
		}
		if filter.Search != "" && !containsFold(c.Code+" "+c.Title, filter.Search) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (f fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f fakeCourseRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.courses {
		if c.Code == code && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = uuid.NewString()
	course.Enrolled = 0
	course.IsActive = true
	course.CreatedAt = time.Now().UTC()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses[course.ID] = *course
	return nil
}

func (f fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	enrolled := stored.Enrolled
	if course.Semester != stored.Semester || course.Year != stored.Year {
		enrolled = f.seatsHeldLocked(course.ID, course.Semester, course.Year)
	}
	if course.Capacity < enrolled {
		return repository.ErrCapacityBelowEnrolled
	}
	course.Enrolled = enrolled
	course.CreatedAt = stored.CreatedAt
	f.courses[course.ID] = *course
	return nil
}

func (f fakeCourseRepo) SoftDelete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.IsActive = false
	f.courses[id] = c
	return nil
}

func (f fakeCourseRepo) Stats(ctx context.Context) (*models.CourseStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	stats := &models.CourseStats{}
	bySemester := map[models.Semester]*models.CourseSemesterCount{}
	credits := 0
	for _, c := range f.courses {
		if !c.IsActive {
			continue
		}
		stats.Overview.TotalCourses++
		stats.Overview.TotalEnrolled += c.Enrolled
		stats.Overview.TotalCapacity += c.Capacity
		credits += c.Credits
		entry, ok := bySemester[c.Semester]
		if !ok {
			entry = &models.CourseSemesterCount{Semester: c.Semester}
			bySemester[c.Semester] = entry
		}
		entry.Count++
		entry.TotalEnrolled += c.Enrolled
	}
	if stats.Overview.TotalCourses > 0 {
		stats.Overview.AvgCredits = float64(credits) / float64(stats.Overview.TotalCourses)
	}
	stats.BySemester = []models.CourseSemesterCount{}
	for _, entry := range bySemester {
		stats.BySemester = append(stats.BySemester, *entry)
	}
	sort.Slice(stats.BySemester, func(i, j int) bool { return stats.BySemester[i].Semester < stats.BySemester[j].Semester })
	return stats, nil
}

func (f fakeCourseRepo) Reconcile(ctx context.Context, courseID string) ([]models.CourseReconciliation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if courseID != "" {
		if _, ok := f.courses[courseID]; !ok {
			return nil, sql.ErrNoRows
		}
	}
	var out []models.CourseReconciliation
	for id, c := range f.courses {
		if courseID != "" && id != courseID {
			continue
		}
		actual := f.seatsHeldLocked(id, c.Semester, c.Year)
		if actual != c.Enrolled {
			out = append(out, models.CourseReconciliation{CourseID: id, Code: c.Code, Previous: c.Enrolled, Enrolled: actual, Capacity: c.Capacity})
			c.Enrolled = actual
			f.courses[id] = c
		}
	}
	return out, nil
}

func (m *memoryStore) seatsHeldLocked(courseID string, semester models.Semester, year int) int {
	held := 0
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.HoldsSeatIn(semester, year) {
			held++
		}
	}
	return held
}

// holdsSeatLocked reports whether e is counted by its course's enrolled counter.
func (m *memoryStore) holdsSeatLocked(e models.Enrollment) bool {
	c, ok := m.courses[e.CourseID]
	return ok && e.HoldsSeatIn(c.Semester, c.Year)
}

type fakeStudentRepo struct{ *memoryStore }

func (f fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Student{}
	for _, s := range f.students {
		if !s.IsActive {
			continue
		}
		if filter.Major != "" && !strings.EqualFold(s.Major, filter.Major) {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (f fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeStudentRepo) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.students {
		if s.StudentID == studentID && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeStudentRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.students {
		if s.Email == email && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = uuid.NewString()
	student.IsActive = true
	f.mu.Lock()
	defer f.mu.Unlock()
	f.students[student.ID] = *student
	return nil
}

func (f fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	f.students[student.ID] = *student
	return nil
}

func (f fakeStudentRepo) SoftDelete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.IsActive = false
	f.students[id] = s
	return nil
}

func (f fakeStudentRepo) Stats(ctx context.Context) (*models.StudentStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.StudentStats{ByMajor: []models.StudentMajorCount{}, ByYearLevel: []models.StudentYearLevelCount{}}
	for _, s := range f.students {
		if s.IsActive {
			stats.Overview.TotalStudents++
		}
	}
	return stats, nil
}

type fakeEnrollmentRepo struct{ *memoryStore }

func (f fakeEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	items, err := f.ListAll(ctx, filter)
	return items, len(items), err
}

func (f fakeEnrollmentRepo) ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []models.EnrollmentDetail{}
	for _, e := range f.enrollments {
		if !e.IsActive || (filter.Status != "" && e.Status != filter.Status) {
			continue
		}
		out = append(out, f.detailLocked(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeEnrollmentRepo) detailLocked(e models.Enrollment) models.EnrollmentDetail {
	s := f.students[e.StudentID]
	c := f.courses[e.CourseID]
	return *composeDetail(e, &s, &c)
}

func (f fakeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (f fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := f.detailLocked(e)
	return &d, nil
}

func (f fakeEnrollmentRepo) CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	course, ok := f.courses[enrollment.CourseID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	occupied := 0
	for _, e := range f.enrollments {
		if e.StudentID == enrollment.StudentID && e.CourseID == enrollment.CourseID &&
			e.Semester == enrollment.Semester && e.Year == enrollment.Year {
			return appErrors.ErrDuplicateEnrollment
		}
		if e.CourseID == enrollment.CourseID && e.Semester == enrollment.Semester && e.Year == enrollment.Year && e.Occupies() {
			occupied++
		}
	}
	if occupied >= course.Capacity {
		return appErrors.ErrCapacityExceeded
	}
	enrollment.ID = uuid.NewString()
	enrollment.IsActive = true
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = time.Now().UTC()
	}
	held := f.holdsSeatLocked(*enrollment)
	if held && course.Enrolled >= course.Capacity {
		return appErrors.ErrCapacityExceeded
	}
	f.enrollments[enrollment.ID] = *enrollment
	if held {
		course.Enrolled++
		f.courses[course.ID] = course
	}
	return nil
}

func (f fakeEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.enrollments[enrollment.ID]
	if !ok {
		return sql.ErrNoRows
	}
	enrollment.IsActive = prev.IsActive
	was, now := f.holdsSeatLocked(prev), f.holdsSeatLocked(*enrollment)
	same := prev.CourseID == enrollment.CourseID
	if now && !(was && same) {
		if c := f.courses[enrollment.CourseID]; c.Enrolled >= c.Capacity {
			return appErrors.ErrCapacityExceeded
		}
	}
	if was && !(now && same) {
		c := f.courses[prev.CourseID]
		if c.Enrolled > 0 {
			c.Enrolled--
		}
		f.courses[c.ID] = c
	}
	if now && !(was && same) {
		c := f.courses[enrollment.CourseID]
		c.Enrolled++
		f.courses[c.ID] = c
	}
	f.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (f fakeEnrollmentRepo) UpdateGrade(ctx context.Context, id, grade string, comments *string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	e.Grade = &grade
	if comments != nil {
		e.Comments = *comments
	}
	f.enrollments[id] = e
	return &e, nil
}

func (f fakeEnrollmentRepo) SoftDelete(ctx context.Context, id string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if e.IsActive {
		if f.holdsSeatLocked(e) {
			c := f.courses[e.CourseID]
			if c.Enrolled > 0 {
				c.Enrolled--
			}
			f.courses[c.ID] = c
		}
		e.IsActive = false
		f.enrollments[id] = e
	}
	return &e, nil
}

func (f fakeEnrollmentRepo) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.EnrollmentStats{BySemester: []models.EnrollmentSemesterCount{}, ByStatus: []models.EnrollmentStatusCount{}}
	for _, e := range f.enrollments {
		if !e.IsActive {
			continue
		}
		stats.Overview.TotalEnrollments++
		if e.Status == models.EnrollmentStatusEnrolled {
			stats.Overview.EnrolledCount++
		}
	}
	return stats, nil
}

// memoryCache is a JSON round-tripping CacheRepository.
type memoryCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
