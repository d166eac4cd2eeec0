package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-management-api/internal/dto"
	"github.com/noah-isme/course-management-api/internal/models"
	"github.com/noah-isme/course-management-api/internal/repository"
	"github.com/noah-isme/course-management-api/internal/service"
	"github.com/noah-isme/course-management-api/pkg/config"
	"github.com/noah-isme/course-management-api/pkg/database"
	"github.com/noah-isme/course-management-api/pkg/logger"
)

var sampleCourses = []dto.CourseRequest{
	{Code: "CS101", Title: "Introduction to Computer Science", Description: "Fundamental concepts of computer science and programming", Credits: 3, Instructor: "Dr. Alice Smith", Capacity: capacity(30), Semester: models.SemesterFall, Year: 2024},
	{Code: "MATH201", Title: "Calculus I", Description: "Differential and integral calculus", Credits: 4, Instructor: "Dr. Bob Johnson", Capacity: capacity(35), Semester: models.SemesterFall, Year: 2024},
	{Code: "ENG101", Title: "English Composition", Description: "Academic writing and critical thinking", Credits: 3, Instructor: "Prof. Carol Davis", Capacity: capacity(25), Semester: models.SemesterFall, Year: 2024},
	{Code: "PHYS101", Title: "Physics Fundamentals", Description: "Basic principles of physics and mechanics", Credits: 4, Instructor: "Dr. David Wilson", Capacity: capacity(30), Semester: models.SemesterSpring, Year: 2025},
	{Code: "CHEM101", Title: "General Chemistry", Description: "Introduction to chemical principles and laboratory techniques", Credits: 4, Instructor: "Dr. Emily Brown", Capacity: capacity(28), Semester: models.SemesterSummer, Year: 2025},
}

var sampleStudents = []dto.StudentRequest{
	{StudentID: "STU001", FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", Phone: "1112223333", DateOfBirth: date("2002-01-15"), Major: "Computer Science", YearLevel: models.YearLevelSophomore, GPA: 3.8, TotalCredits: 30},
	{StudentID: "STU002", FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", Phone: "4445556666", DateOfBirth: date("2001-05-20"), Major: "Mathematics", YearLevel: models.YearLevelJunior, GPA: 3.9, TotalCredits: 60},
	{StudentID: "STU003", FirstName: "Peter", LastName: "Jones", Email: "peter.jones@example.com", Phone: "7778889999", DateOfBirth: date("2003-09-10"), Major: "Physics", YearLevel: models.YearLevelFreshman, GPA: 3.5, TotalCredits: 15},
}

// sampleEnrollments pairs student and course indexes with the grade to record.
var sampleEnrollments = []struct {
	student, course int
	grade           string
}{
	{0, 0, "A"},
	{1, 0, "B+"},
	{0, 1, "A-"},
}

func main() {
	reset := flag.Bool("reset", true, "truncate existing data before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("database migration failed", zap.Error(err))
	}
	if *reset {
		if _, err := db.ExecContext(ctx, `TRUNCATE activities, enrollments, students, courses`); err != nil {
			logr.Fatal("clearing existing data failed", zap.Error(err))
		}
		logr.Info("existing data cleared")
	}

	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	activity := service.NewActivityService(activityRepo, nil, service.ActivityConfig{Workers: 1, BufferSize: 64}, nil, logr)
	activity.Start(ctx)

	courses := service.NewCourseService(courseRepo, nil, nil, activity, logr)
	students := service.NewStudentService(studentRepo, nil, nil, activity, logr)
	enrollments := service.NewEnrollmentService(service.EnrollmentServiceParams{
		Repo:     enrollmentRepo,
		Students: studentRepo,
		Courses:  courseRepo,
		Activity: activity,
		Logger:   logr,
	})

	courseIDs := make([]string, 0, len(sampleCourses))
	for _, req := range sampleCourses {
		course, err := courses.Create(ctx, req)
		if err != nil {
			logr.Fatal("seeding course failed", zap.String("code", req.Code), zap.Error(err))
		}
		courseIDs = append(courseIDs, course.ID)
	}
	logr.Info("courses seeded", zap.Int("count", len(courseIDs)))

	studentIDs := make([]string, 0, len(sampleStudents))
	for _, req := range sampleStudents {
		student, err := students.Create(ctx, req)
		if err != nil {
			logr.Fatal("seeding student failed", zap.String("student_id", req.StudentID), zap.Error(err))
		}
		studentIDs = append(studentIDs, student.ID)
	}
	logr.Info("students seeded", zap.Int("count", len(studentIDs)))

	for _, e := range sampleEnrollments {
		course := sampleCourses[e.course]
		detail, err := enrollments.Create(ctx, dto.EnrollmentRequest{
			Student:  studentIDs[e.student],
			Course:   courseIDs[e.course],
			Semester: course.Semester,
			Year:     course.Year,
		})
		if err != nil {
			logr.Fatal("seeding enrollment failed", zap.Error(err))
		}
		if _, err := enrollments.UpdateGrade(ctx, detail.ID, dto.GradeRequest{Grade: e.grade}); err != nil {
			logr.Fatal("seeding grade failed", zap.Error(err))
		}
	}
	logr.Info("enrollments seeded", zap.Int("count", len(sampleEnrollments)))

	activity.Stop()
	logr.Info("database seeding completed")
}

func capacity(n int) *int { return &n }

func date(value string) *dto.Date {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return &dto.Date{Time: t}
}
