// Command seed provisions a demo teacher, a demo student and a sample class
// with content so a fresh database is immediately usable for manual testing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/repository"
	"github.com/openclass/classroom-api/pkg/config"
	"github.com/openclass/classroom-api/pkg/database"
)

func main() {
	var (
		teacherEmail string
		studentEmail string
		password     string
		className    string
		joinCode     string
	)

	flag.StringVar(&teacherEmail, "teacher-email", "teacher@example.com", "Email of the demo teacher")
	flag.StringVar(&studentEmail, "student-email", "student@example.com", "Email of the demo student")
	flag.StringVar(&password, "password", "password123", "Password shared by the demo accounts")
	flag.StringVar(&className, "class-name", "Introduction to Biology", "Name of the demo class")
	flag.StringVar(&joinCode, "join-code", "BIO101", "Join code of the demo class")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := repository.NewUserRepository(db)
	classes := repository.NewClassRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	materials := repository.NewMaterialRepository(db)
	assignments := repository.NewAssignmentRepository(db)

	teacher, err := ensureUser(ctx, users, teacherEmail, password, "Demo Teacher", models.RoleTeacher)
	if err != nil {
		log.Fatalf("seed teacher: %v", err)
	}
	student, err := ensureUser(ctx, users, studentEmail, password, "Demo Student", models.RoleStudent)
	if err != nil {
		log.Fatalf("seed student: %v", err)
	}

	class, err := classes.FindByCode(ctx, joinCode)
	if err != nil {
		description := "Seeded demo class"
		class = &models.Class{
			Name:        className,
			Description: &description,
			UniqueCode:  joinCode,
			OwnerID:     teacher.ID,
		}
		if err := classes.Create(ctx, class); err != nil {
			log.Fatalf("seed class: %v", err)
		}
		log.Printf("created class %q with join code %s", class.Name, class.UniqueCode)
	}

	enrollment := &models.Enrollment{ClassID: class.ID, StudentID: student.ID}
	if err := enrollments.Join(ctx, enrollment); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		log.Fatalf("seed enrollment: %v", err)
	}

	material := &models.Material{
		ClassID:     class.ID,
		Title:       "Syllabus",
		Description: "Course outline and grading policy",
		Content:     "Week 1 covers cell structure. Week 2 covers genetics.",
	}
	if err := materials.Create(ctx, material); err != nil {
		log.Fatalf("seed material: %v", err)
	}

	due := time.Now().UTC().Add(7 * 24 * time.Hour)
	assignment := &models.Assignment{
		ClassID:     class.ID,
		Title:       "Lab Report 1",
		Description: "Summarize the microscope lab in two pages.",
		DueDate:     &due,
	}
	if err := assignments.Create(ctx, assignment); err != nil {
		log.Fatalf("seed assignment: %v", err)
	}

	log.Printf("done: teacher=%s student=%s class=%s", teacher.Email, student.Email, class.ID)
}

func ensureUser(ctx context.Context, users *repository.UserRepository, email, password, fullName string, role models.UserRole) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
	}
	err = users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		return users.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("created %s account %s", role, email)
	return user, nil
}
