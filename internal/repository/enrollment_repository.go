package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclass/classroom-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Exists checks whether a student holds an enrollment for the class.
func (r *EnrollmentRepository) Exists(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Join inserts an enrollment, re-checking for an existing row inside a
// transaction. A lost race against a concurrent join surfaces the same
// ErrDuplicate the pre-check produces, with the unique constraint on
// (class_id, student_id) as the final backstop.
func (r *EnrollmentRepository) Join(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin join: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing int
	err = tx.GetContext(ctx, &existing, `SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2 LIMIT 1`,
		enrollment.ClassID, enrollment.StudentID)
	if err == nil {
		return ErrDuplicate
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check enrollment: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `INSERT INTO enrollments (id, class_id, student_id, enrolled_at)
        VALUES (:id, :class_id, :student_id, :enrolled_at)`, enrollment)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("commit join: %w", err)
	}
	return nil
}

// Leave removes the enrollment row and reports whether one existed.
func (r *EnrollmentRepository) Leave(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `DELETE FROM enrollments WHERE class_id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, classID, studentID)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return affected > 0, nil
}

// ListByClass returns the roster of a class with student names.
func (r *EnrollmentRepository) ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.class_id, e.student_id, e.enrolled_at,
        u.full_name AS student_name, c.name AS class_name
        FROM enrollments e
        JOIN users u ON u.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        WHERE e.class_id = $1
        ORDER BY e.enrolled_at`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, classID); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return enrollments, nil
}
