package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclass/classroom-api/internal/models"
)

// SubmissionRepository handles persistence of submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID returns a submission by its ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, file_url, submitted_at, status, score, feedback, graded_at
        FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByAssignmentAndStudent returns the single submission a student holds for
// an assignment, if any.
func (r *SubmissionRepository) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, file_url, submitted_at, status, score, feedback, graded_at
        FROM submissions WHERE assignment_id = $1 AND student_id = $2`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// Upsert inserts a submission or, when the student already submitted,
// overwrites the existing row's file and timestamp and resets its status to
// pending. The single statement rides on the unique index over
// (assignment_id, student_id), so concurrent submits cannot create a second
// row.
func (r *SubmissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, file_url, submitted_at, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (assignment_id, student_id)
        DO UPDATE SET file_url = EXCLUDED.file_url, submitted_at = EXCLUDED.submitted_at, status = EXCLUDED.status
        RETURNING id`
	if err := r.db.GetContext(ctx, &submission.ID, query,
		submission.ID, submission.AssignmentID, submission.StudentID,
		submission.FileURL, submission.SubmittedAt, submission.Status); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// Grade overwrites score, feedback and grading timestamp unconditionally.
func (r *SubmissionRepository) Grade(ctx context.Context, id string, score int, feedback *string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET score = $2, feedback = $3, status = $4, graded_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, score, feedback, models.SubmissionStatusGraded, gradedAt); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}

// ListByAssignment returns all submissions for an assignment with student
// names, newest first.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, s.file_url, s.submitted_at, s.status, s.score, s.feedback, s.graded_at,
        u.full_name AS student_name
        FROM submissions s
        JOIN users u ON u.id = s.student_id
        WHERE s.assignment_id = $1
        ORDER BY s.submitted_at DESC`
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// CountByAssignment returns the number of submissions an assignment has.
func (r *SubmissionRepository) CountByAssignment(ctx context.Context, assignmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions WHERE assignment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, assignmentID); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

// CountByClass returns the number of submissions across every assignment of a
// class, used to guard class deletion.
func (r *SubmissionRepository) CountByClass(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions s
        JOIN assignments a ON a.id = s.assignment_id
        WHERE a.class_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count class submissions: %w", err)
	}
	return count, nil
}
