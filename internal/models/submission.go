package models

import "time"

// SubmissionStatus tracks the grading state machine. There is no terminal
// state: a submission can always be resubmitted or re-graded.
type SubmissionStatus string

const (
	SubmissionStatusPending SubmissionStatus = "PENDING"
	SubmissionStatusGraded  SubmissionStatus = "GRADED"
)

// Submission is a student's uploaded artifact against one assignment. At most
// one row exists per (assignment, student); resubmission overwrites it.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	FileURL      string           `db:"file_url" json:"file_url"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Score        *int             `db:"score" json:"score,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	GradedAt     *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
}

// SubmissionDetail enriches Submission with the student's name for teacher
// listings and reports.
type SubmissionDetail struct {
	Submission
	StudentName string `db:"student_name" json:"student_name"`
}
