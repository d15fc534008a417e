package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/policy"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
	"github.com/openclass/classroom-api/pkg/export"
)

type submissionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	Upsert(ctx context.Context, submission *models.Submission) error
	Grade(ctx context.Context, id string, score int, feedback *string, gradedAt time.Time) error
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error)
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// GradeSubmissionRequest carries the grading payload. The score range is
// enforced here, at the validation boundary, before the workflow runs.
type GradeSubmissionRequest struct {
	Score    int     `json:"score" validate:"gte=0,lte=100"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

// SubmitResult reports the stored submission and whether a new row was
// created, so the transport can answer 201 for first submits and 200 for
// resubmissions.
type SubmitResult struct {
	Submission *models.Submission
	Created    bool
}

// SubmissionService orchestrates the submission and grading workflow.
type SubmissionService struct {
	repo        submissionRepository
	assignments assignmentReader
	classes     classReader
	enrollments classEnrollmentChecker
	storage     uploadStorage
	maxUpload   int64
	csv         csvRenderer
	pdf         pdfRenderer
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(repo submissionRepository, assignments assignmentReader, classes classReader, enrollments classEnrollmentChecker, store uploadStorage, maxUpload int64, csv csvRenderer, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:        repo,
		assignments: assignments,
		classes:     classes,
		enrollments: enrollments,
		storage:     store,
		maxUpload:   maxUpload,
		csv:         csv,
		pdf:         pdf,
		validator:   validate,
		logger:      logger,
	}
}

// Submit stores a student's work against an assignment. A prior submission is
// overwritten in place and its status drops back to pending.
func (s *SubmissionService) Submit(ctx context.Context, actor policy.Actor, assignmentID string, upload *Upload) (*SubmitResult, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	enrolled := false
	if actor.Role == models.RoleStudent {
		enrolled, err = s.enrollments.Exists(ctx, assignment.ClassID, actor.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
	}
	if err := policy.CanSubmit(actor, assignment, enrolled, time.Now().UTC()); err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, appErrors.WithFields(
			appErrors.Clone(appErrors.ErrValidation, "a file is required"),
			map[string]string{"file": "this field is required"},
		)
	}

	prior, err := s.repo.FindByAssignmentAndStudent(ctx, assignmentID, actor.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	relPath, err := saveUpload(ctx, s.storage, s.maxUpload, "submissions", assignmentID, upload)
	if err != nil {
		return nil, err
	}

	submission := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    actor.ID,
		FileURL:      relPath,
		SubmittedAt:  time.Now().UTC(),
		Status:       models.SubmissionStatusPending,
	}
	if err := s.repo.Upsert(ctx, submission); err != nil {
		// Best-effort compensating cleanup; the file was written first.
		if derr := s.storage.Delete(relPath); derr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(derr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	if prior != nil && prior.FileURL != "" && prior.FileURL != relPath {
		if derr := s.storage.Delete(prior.FileURL); derr != nil {
			s.logger.Warn("failed to remove replaced upload", zap.String("path", prior.FileURL), zap.Error(derr))
		}
	}

	s.logger.Info("submission stored",
		zap.String("assignment_id", assignmentID),
		zap.String("student_id", actor.ID),
		zap.Bool("resubmission", prior != nil))
	return &SubmitResult{Submission: submission, Created: prior == nil}, nil
}

// Grade sets score, feedback and grading timestamp, unconditionally
// overwriting any prior grade. Grading is never gated by the due date.
func (s *SubmissionService) Grade(ctx context.Context, actor policy.Actor, submissionID string, req GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, actor, submission.AssignmentID); err != nil {
		return nil, err
	}

	gradedAt := time.Now().UTC()
	if err := s.repo.Grade(ctx, submissionID, req.Score, req.Feedback, gradedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}

	submission.Score = &req.Score
	submission.Feedback = req.Feedback
	submission.Status = models.SubmissionStatusGraded
	submission.GradedAt = &gradedAt

	s.logger.Info("submission graded",
		zap.String("submission_id", submissionID),
		zap.Int("score", req.Score),
		zap.String("teacher_id", actor.ID))
	return submission, nil
}

// List returns all submissions for an assignment, owner-only, with student
// names denormalized.
func (s *SubmissionService) List(ctx context.Context, actor policy.Actor, assignmentID string) ([]models.SubmissionDetail, error) {
	if err := s.authorizeOwner(ctx, actor, assignmentID); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// MySubmission returns the acting student's own submission for an assignment.
func (s *SubmissionService) MySubmission(ctx context.Context, actor policy.Actor, assignmentID string) (*models.Submission, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	enrolled := false
	if actor.Role == models.RoleStudent {
		enrolled, err = s.enrollments.Exists(ctx, assignment.ClassID, actor.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
	}
	if err := policy.CanViewClass(actor, enrolled); err != nil {
		return nil, err
	}
	submission, err := s.repo.FindByAssignmentAndStudent(ctx, assignmentID, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no submission yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

// ExportReport renders the submission list as CSV or PDF, owner-only.
func (s *SubmissionService) ExportReport(ctx context.Context, actor policy.Actor, assignmentID, format string) ([]byte, string, string, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, "", "", err
	}
	if err := s.authorizeOwnerOf(ctx, actor, assignment); err != nil {
		return nil, "", "", err
	}
	submissions, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Submitted At", "Status", "Score", "Feedback"},
	}
	for _, sub := range submissions {
		row := map[string]string{
			"Student":      sub.StudentName,
			"Submitted At": sub.SubmittedAt.UTC().Format(time.RFC3339),
			"Status":       string(sub.Status),
		}
		if sub.Score != nil {
			row["Score"] = strconv.Itoa(*sub.Score)
		}
		if sub.Feedback != nil {
			row["Feedback"] = *sub.Feedback
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	switch format {
	case "", "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
		}
		return content, "text/csv", fmt.Sprintf("submissions-%s.csv", assignmentID), nil
	case "pdf":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Submissions: %s", assignment.Title))
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
		}
		return content, "application/pdf", fmt.Sprintf("submissions-%s.pdf", assignmentID), nil
	default:
		return nil, "", "", appErrors.WithFields(
			appErrors.Clone(appErrors.ErrValidation, "unsupported export format"),
			map[string]string{"format": "must be one of: csv pdf"},
		)
	}
}

func (s *SubmissionService) authorizeOwner(ctx context.Context, actor policy.Actor, assignmentID string) error {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	return s.authorizeOwnerOf(ctx, actor, assignment)
}

func (s *SubmissionService) authorizeOwnerOf(ctx context.Context, actor policy.Actor, assignment *models.Assignment) error {
	class, err := s.classes.FindByID(ctx, assignment.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return policy.CanGradeSubmissions(actor, class)
}

func (s *SubmissionService) loadAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

func (s *SubmissionService) loadSubmission(ctx context.Context, id string) (*models.Submission, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}
