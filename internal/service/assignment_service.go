package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/policy"
	"github.com/openclass/classroom-api/internal/repository"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, id string, update repository.AssignmentUpdate) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByClass(ctx context.Context, classID string) ([]models.Assignment, error)
}

type assignmentSubmissionCounter interface {
	CountByAssignment(ctx context.Context, assignmentID string) (int, error)
}

// CreateAssignmentRequest describes assignment creation. The optional document
// arrives separately as a multipart upload.
type CreateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=2000"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateAssignmentRequest carries a partial update; nil fields are untouched.
// ClearDueDate removes an existing deadline.
type UpdateAssignmentRequest struct {
	Title        *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

// AssignmentService orchestrates the assignment side of the content catalog.
type AssignmentService struct {
	repo        assignmentRepository
	classes     classReader
	enrollments classEnrollmentChecker
	submissions assignmentSubmissionCounter
	storage     uploadStorage
	maxUpload   int64
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(repo assignmentRepository, classes classReader, enrollments classEnrollmentChecker, submissions assignmentSubmissionCounter, store uploadStorage, maxUpload int64, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:        repo,
		classes:     classes,
		enrollments: enrollments,
		submissions: submissions,
		storage:     store,
		maxUpload:   maxUpload,
		validator:   validate,
		logger:      logger,
	}
}

// Create posts an assignment to an owned class, storing the optional document
// before the database write.
func (s *AssignmentService) Create(ctx context.Context, actor policy.Actor, classID string, req CreateAssignmentRequest, upload *Upload) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ClassID:     classID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if upload != nil {
		relPath, err := saveUpload(ctx, s.storage, s.maxUpload, "assignments", classID, upload)
		if err != nil {
			return nil, err
		}
		assignment.FileURL = &relPath
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		s.discardFile(assignment.FileURL)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Update applies a partial update, owner-only. A new document replaces and
// removes the previous one.
func (s *AssignmentService) Update(ctx context.Context, actor policy.Actor, id string, req UpdateAssignmentRequest, upload *Upload) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	assignment, err := s.loadAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	class, err := s.loadClass(ctx, assignment.ClassID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return nil, err
	}

	update := repository.AssignmentUpdate{Title: req.Title, Description: req.Description}
	if req.ClearDueDate {
		update.SetDueDate = true
	} else if req.DueDate != nil {
		update.SetDueDate = true
		update.DueDate = req.DueDate
	}

	var newFile *string
	if upload != nil {
		relPath, err := saveUpload(ctx, s.storage, s.maxUpload, "assignments", assignment.ClassID, upload)
		if err != nil {
			return nil, err
		}
		newFile = &relPath
		update.SetFileURL = true
		update.FileURL = newFile
	}

	if err := s.repo.Update(ctx, id, update); err != nil {
		s.discardFile(newFile)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	if newFile != nil {
		s.discardFile(assignment.FileURL)
	}
	return s.loadAssignment(ctx, id)
}

// Delete removes an assignment, owner-only. Blocked entirely while any
// submission exists; there is no force-delete path.
func (s *AssignmentService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	assignment, err := s.loadAssignment(ctx, id)
	if err != nil {
		return err
	}
	class, err := s.loadClass(ctx, assignment.ClassID)
	if err != nil {
		return err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return err
	}
	count, err := s.submissions.CountByAssignment(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
	}
	if count > 0 {
		return appErrors.ErrHasSubmissions
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	s.discardFile(assignment.FileURL)
	return nil
}

// Get returns an assignment, readable by any teacher or an enrolled student.
func (s *AssignmentService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Assignment, error) {
	assignment, err := s.loadAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, assignment.ClassID); err != nil {
		return nil, err
	}
	return assignment, nil
}

// ListByClass returns a class's assignments under the same read rule.
func (s *AssignmentService) ListByClass(ctx context.Context, actor policy.Actor, classID string) ([]models.Assignment, error) {
	if _, err := s.loadClass(ctx, classID); err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, classID); err != nil {
		return nil, err
	}
	assignments, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

func (s *AssignmentService) authorizeRead(ctx context.Context, actor policy.Actor, classID string) error {
	enrolled := false
	if actor.Role == models.RoleStudent {
		var err error
		enrolled, err = s.enrollments.Exists(ctx, classID, actor.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
	}
	return policy.CanViewClass(actor, enrolled)
}

func (s *AssignmentService) loadClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *AssignmentService) loadAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

func (s *AssignmentService) discardFile(relPath *string) {
	if relPath == nil || *relPath == "" {
		return
	}
	if err := s.storage.Delete(*relPath); err != nil {
		s.logger.Warn("failed to remove stored file", zap.String("path", *relPath), zap.Error(err))
	}
}
