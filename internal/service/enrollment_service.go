package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/policy"
	"github.com/openclass/classroom-api/internal/repository"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
)

type enrollmentRepository interface {
	Exists(ctx context.Context, classID, studentID string) (bool, error)
	Join(ctx context.Context, enrollment *models.Enrollment) error
	Leave(ctx context.Context, classID, studentID string) (bool, error)
	ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

type enrollmentClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByCode(ctx context.Context, code string) (*models.Class, error)
}

// JoinClassRequest redeems a class join code.
type JoinClassRequest struct {
	Code string `json:"code" validate:"required,len=6|len=8"`
}

// EnrollmentService orchestrates the join/leave workflow.
type EnrollmentService struct {
	repo      enrollmentRepository
	classes   enrollmentClassReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes enrollmentClassReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// Join enrolls the acting student into the class behind the code. The
// existence pre-check produces the friendly conflict error; the transactional
// insert and the unique constraint are what actually hold the invariant.
func (s *EnrollmentService) Join(ctx context.Context, actor policy.Actor, req JoinClassRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid join payload")
	}

	class, err := s.classes.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(req.Code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no class matches this code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class code")
	}

	enrolled, err := s.repo.Exists(ctx, class.ID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if err := policy.CanJoinClass(actor, enrolled); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{ClassID: class.ID, StudentID: actor.ID}
	if err := s.repo.Join(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.ErrAlreadyEnrolled
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("student joined class",
		zap.String("class_id", class.ID),
		zap.String("student_id", actor.ID))
	return enrollment, nil
}

// Leave removes the acting student's enrollment.
func (s *EnrollmentService) Leave(ctx context.Context, actor policy.Actor, classID string) error {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	enrolled, err := s.repo.Exists(ctx, classID, actor.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if err := policy.CanLeaveClass(actor, enrolled); err != nil {
		return err
	}

	removed, err := s.repo.Leave(ctx, classID, actor.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	if !removed {
		// Raced with another leave; the row was already gone.
		return appErrors.ErrNotEnrolled
	}

	s.logger.Info("student left class",
		zap.String("class_id", classID),
		zap.String("student_id", actor.ID))
	return nil
}

// Roster returns the class roster for its owning teacher.
func (s *EnrollmentService) Roster(ctx context.Context, actor policy.Actor, classID string) ([]models.EnrollmentDetail, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return nil, err
	}
	roster, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	return roster, nil
}
