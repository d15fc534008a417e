package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/policy"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
)

type materialRepository interface {
	Create(ctx context.Context, material *models.Material) error
	Update(ctx context.Context, id string, title, description, content *string) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Material, error)
	ListByClass(ctx context.Context, classID string) ([]models.Material, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// CreateMaterialRequest describes material creation.
type CreateMaterialRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Content     string `json:"content" validate:"required"`
}

// UpdateMaterialRequest carries a partial update; nil fields are untouched.
type UpdateMaterialRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Content     *string `json:"content" validate:"omitempty,min=1"`
}

// MaterialService orchestrates the material side of the content catalog.
type MaterialService struct {
	repo        materialRepository
	classes     classReader
	enrollments classEnrollmentChecker
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMaterialService constructs MaterialService.
func NewMaterialService(repo materialRepository, classes classReader, enrollments classEnrollmentChecker, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterialService{repo: repo, classes: classes, enrollments: enrollments, validator: validate, logger: logger}
}

// Create posts a material to an owned class.
func (s *MaterialService) Create(ctx context.Context, actor policy.Actor, classID string, req CreateMaterialRequest) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid material payload")
	}
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return nil, err
	}
	material := &models.Material{
		ClassID:     classID,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
	}
	if err := s.repo.Create(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create material")
	}
	return material, nil
}

// Update applies a partial update, owner-only.
func (s *MaterialService) Update(ctx context.Context, actor policy.Actor, id string, req UpdateMaterialRequest) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid material payload")
	}
	material, err := s.loadMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	class, err := s.loadClass(ctx, material.ClassID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, req.Title, req.Description, req.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update material")
	}
	return s.loadMaterial(ctx, id)
}

// Delete removes a material, owner-only.
func (s *MaterialService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	material, err := s.loadMaterial(ctx, id)
	if err != nil {
		return err
	}
	class, err := s.loadClass(ctx, material.ClassID)
	if err != nil {
		return err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	return nil
}

// Get returns a material, readable by any teacher or an enrolled student.
func (s *MaterialService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Material, error) {
	material, err := s.loadMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, material.ClassID); err != nil {
		return nil, err
	}
	return material, nil
}

// ListByClass returns a class's materials under the same read rule.
func (s *MaterialService) ListByClass(ctx context.Context, actor policy.Actor, classID string) ([]models.Material, error) {
	if _, err := s.loadClass(ctx, classID); err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, classID); err != nil {
		return nil, err
	}
	materials, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, nil
}

func (s *MaterialService) authorizeRead(ctx context.Context, actor policy.Actor, classID string) error {
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

func (s *MaterialService) loadClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *MaterialService) loadMaterial(ctx context.Context, id string) (*models.Material, error) {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	return material, nil
}
