package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/policy"
	"github.com/openclass/classroom-api/internal/repository"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Code generation is a bounded-attempt loop: a handful of draws at the default
// length, then a fallback to a larger code space, then failure. Collisions are
// vanishingly rare while the code space dwarfs the class count, but the loop
// must not spin forever under adversarial load.
const (
	codeLength         = 6
	codeFallbackLength = 8
	codeAttempts       = 5
)

type classRepository interface {
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, id string, name *string, description *string) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Class, error)
	ListOthers(ctx context.Context, ownerID string) ([]models.ClassOverview, error)
	ListAvailable(ctx context.Context, studentID string) ([]models.ClassOverview, error)
	ListEnrolled(ctx context.Context, studentID string) ([]models.ClassOverview, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	FindRoomByID(ctx context.Context, id string) (*models.Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context, classID string) ([]models.Room, error)
}

type classEnrollmentChecker interface {
	Exists(ctx context.Context, classID, studentID string) (bool, error)
}

type classSubmissionCounter interface {
	CountByClass(ctx context.Context, classID string) (int, error)
}

type classMaterialLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.Material, error)
}

type classAssignmentLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.Assignment, error)
}

// CreateClassRequest describes class creation.
type CreateClassRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// UpdateClassRequest carries a partial update; nil fields are untouched.
type UpdateClassRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// CreateRoomRequest describes room creation within a class.
type CreateRoomRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// ClassDetails is the policy-gated detail view: owner name plus nested rooms
// and the class content.
type ClassDetails struct {
	models.ClassDetail
	Rooms       []models.Room       `json:"rooms"`
	Materials   []models.Material   `json:"materials"`
	Assignments []models.Assignment `json:"assignments"`
}

// ClassService orchestrates the classroom registry.
type ClassService struct {
	repo        classRepository
	enrollments classEnrollmentChecker
	submissions classSubmissionCounter
	materials   classMaterialLister
	assignments classAssignmentLister
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, enrollments classEnrollmentChecker, submissions classSubmissionCounter, materials classMaterialLister, assignments classAssignmentLister, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		repo:        repo,
		enrollments: enrollments,
		submissions: submissions,
		materials:   materials,
		assignments: assignments,
		validator:   validate,
		logger:      logger,
	}
}

// Create registers a new class owned by the acting teacher.
func (s *ClassService) Create(ctx context.Context, actor policy.Actor, req CreateClassRequest) (*models.Class, error) {
	if err := policy.CanCreateClass(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}

	code, err := s.reserveCode(ctx)
	if err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:        req.Name,
		Description: req.Description,
		UniqueCode:  code,
		OwnerID:     actor.ID,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race for the code between the existence check and the
			// insert; the unique index caught it.
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate class code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("owner_id", actor.ID))
	return class, nil
}

// Update applies a partial update, owner-only.
func (s *ClassService) Update(ctx context.Context, actor policy.Actor, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class, err := s.loadClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, req.Name, req.Description); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return s.loadClass(ctx, id)
}

// Delete removes a class, owner-only. Deletion is refused while any contained
// assignment has submissions; the storage cascade would drop them silently.
func (s *ClassService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	class, err := s.loadClass(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return err
	}
	count, err := s.submissions.CountByClass(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrHasSubmissions, "class has assignments with submissions and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.logger.Info("class deleted", zap.String("class_id", id), zap.String("owner_id", actor.ID))
	return nil
}

// Details returns the policy-gated detail view with owner name and rooms.
func (s *ClassService) Details(ctx context.Context, actor policy.Actor, id string) (*ClassDetails, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	enrolled, err := s.enrolled(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := policy.CanViewClass(actor, enrolled); err != nil {
		return nil, err
	}
	rooms, err := s.repo.ListRooms(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	materials, err := s.materials.ListByClass(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load materials")
	}
	assignments, err := s.assignments.ListByClass(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	return &ClassDetails{
		ClassDetail: *detail,
		Rooms:       rooms,
		Materials:   materials,
		Assignments: assignments,
	}, nil
}

// ListMine returns the acting teacher's classes.
func (s *ClassService) ListMine(ctx context.Context, actor policy.Actor) ([]models.Class, error) {
	if err := policy.CanCreateClass(actor); err != nil {
		return nil, err
	}
	classes, err := s.repo.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// ListOthers returns classes owned by other teachers.
func (s *ClassService) ListOthers(ctx context.Context, actor policy.Actor) ([]models.ClassOverview, error) {
	if err := policy.CanCreateClass(actor); err != nil {
		return nil, err
	}
	classes, err := s.repo.ListOthers(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// ListAvailable returns every class annotated with is_joined for a student.
func (s *ClassService) ListAvailable(ctx context.Context, actor policy.Actor) ([]models.ClassOverview, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can browse available classes")
	}
	classes, err := s.repo.ListAvailable(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// ListEnrolled returns the classes a student has joined, with room counts.
func (s *ClassService) ListEnrolled(ctx context.Context, actor policy.Actor) ([]models.ClassOverview, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have enrolled classes")
	}
	classes, err := s.repo.ListEnrolled(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// CreateRoom adds a room to an owned class.
func (s *ClassService) CreateRoom(ctx context.Context, actor policy.Actor, classID string, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid room payload")
	}
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return nil, err
	}
	room := &models.Room{ClassID: classID, Name: req.Name}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return room, nil
}

// DeleteRoom removes a room from an owned class.
func (s *ClassService) DeleteRoom(ctx context.Context, actor policy.Actor, classID, roomID string) error {
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return err
	}
	if err := policy.CanManageClass(actor, class); err != nil {
		return err
	}
	room, err := s.repo.FindRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if room.ClassID != classID {
		return appErrors.Clone(appErrors.ErrNotFound, "room not found")
	}
	if err := s.repo.DeleteRoom(ctx, roomID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	return nil
}

func (s *ClassService) loadClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *ClassService) enrolled(ctx context.Context, classID string, actor policy.Actor) (bool, error) {
	if actor.Role != models.RoleStudent {
		return false, nil
	}
	enrolled, err := s.enrollments.Exists(ctx, classID, actor.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	return enrolled, nil
}

func (s *ClassService) reserveCode(ctx context.Context) (string, error) {
	for _, length := range []int{codeLength, codeFallbackLength} {
		for attempt := 0; attempt < codeAttempts; attempt++ {
			code, err := randomCode(length)
			if err != nil {
				return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate class code")
			}
			taken, err := s.repo.CodeExists(ctx, code)
			if err != nil {
				return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class code")
			}
			if !taken {
				return code, nil
			}
		}
		if length != codeFallbackLength {
			s.logger.Warn("class code space congested, widening", zap.Int("length", length))
		}
	}
	return "", appErrors.Clone(appErrors.ErrInternal, "failed to allocate a unique class code")
}

func randomCode(length int) (string, error) {
	// Rejection sampling keeps the draw uniform; 256 is not a multiple of
	// the alphabet size, so a plain modulo would skew toward early letters.
	const limit = 256 - 256%len(codeAlphabet)
	code := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(code) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == length {
				break
			}
		}
	}
	return string(code), nil
}
