package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclass/classroom-api/internal/models"
)

// ClassRepository handles persistence of classes and their rooms.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create persists a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, description, unique_code, owner_id, created_at, updated_at)
        VALUES (:id, :name, :description, :unique_code, :owner_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update applies a partial update to name and description.
func (r *ClassRepository) Update(ctx context.Context, id string, name *string, description *string) error {
	sets := []string{"updated_at = $2"}
	args := []interface{}{id, time.Now().UTC()}
	if name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *name)
	}
	if description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *description)
	}
	query := fmt.Sprintf("UPDATE classes SET %s WHERE id = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class. Enrollments, materials, assignments and rooms are
// removed by the storage-level cascade.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// FindByID returns a class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, description, unique_code, owner_id, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByCode resolves a class by its join code.
func (r *ClassRepository) FindByCode(ctx context.Context, code string) (*models.Class, error) {
	const query = `SELECT id, name, description, unique_code, owner_id, created_at, updated_at FROM classes WHERE unique_code = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, code); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetailByID returns a class with the denormalized owner name.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT c.id, c.name, c.description, c.unique_code, c.owner_id, c.created_at, c.updated_at,
        u.full_name AS teacher_name
        FROM classes c
        JOIN users u ON u.id = c.owner_id
        WHERE c.id = $1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CodeExists reports whether a join code is already taken.
func (r *ClassRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM classes WHERE unique_code = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class code: %w", err)
	}
	return true, nil
}

// ListByOwner returns the classes owned by a teacher.
func (r *ClassRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Class, error) {
	const query = `SELECT id, name, description, unique_code, owner_id, created_at, updated_at
        FROM classes WHERE owner_id = $1 ORDER BY created_at DESC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, ownerID); err != nil {
		return nil, fmt.Errorf("list own classes: %w", err)
	}
	return classes, nil
}

// ListOthers returns classes owned by other teachers, with owner names.
func (r *ClassRepository) ListOthers(ctx context.Context, ownerID string) ([]models.ClassOverview, error) {
	const query = `SELECT c.id, c.name, c.description, c.unique_code, c.owner_id, c.created_at, c.updated_at,
        u.full_name AS teacher_name, FALSE AS is_joined, 0 AS room_count
        FROM classes c
        JOIN users u ON u.id = c.owner_id
        WHERE c.owner_id <> $1 ORDER BY c.created_at DESC`
	var classes []models.ClassOverview
	if err := r.db.SelectContext(ctx, &classes, query, ownerID); err != nil {
		return nil, fmt.Errorf("list other classes: %w", err)
	}
	return classes, nil
}

// ListAvailable returns every class annotated with whether the student has
// joined it, via a correlated existence check.
func (r *ClassRepository) ListAvailable(ctx context.Context, studentID string) ([]models.ClassOverview, error) {
	const query = `SELECT c.id, c.name, c.description, c.unique_code, c.owner_id, c.created_at, c.updated_at,
        u.full_name AS teacher_name,
        EXISTS (SELECT 1 FROM enrollments e WHERE e.class_id = c.id AND e.student_id = $1) AS is_joined,
        0 AS room_count
        FROM classes c
        JOIN users u ON u.id = c.owner_id
        ORDER BY c.created_at DESC`
	var classes []models.ClassOverview
	if err := r.db.SelectContext(ctx, &classes, query, studentID); err != nil {
		return nil, fmt.Errorf("list available classes: %w", err)
	}
	return classes, nil
}

// ListEnrolled returns the classes a student has joined, annotated with the
// per-class room count.
func (r *ClassRepository) ListEnrolled(ctx context.Context, studentID string) ([]models.ClassOverview, error) {
	const query = `SELECT c.id, c.name, c.description, c.unique_code, c.owner_id, c.created_at, c.updated_at,
        u.full_name AS teacher_name, TRUE AS is_joined,
        (SELECT COUNT(*) FROM rooms r WHERE r.class_id = c.id) AS room_count
        FROM classes c
        JOIN users u ON u.id = c.owner_id
        JOIN enrollments e ON e.class_id = c.id
        WHERE e.student_id = $1
        ORDER BY e.enrolled_at DESC`
	var classes []models.ClassOverview
	if err := r.db.SelectContext(ctx, &classes, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrolled classes: %w", err)
	}
	return classes, nil
}

// CreateRoom adds a room to a class.
func (r *ClassRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO rooms (id, class_id, name, created_at) VALUES (:id, :class_id, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// FindRoomByID returns a room by its ID.
func (r *ClassRepository) FindRoomByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, class_id, name, created_at FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// DeleteRoom removes a room.
func (r *ClassRepository) DeleteRoom(ctx context.Context, id string) error {
	const query = `DELETE FROM rooms WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// ListRooms returns the rooms of a class.
func (r *ClassRepository) ListRooms(ctx context.Context, classID string) ([]models.Room, error) {
	const query = `SELECT id, class_id, name, created_at FROM rooms WHERE class_id = $1 ORDER BY created_at`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, classID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
