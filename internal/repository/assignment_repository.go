package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclass/classroom-api/internal/models"
)

// AssignmentRepository handles persistence of assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create persists a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, class_id, title, description, due_date, file_url, created_at, updated_at)
        VALUES (:id, :class_id, :title, :description, :due_date, :file_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// AssignmentUpdate carries the partial-update fields. A nil pointer leaves the
// column untouched; SetDueDate/SetFileURL allow writing NULL explicitly.
type AssignmentUpdate struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	SetDueDate  bool
	FileURL     *string
	SetFileURL  bool
}

// Update applies a partial update.
func (r *AssignmentRepository) Update(ctx context.Context, id string, update AssignmentUpdate) error {
	sets := []string{"updated_at = $2"}
	args := []interface{}{id, time.Now().UTC()}
	if update.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)+1))
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *update.Description)
	}
	if update.SetDueDate {
		sets = append(sets, fmt.Sprintf("due_date = $%d", len(args)+1))
		args = append(args, update.DueDate)
	}
	if update.SetFileURL {
		sets = append(sets, fmt.Sprintf("file_url = $%d", len(args)+1))
		args = append(args, update.FileURL)
	}
	query := fmt.Sprintf("UPDATE assignments SET %s WHERE id = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment. Callers must have verified that no submission
// exists; the storage cascade would otherwise drop them silently.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// FindByID returns an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, class_id, title, description, due_date, file_url, created_at, updated_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByClass returns the assignments of a class.
func (r *AssignmentRepository) ListByClass(ctx context.Context, classID string) ([]models.Assignment, error) {
	const query = `SELECT id, class_id, title, description, due_date, file_url, created_at, updated_at
        FROM assignments WHERE class_id = $1 ORDER BY created_at DESC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, classID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}
