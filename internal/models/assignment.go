package models

import "time"

// Assignment is gradable work posted to a class. An assignment that has
// received submissions cannot be deleted; the content catalog enforces this
// before the storage cascade can run.
type Assignment struct {
	ID          string     `db:"id" json:"id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	FileURL     *string    `db:"file_url" json:"file_url,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// IsPastDue reports whether the deadline has passed at the reference time.
// Assignments without a due date never expire.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueDate != nil && reference.After(*a.DueDate)
}
