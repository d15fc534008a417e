package models

import "time"

// Class represents a teacher-owned classroom discoverable by its join code.
type Class struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	UniqueCode  string    `db:"unique_code" json:"unique_code"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with the denormalized owner name.
type ClassDetail struct {
	Class
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// ClassOverview is a listing row annotated for the requesting student.
type ClassOverview struct {
	Class
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	IsJoined    bool   `db:"is_joined" json:"is_joined"`
	RoomCount   int    `db:"room_count" json:"room_count"`
}

// Room is a named space inside a class. Rooms live and die with their class.
type Room struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
