package tasks

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a task or user id does not exist.
var ErrNotFound = errors.New("tasks: not found")

// ErrPermission is returned when the acting user may not perform the
// mutation on the task.
var ErrPermission = errors.New("tasks: permission denied")

// ErrValidation is returned for structurally invalid input.
var ErrValidation = errors.New("tasks: invalid input")

// Task is one shared task.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedBy   string     `json:"created_by"`
	AssignedTo  string     `json:"assigned_to"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Collaborator is one of the two allow-listed positions.
type Collaborator struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Position int       `json:"position"` // 1 or 2
	CreatedAt time.Time `json:"created_at"`
}

// AppUser is a registered profile row.
type AppUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Admin bool   `json:"is_admin"`
}

// CreateTaskData is the input for creating a task.
type CreateTaskData struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  string     `json:"assigned_to"`
}

// UpdateTaskData is the input for editing a task. Nil fields are left
// unchanged.
type UpdateTaskData struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
}

// CanEdit reports whether user may edit or delete the task.
// Only the creator may.
func (t Task) CanEdit(userID string) bool {
	return t.CreatedBy == userID
}

// CanComplete reports whether user may toggle the task's completion.
// The assignee or the creator may.
func (t Task) CanComplete(userID string) bool {
	return t.AssignedTo == userID || t.CreatedBy == userID
}

// ChangeKind labels entries on the change feed.
type ChangeKind string

const (
	ChangeCreated       ChangeKind = "task_created"
	ChangeUpdated       ChangeKind = "task_updated"
	ChangeDeleted       ChangeKind = "task_deleted"
	ChangeCollaborators ChangeKind = "collaborators_changed"
)

// Change is one mutation published to live-update consumers.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Task *Task      `json:"task,omitempty"`
}
