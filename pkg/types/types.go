package types

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by stores when a record does not exist
	ErrNotFound = errors.New("not found")
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusClosed     TaskStatus = "closed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Active reports whether a task in this status still occupies its assignees' schedule
func (s TaskStatus) Active() bool {
	switch s {
	case TaskStatusDone, TaskStatusClosed, TaskStatusCancelled:
		return false
	default:
		return true
	}
}

// Task is the scheduling view of a project task.
// The CRUD layer owns the full document; this service reads the window and
// assignees and writes back the conflict flag.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	ProjectID     string     `json:"projectId,omitempty"`
	ModuleID      string     `json:"moduleId,omitempty"`
	AssigneeIDs   []string   `json:"assigneeIds,omitempty"`
	Status        TaskStatus `json:"status"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	HasConflict   bool       `json:"hasConflict"`
	ConflictsWith []string   `json:"conflictsWith,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// HasWindow reports whether both ends of the schedule window are set
func (t *Task) HasWindow() bool {
	return t.StartDate != nil && t.Deadline != nil
}

// Severity ranks notifications
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Critical reports whether the severity warrants an email digest
func (s Severity) Critical() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Notification is a persisted per-user notification
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Severity  Severity   `json:"severity"`
	Link      string     `json:"link,omitempty"`
	Read      bool       `json:"read"`
	EmailedAt *time.Time `json:"emailedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// User is the minimal user record needed for email delivery
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
