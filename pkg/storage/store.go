package storage

import (
	"time"

	"github.com/managemate/mmrt/pkg/types"
)

// TaskPage is one bounded slice of the task collection in key order
type TaskPage struct {
	Tasks []*types.Task
	// Corrupt holds keys whose records could not be decoded
	Corrupt []string
	// Next is the cursor to pass to the following call, empty when exhausted
	Next string
}

// Store defines the persistence interface the realtime service depends on.
// It is the narrow view of the tracker's document store this service needs.
type Store interface {
	// Tasks
	CreateTask(task *types.Task) error
	GetTask(id string) (*types.Task, error)
	UpdateTask(task *types.Task) error
	ListTasksPage(afterID string, limit int) (*TaskPage, error)
	PatchTaskConflict(id string, hasConflict bool, conflictsWith []string) (*types.Task, error)
	AssignTask(id string, assigneeIDs []string) (*types.Task, error)

	// Notifications
	CreateNotification(n *types.Notification) error
	GetNotification(id string) (*types.Notification, error)
	ListPendingCritical() ([]*types.Notification, error)
	MarkNotificationsEmailed(ids []string, at time.Time) error

	// Users
	CreateUser(user *types.User) error
	GetUser(id string) (*types.User, error)

	// Utility
	Ping() error
	Close() error
}
