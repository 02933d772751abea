//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../../mocks/mock_conflict.go -package=mocks

package conflict

import (
	"context"

	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/storage"
	"github.com/managemate/mmrt/pkg/types"
)

// TaskStore is the part of the store the detector reads and writes
type TaskStore interface {
	ListTasksPage(afterID string, limit int) (*storage.TaskPage, error)
	PatchTaskConflict(id string, hasConflict bool, conflictsWith []string) (*types.Task, error)
}

// Publisher sends conflict transitions to the message bus
type Publisher interface {
	PublishConflict(ctx context.Context, evt *events.ConflictEvent) error
}
