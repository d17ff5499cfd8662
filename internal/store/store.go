package store

import (
	"context"
	"errors"

	"github.com/nhle/fossilsync/internal/model"
)

// ErrTaskNotFound is returned when no task matches a lookup.
var ErrTaskNotFound = errors.New("task not found")

// TaskFilter narrows task queries. Empty fields match everything.
type TaskFilter struct {
	Target string
	Status string
}

// SyncResult counts the changes applied by one SyncTarget call.
type SyncResult struct {
	Added     int
	Updated   int
	Completed int
}

// Changed reports whether the sync modified any task.
func (r SyncResult) Changed() bool {
	return r.Added+r.Updated+r.Completed > 0
}

// Store defines the persistence interface for synchronized tasks.
type Store interface {
	// SyncTarget reconciles the stored tasks of target with tasks, the
	// complete set of open issues it currently reports. Tasks are matched
	// by unique key: unseen keys are added, changed ones are updated and
	// pending tasks whose key is absent are completed. Applying the same
	// set twice changes nothing the second time.
	SyncTarget(ctx context.Context, target string, tasks []model.Task) (SyncResult, error)

	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	GetTaskByKey(ctx context.Context, target, uniqueKey string) (*model.Task, error)

	Close() error
}
