package storage

import (
	"context"

	"github.com/iudanet/taskkeeper/internal/models"
)

// TaskFilter describes filtering, sorting and pagination for task listing.
// SortBy is validated against a whitelist by the implementation.
type TaskFilter struct {
	Status string // фильтр по статусу, пустая строка - без фильтра
	SortBy string // created_at | due_date | title
	Desc   bool   // сортировка по убыванию
	Limit  int
	Offset int
}

// TaskStorage defines interface for task persistence.
// All operations are scoped to the owning user: a task of another user
// behaves exactly like a missing task.
type TaskStorage interface {
	// CreateTask creates a new task
	CreateTask(ctx context.Context, task *models.Task) error

	// GetTask retrieves task by ID for the given user
	// Returns ErrTaskNotFound if task doesn't exist or belongs to another user
	GetTask(ctx context.Context, userID, taskID string) (*models.Task, error)

	// ListTasks retrieves tasks of the user according to the filter.
	// Returns the page of tasks and the total count matching the filter.
	ListTasks(ctx context.Context, userID string, filter TaskFilter) ([]*models.Task, int, error)

	// UpdateTask updates title, description, status and due date of the task
	// Returns ErrTaskNotFound if task doesn't exist or belongs to another user
	UpdateTask(ctx context.Context, task *models.Task) error

	// DeleteTask deletes task by ID for the given user
	// Returns ErrTaskNotFound if task doesn't exist or belongs to another user
	DeleteTask(ctx context.Context, userID, taskID string) error
}
