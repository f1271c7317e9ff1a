package models

import "time"

// Статусы задачи
const (
	TaskStatusNew        = "new"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// ValidTaskStatus проверяет, что статус задачи один из допустимых
func ValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusNew, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task представляет задачу пользователя
type Task struct {
	ID          string     `json:"id"`          // UUID задачи
	UserID      string     `json:"user_id"`     // ID владельца
	Title       string     `json:"title"`       // заголовок задачи
	Description string     `json:"description"` // описание (может быть пустым)
	Status      string     `json:"status"`      // new | in_progress | done
	DueDate     *time.Time `json:"due_date"`    // срок выполнения (nil если не задан)
	CreatedAt   time.Time  `json:"created_at"`  // время создания
	UpdatedAt   time.Time  `json:"updated_at"`  // время последнего обновления
}
