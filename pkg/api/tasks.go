package api

import "time"

// TaskRequest представляет запрос на создание или обновление задачи
type TaskRequest struct {
	Title       string     `json:"title"`              // заголовок задачи
	Description string     `json:"description"`        // описание
	Status      string     `json:"status,omitempty"`   // new | in_progress | done
	DueDate     *time.Time `json:"due_date,omitempty"` // срок выполнения
}

// TaskResponse представляет задачу в ответе API
type TaskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskListResponse представляет страницу списка задач
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int            `json:"total"`  // общее количество задач по фильтру
	Limit  int            `json:"limit"`  // размер страницы
	Offset int            `json:"offset"` // смещение
}
