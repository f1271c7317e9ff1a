package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/storage"
	"github.com/iudanet/taskkeeper/internal/validation"
	"github.com/iudanet/taskkeeper/pkg/api"
)

// TaskHandler обрабатывает CRUD запросы по задачам
type TaskHandler struct {
	logger  *slog.Logger
	storage storage.TaskStorage
}

// NewTaskHandler создает новый handler для задач
func NewTaskHandler(logger *slog.Logger, taskStorage storage.TaskStorage) *TaskHandler {
	return &TaskHandler{
		logger:  logger,
		storage: taskStorage,
	}
}

// Create обрабатывает POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Парсим request body
	var req api.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode task request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateTaskTitle(req.Title); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Статус по умолчанию - new
	status := req.Status
	if status == "" {
		status = models.TaskStatusNew
	}
	if !models.ValidTaskStatus(status) {
		h.sendError(w, "invalid status", http.StatusBadRequest)
		return
	}

	now := time.Now()
	task := &models.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.storage.CreateTask(ctx, task); err != nil {
		h.logger.ErrorContext(ctx, "failed to create task", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "task created",
		slog.String("user_id", userID),
		slog.String("task_id", task.ID))

	h.sendJSON(w, taskResponse(task), http.StatusCreated)
}

// List обрабатывает GET /api/v1/tasks
// Поддерживает query параметры: status, sort, order, limit, offset
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	filter, err := parseTaskFilter(r)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tasks, total, err := h.storage.ListTasks(ctx, userID, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list tasks", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.TaskListResponse{
		Tasks:  make([]api.TaskResponse, 0, len(tasks)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, taskResponse(task))
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		h.sendError(w, "task id is required", http.StatusBadRequest)
		return
	}

	task, err := h.storage.GetTask(ctx, userID, taskID)
	if err != nil {
		h.handleStorageError(w, r, err)
		return
	}

	h.sendJSON(w, taskResponse(task), http.StatusOK)
}

// Update обрабатывает PUT /api/v1/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		h.sendError(w, "task id is required", http.StatusBadRequest)
		return
	}

	var req api.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode task request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateTaskTitle(req.Title); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Status != "" && !models.ValidTaskStatus(req.Status) {
		h.sendError(w, "invalid status", http.StatusBadRequest)
		return
	}

	// Читаем текущую версию, чтобы PUT не затирал created_at
	task, err := h.storage.GetTask(ctx, userID, taskID)
	if err != nil {
		h.handleStorageError(w, r, err)
		return
	}

	task.Title = req.Title
	task.Description = req.Description
	if req.Status != "" {
		task.Status = req.Status
	}
	task.DueDate = req.DueDate
	task.UpdatedAt = time.Now()

	if err := h.storage.UpdateTask(ctx, task); err != nil {
		h.handleStorageError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "task updated",
		slog.String("user_id", userID),
		slog.String("task_id", taskID))

	h.sendJSON(w, taskResponse(task), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		h.sendError(w, "task id is required", http.StatusBadRequest)
		return
	}

	if err := h.storage.DeleteTask(ctx, userID, taskID); err != nil {
		h.handleStorageError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "task deleted",
		slog.String("user_id", userID),
		slog.String("task_id", taskID))

	w.WriteHeader(http.StatusNoContent)
}

// handleStorageError транслирует ошибки хранилища задач в HTTP статусы.
// Чужая задача неотличима от несуществующей
func (h *TaskHandler) handleStorageError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	if errors.Is(err, storage.ErrTaskNotFound) {
		h.sendError(w, "task not found", http.StatusNotFound)
		return
	}
	h.logger.ErrorContext(ctx, "task storage error", slog.Any("error", err))
	h.sendError(w, "internal server error", http.StatusInternalServerError)
}

// parseTaskFilter собирает фильтр списка из query параметров
func parseTaskFilter(r *http.Request) (storage.TaskFilter, error) {
	q := r.URL.Query()
	filter := storage.TaskFilter{
		Status: q.Get("status"),
		SortBy: q.Get("sort"),
		Desc:   q.Get("order") == "desc",
	}

	if filter.Status != "" && !models.ValidTaskStatus(filter.Status) {
		return filter, errors.New("invalid status filter")
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 200 {
			return filter, errors.New("limit must be between 1 and 200")
		}
		filter.Limit = limit
	}

	if filter.Limit == 0 {
		filter.Limit = 50
	}

	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be non-negative")
		}
		filter.Offset = offset
	}

	return filter, nil
}

func taskResponse(task *models.Task) api.TaskResponse {
	return api.TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		DueDate:     task.DueDate,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// sendJSON отправляет JSON ответ
func (h *TaskHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h *TaskHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}
