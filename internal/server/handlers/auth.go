package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/taskkeeper/internal/server/auth"
	"github.com/iudanet/taskkeeper/internal/validation"
	"github.com/iudanet/taskkeeper/pkg/api"
)

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger  *slog.Logger
	service *auth.Service
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового пользователя
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Парсим request body
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode register request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Валидация email и пароля
	if err := validation.ValidateEmail(req.Email); err != nil {
		h.logger.WarnContext(ctx, "invalid email", slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pair, err := h.service.Register(ctx, req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.sendJSON(w, tokenResponse(pair), http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
// Аутентификация пользователя
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Парсим request body
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		h.sendError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	pair, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.sendJSON(w, tokenResponse(pair), http.StatusOK)
}

// Refresh обрабатывает POST /api/v1/auth/refresh
// Ротация refresh token: старый токен отзывается, выдается новая пара
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode refresh request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.RefreshToken == "" {
		h.sendError(w, "refresh_token is required", http.StatusBadRequest)
		return
	}

	pair, err := h.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.sendJSON(w, tokenResponse(pair), http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
// Отзыв refresh token. Идемпотентен: повторный logout тоже отвечает 204
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode logout request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Logout(ctx, req.RefreshToken); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me обрабатывает GET /api/v1/auth/me
// Профиль текущего пользователя по access token
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.CurrentUser(ctx, userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := api.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// handleServiceError транслирует ошибки сервиса в HTTP статусы.
// Все три отказа по refresh token (невалидный, отозванный, истекший)
// наружу выглядят одинаково, точная причина остается в логах
func (h *AuthHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, auth.ErrDuplicateUser):
		h.logger.WarnContext(ctx, "registration rejected: duplicate user")
		h.sendError(w, "user already exists", http.StatusBadRequest)
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.logger.WarnContext(ctx, "login rejected: invalid credentials")
		h.sendError(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrInvalidToken):
		h.logger.WarnContext(ctx, "refresh rejected: token unknown")
		h.sendError(w, "invalid refresh token", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrTokenRevoked):
		h.logger.WarnContext(ctx, "refresh rejected: token revoked")
		h.sendError(w, "invalid refresh token", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrTokenExpired):
		h.logger.WarnContext(ctx, "refresh rejected: token expired")
		h.sendError(w, "invalid refresh token", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrUserNotFound):
		h.logger.WarnContext(ctx, "user not found")
		h.sendError(w, "user not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrStoreUnavailable):
		h.logger.ErrorContext(ctx, "storage unavailable", slog.Any("error", err))
		h.sendError(w, "service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
	}
}

func tokenResponse(pair *auth.TokenPair) api.TokenResponse {
	return api.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}
}

// sendJSON отправляет JSON ответ
func (h *AuthHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h *AuthHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}
