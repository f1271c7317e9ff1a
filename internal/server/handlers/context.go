package handlers

import "context"

// contextKey - отдельный тип для ключей контекста, чтобы избежать коллизий
type contextKey string

const (
	// UserIDKey ключ контекста с ID аутентифицированного пользователя
	UserIDKey contextKey = "user_id"
	// EmailKey ключ контекста с email аутентифицированного пользователя
	EmailKey contextKey = "email"
)

// GetUserID возвращает ID пользователя из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetEmail возвращает email пользователя из контекста запроса
func GetEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailKey).(string)
	return email, ok
}
