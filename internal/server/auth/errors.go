package auth

import "errors"

// Закрытый набор исходов операций аутентификации.
// HTTP слой отображает каждый в статус код; внутри они различимы
// для диагностики, наружу Revoked/Expired/Invalid схлопываются
// в один непрозрачный ответ.
var (
	// ErrDuplicateUser indicates that email is already registered
	ErrDuplicateUser = errors.New("user already exists")

	// ErrInvalidCredentials indicates unknown email or wrong password.
	// Единый исход для обоих случаев, чтобы не раскрывать существование email.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates that refresh token is unknown
	ErrInvalidToken = errors.New("invalid refresh token")

	// ErrTokenRevoked indicates that refresh token was already revoked
	ErrTokenRevoked = errors.New("refresh token revoked")

	// ErrTokenExpired indicates that refresh token is past its expiry
	ErrTokenExpired = errors.New("refresh token expired")

	// ErrUserNotFound indicates that user row is absent
	ErrUserNotFound = errors.New("user not found")

	// ErrStoreUnavailable indicates a transient persistence failure.
	// Отличается от "not found": ответ клиенту 5xx, а не 401/404.
	ErrStoreUnavailable = errors.New("storage unavailable")
)
