package models

import "time"

// User представляет пользователя в системе
type User struct {
	ID           string    `json:"id"`         // UUID пользователя
	Email        string    `json:"email"`      // уникальный email
	PasswordHash string    `json:"-"`          // bcrypt хеш пароля, никогда не сериализуется
	CreatedAt    time.Time `json:"created_at"` // время создания
}

// RefreshToken представляет refresh token пользователя.
// Токен одноразовый: после ротации или logout флаг Revoked выставляется
// в true и обратно не сбрасывается. Записи никогда не удаляются
// (хранятся для аудита).
type RefreshToken struct {
	ID        string     `json:"id"`         // UUID записи токена
	Token     string     `json:"token"`      // opaque строка токена (64 случайных байта, base64)
	UserID    string     `json:"user_id"`    // ID пользователя
	ExpiresAt time.Time  `json:"expires_at"` // время истечения
	CreatedAt time.Time  `json:"created_at"` // время создания
	Revoked   bool       `json:"revoked"`    // отозван ли токен
	RevokedAt *time.Time `json:"revoked_at"` // время отзыва (nil если активен)
}
