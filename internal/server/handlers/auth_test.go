package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/auth"
	"github.com/iudanet/taskkeeper/internal/server/jwt"
	"github.com/iudanet/taskkeeper/internal/server/storage"
)

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	users       map[string]*models.User // email -> User
	createError error
	getError    error
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	if m.createError != nil {
		return m.createError
	}
	if _, exists := m.users[user.Email]; exists {
		return storage.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	user, ok := m.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

// mockTokenStorage is a mock implementation of TokenStorage for testing
type mockTokenStorage struct {
	byToken map[string]*models.RefreshToken
	byID    map[string]*models.RefreshToken
}

func newMockTokenStorage() *mockTokenStorage {
	return &mockTokenStorage{
		byToken: make(map[string]*models.RefreshToken),
		byID:    make(map[string]*models.RefreshToken),
	}
}

func (m *mockTokenStorage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.byToken[token.Token] = token
	m.byID[token.ID] = token
	return nil
}

func (m *mockTokenStorage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.byToken[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return rt, nil
}

func (m *mockTokenStorage) RevokeRefreshToken(ctx context.Context, tokenID string) (bool, error) {
	rt, ok := m.byID[tokenID]
	if !ok || rt.Revoked {
		return false, nil
	}
	now := time.Now()
	rt.Revoked = true
	rt.RevokedAt = &now
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAuthHandler(t *testing.T) (*AuthHandler, *mockUserStorage, *mockTokenStorage) {
	t.Helper()
	users := newMockUserStorage()
	tokens := newMockTokenStorage()
	signer := jwt.NewService("test-secret", time.Hour, 7*24*time.Hour)
	service := auth.NewService(testLogger(), users, tokens, signer)
	return NewAuthHandler(testLogger(), service), users, tokens
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func registerUser(t *testing.T, h *AuthHandler, email, password string) tokenPairBody {
	t.Helper()
	w := postJSON(t, h.Register, "/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp tokenPairBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

type tokenPairBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		resp := registerUser(t, h, "alice@example.com", "password123")
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, int64(3600), resp.ExpiresIn)
	})

	t.Run("duplicate email returns 400", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		registerUser(t, h, "alice@example.com", "password123")

		w := postJSON(t, h.Register, "/api/v1/auth/register", map[string]string{
			"email":    "alice@example.com",
			"password": "otherpassword",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "already exists")
	})

	t.Run("invalid email", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		w := postJSON(t, h.Register, "/api/v1/auth/register", map[string]string{
			"email":    "not-an-email",
			"password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		w := postJSON(t, h.Register, "/api/v1/auth/register", map[string]string{
			"email":    "alice@example.com",
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		h.Register(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure returns 503", func(t *testing.T) {
		h, users, _ := setupAuthHandler(t)
		users.getError = errors.New("disk I/O error")
		w := postJSON(t, h.Register, "/api/v1/auth/register", map[string]string{
			"email":    "alice@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		registerUser(t, h, "alice@example.com", "password123")

		w := postJSON(t, h.Login, "/api/v1/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var resp tokenPairBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		registerUser(t, h, "alice@example.com", "password123")

		wrong := postJSON(t, h.Login, "/api/v1/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "wrongpassword",
		})
		unknown := postJSON(t, h.Login, "/api/v1/auth/login", map[string]string{
			"email":    "bob@example.com",
			"password": "password123",
		})

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		w := postJSON(t, h.Login, "/api/v1/auth/login", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	t.Run("rotation returns new pair", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		pair := registerUser(t, h, "alice@example.com", "password123")

		w := postJSON(t, h.Refresh, "/api/v1/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var resp tokenPairBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEqual(t, pair.RefreshToken, resp.RefreshToken)
	})

	t.Run("revoked, expired and unknown tokens look the same", func(t *testing.T) {
		h, _, tokens := setupAuthHandler(t)
		pair := registerUser(t, h, "alice@example.com", "password123")

		// Ротация отзывает старый токен
		w := postJSON(t, h.Refresh, "/api/v1/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusOK, w.Code)

		revoked := postJSON(t, h.Refresh, "/api/v1/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		unknown := postJSON(t, h.Refresh, "/api/v1/auth/refresh", map[string]string{
			"refresh_token": "no-such-token",
		})

		// Истекший токен подкладываем напрямую в хранилище
		expiredRow := &models.RefreshToken{
			ID:        "expired-id",
			Token:     "expired-token",
			UserID:    "user-1",
			ExpiresAt: time.Now().Add(-time.Hour),
			CreatedAt: time.Now().Add(-2 * time.Hour),
		}
		require.NoError(t, tokens.SaveRefreshToken(context.Background(), expiredRow))
		expired := postJSON(t, h.Refresh, "/api/v1/auth/refresh", map[string]string{
			"refresh_token": "expired-token",
		})

		assert.Equal(t, http.StatusUnauthorized, revoked.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, http.StatusUnauthorized, expired.Code)
		assert.Equal(t, revoked.Body.String(), unknown.Body.String())
		assert.Equal(t, revoked.Body.String(), expired.Body.String())
	})

	t.Run("empty token", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		w := postJSON(t, h.Refresh, "/api/v1/auth/refresh", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("logout is idempotent", func(t *testing.T) {
		h, _, tokens := setupAuthHandler(t)
		pair := registerUser(t, h, "alice@example.com", "password123")

		w := postJSON(t, h.Logout, "/api/v1/auth/logout", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		assert.Equal(t, http.StatusNoContent, w.Code)

		// Токен отозван, но строка осталась
		rt, err := tokens.GetRefreshToken(context.Background(), pair.RefreshToken)
		require.NoError(t, err)
		assert.True(t, rt.Revoked)

		// Повторный logout и logout неизвестного токена тоже 204
		w = postJSON(t, h.Logout, "/api/v1/auth/logout", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = postJSON(t, h.Logout, "/api/v1/auth/logout", map[string]string{
			"refresh_token": "no-such-token",
		})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	t.Run("returns current user profile", func(t *testing.T) {
		h, users, _ := setupAuthHandler(t)
		registerUser(t, h, "alice@example.com", "password123")
		user := users.users["alice@example.com"]

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, user.ID))
		w := httptest.NewRecorder()
		h.Me(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice@example.com")
		// Хеш пароля не отдается наружу
		assert.NotContains(t, w.Body.String(), user.PasswordHash)
	})

	t.Run("without auth context", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		w := httptest.NewRecorder()
		h.Me(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		h, _, _ := setupAuthHandler(t)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "no-such-user"))
		w := httptest.NewRecorder()
		h.Me(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
