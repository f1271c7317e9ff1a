package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/models"
	"github.com/iudanet/taskkeeper/internal/server/jwt"
	"github.com/iudanet/taskkeeper/internal/server/storage"
)

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	mu          sync.Mutex
	users       map[string]*models.User // email -> User
	createError error
	getError    error
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	user, ok := m.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserStorage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	for _, user := range m.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

// mockTokenStorage is a mock implementation of TokenStorage for testing.
// RevokeRefreshToken воспроизводит условную семантику настоящего хранилища.
type mockTokenStorage struct {
	mu          sync.Mutex
	byToken     map[string]*models.RefreshToken
	byID        map[string]*models.RefreshToken
	saveError   error
	getError    error
	revokeError error
}

func newMockTokenStorage() *mockTokenStorage {
	return &mockTokenStorage{
		byToken: make(map[string]*models.RefreshToken),
		byID:    make(map[string]*models.RefreshToken),
	}
}

func (m *mockTokenStorage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.byToken[token.Token] = token
	m.byID[token.ID] = token
	return nil
}

func (m *mockTokenStorage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	rt, ok := m.byToken[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	copied := *rt
	return &copied, nil
}

func (m *mockTokenStorage) RevokeRefreshToken(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revokeError != nil {
		return false, m.revokeError
	}
	rt, ok := m.byID[tokenID]
	if !ok || rt.Revoked {
		return false, nil
	}
	now := time.Now()
	rt.Revoked = true
	rt.RevokedAt = &now
	return true, nil
}

func newTestService(users *mockUserStorage, tokens *mockTokenStorage) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := jwt.NewService("test-secret", time.Hour, 7*24*time.Hour)
	return NewService(logger, users, tokens, signer)
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues token pair", func(t *testing.T) {
		users := newMockUserStorage()
		tokens := newMockTokenStorage()
		svc := newTestService(users, tokens)

		pair, err := svc.Register(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, int64(3600), pair.ExpiresIn)

		// Пользователь сохранен с bcrypt хешем, не plaintext
		user := users.users["alice@example.com"]
		require.NotNil(t, user)
		assert.NotEqual(t, "correct-horse", user.PasswordHash)
		assert.True(t, CheckPasswordHash("correct-horse", user.PasswordHash))

		// Refresh token сохранен в ledger
		_, err = tokens.GetRefreshToken(ctx, pair.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("second registration with same email fails", func(t *testing.T) {
		users := newMockUserStorage()
		tokens := newMockTokenStorage()
		svc := newTestService(users, tokens)

		_, err := svc.Register(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "alice@example.com", "another-pass")
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("race loser gets DuplicateUser from constraint", func(t *testing.T) {
		users := newMockUserStorage()
		tokens := newMockTokenStorage()
		svc := newTestService(users, tokens)

		// Precondition проходит, но insert ловит UNIQUE constraint
		users.createError = storage.ErrUserAlreadyExists
		_, err := svc.Register(ctx, "bob@example.com", "correct-horse")
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("store failure is transient, not duplicate", func(t *testing.T) {
		users := newMockUserStorage()
		tokens := newMockTokenStorage()
		svc := newTestService(users, tokens)

		users.getError = errors.New("connection refused")
		_, err := svc.Register(ctx, "carol@example.com", "correct-horse")
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	users := newMockUserStorage()
	tokens := newMockTokenStorage()
	svc := newTestService(users, tokens)

	_, err := svc.Register(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		pair, err := svc.Login(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, errUnknown := svc.Login(ctx, "nobody@example.com", "correct-horse")
		_, errWrongPass := svc.Login(ctx, "alice@example.com", "wrong-pass")

		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
		assert.Equal(t, errUnknown.Error(), errWrongPass.Error())
	})

	t.Run("each login issues a fresh refresh token", func(t *testing.T) {
		first, err := svc.Login(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		second, err := svc.Login(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	})

	t.Run("store failure", func(t *testing.T) {
		users.getError = errors.New("connection refused")
		defer func() { users.getError = nil }()
		_, err := svc.Login(ctx, "alice@example.com", "correct-horse")
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestService_Refresh(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *mockUserStorage, *mockTokenStorage, string) {
		t.Helper()
		users := newMockUserStorage()
		tokens := newMockTokenStorage()
		svc := newTestService(users, tokens)
		pair, err := svc.Register(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		return svc, users, tokens, pair.RefreshToken
	}

	t.Run("success rotates the token", func(t *testing.T) {
		svc, _, tokens, refreshToken := setup(t)

		pair, err := svc.Refresh(ctx, refreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, refreshToken, pair.RefreshToken)

		// Предъявленный токен отозван
		old, err := tokens.GetRefreshToken(ctx, refreshToken)
		require.NoError(t, err)
		assert.True(t, old.Revoked)
	})

	t.Run("second refresh of the same token fails with revoked", func(t *testing.T) {
		svc, _, _, refreshToken := setup(t)

		_, err := svc.Refresh(ctx, refreshToken)
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, refreshToken)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _, _, _ := setup(t)
		_, err := svc.Refresh(ctx, "no-such-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		svc, _, tokens, refreshToken := setup(t)

		tokens.mu.Lock()
		tokens.byToken[refreshToken].ExpiresAt = time.Now().Add(-time.Minute)
		tokens.mu.Unlock()

		_, err := svc.Refresh(ctx, refreshToken)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("revocation wins over expiry check lost race", func(t *testing.T) {
		svc, _, tokens, refreshToken := setup(t)

		// Другой вызов успел отозвать токен между Get и Revoke
		tokens.mu.Lock()
		rt := tokens.byToken[refreshToken]
		rt.Revoked = true
		tokens.mu.Unlock()

		_, err := svc.Refresh(ctx, refreshToken)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("store failure on lookup", func(t *testing.T) {
		svc, _, tokens, refreshToken := setup(t)
		tokens.getError = errors.New("connection refused")
		_, err := svc.Refresh(ctx, refreshToken)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

// Две конкурентные ротации одного валидного токена: ровно один успех
func TestService_Refresh_ConcurrentRotation(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		users := newMockUserStorage()
		tokens := newMockTokenStorage()
		svc := newTestService(users, tokens)

		pair, err := svc.Register(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]error, 2)

		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				_, results[idx] = svc.Refresh(ctx, pair.RefreshToken)
			}(j)
		}
		wg.Wait()

		var successes, failures int
		for _, err := range results {
			if err == nil {
				successes++
				continue
			}
			failures++
			assert.True(t,
				errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrInvalidToken),
				"loser must see revoked/invalid, got: %v", err)
		}

		assert.Equal(t, 1, successes, "exactly one rotation must win")
		assert.Equal(t, 1, failures)
	}
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	users := newMockUserStorage()
	tokens := newMockTokenStorage()
	svc := newTestService(users, tokens)

	pair, err := svc.Register(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	t.Run("logout revokes the token", func(t *testing.T) {
		require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

		// После logout ротация невозможна даже до истечения срока
		_, err := svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		assert.NoError(t, svc.Logout(ctx, pair.RefreshToken))
		assert.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	})

	t.Run("logout of unknown token succeeds", func(t *testing.T) {
		assert.NoError(t, svc.Logout(ctx, "never-issued"))
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		tokens.getError = errors.New("connection refused")
		defer func() { tokens.getError = nil }()
		err := svc.Logout(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestService_CurrentUser(t *testing.T) {
	ctx := context.Background()
	users := newMockUserStorage()
	tokens := newMockTokenStorage()
	svc := newTestService(users, tokens)

	_, err := svc.Register(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	userID := users.users["alice@example.com"].ID

	t.Run("existing user", func(t *testing.T) {
		user, err := svc.CurrentUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := svc.CurrentUser(ctx, "no-such-id")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("store failure is not NotFound", func(t *testing.T) {
		users.getError = errors.New("connection refused")
		defer func() { users.getError = nil }()
		_, err := svc.CurrentUser(ctx, userID)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.NotErrorIs(t, err, ErrUserNotFound)
	})
}
